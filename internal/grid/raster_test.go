package grid

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestArrayRasterSample(t *testing.T) {
	// 4x4 raster of 1.0 values, 1-unit pixels, origin at top-left (0, 4).
	values := make([][]float64, 4)
	for i := range values {
		values[i] = []float64{1, 1, 1, 1}
	}

	r, err := NewArrayRaster(values, orb.Point{0, 4}, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The lower-left 2x2 quadrant covers four pixel centers.
	s := r.Sample(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}})
	if s.Count != 4 {
		t.Fatalf("expected 4 pixels, got %d", s.Count)
	}
	if math.Abs(s.Sum-4) > tolerance {
		t.Fatalf("expected sum 4, got %v", s.Sum)
	}
	if math.Abs(s.Mean()-1) > tolerance {
		t.Fatalf("expected mean 1, got %v", s.Mean())
	}
}

func TestArrayRasterNoData(t *testing.T) {
	nodata := -9999.0
	values := [][]float64{
		{2, nodata},
		{nodata, 6},
	}

	r, err := NewArrayRaster(values, orb.Point{0, 2}, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.NoData = &nodata

	s := r.Sample(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}})
	if s.Count != 2 {
		t.Fatalf("expected 2 valid pixels, got %d", s.Count)
	}
	if math.Abs(s.Sum-8) > tolerance {
		t.Fatalf("expected sum 8, got %v", s.Sum)
	}
}

func TestNewArrayRasterValidation(t *testing.T) {
	if _, err := NewArrayRaster(nil, orb.Point{}, 1, 1); err == nil {
		t.Fatalf("expected error for empty raster")
	}
	if _, err := NewArrayRaster([][]float64{{1, 2}, {3}}, orb.Point{}, 1, 1); err == nil {
		t.Fatalf("expected error for ragged raster")
	}
	if _, err := NewArrayRaster([][]float64{{1}}, orb.Point{}, 0, 1); err == nil {
		t.Fatalf("expected error for zero pixel size")
	}
}

func TestRasterizePerCell(t *testing.T) {
	boundary := Boundary{Geometry: squarePolygon(0, 0, 18000), CRS: CRSWebMercator}
	g, _, err := Builder{WorkingCRS: CRSWebMercator}.Build(boundary, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One 100x100 m pixel of value 1 per raster cell over the whole extent.
	values := make([][]float64, 180)
	for i := range values {
		values[i] = make([]float64, 180)
		for j := range values[i] {
			values[i][j] = 1
		}
	}
	r, err := NewArrayRaster(values, orb.Point{0, 18000}, 100, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := Rasterize(g, r)
	if len(stats) != len(g.Cells) {
		t.Fatalf("expected %d summaries, got %d", len(g.Cells), len(stats))
	}
	for _, cs := range stats {
		if cs.Summary.Count != 90*90 {
			t.Fatalf("cell %s sampled %d pixels, expected %d", cs.Cell.ID(), cs.Summary.Count, 90*90)
		}
	}
}
