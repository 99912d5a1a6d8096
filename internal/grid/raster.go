package grid

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Sampler yields zonal statistics for an arbitrary rectangular zone of an
// external raster dataset.
type Sampler interface {
	Sample(zone orb.Bound) ZonalSummary
}

// ZonalSummary aggregates the raster values that fell inside a zone.
type ZonalSummary struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
}

// Mean returns the average sampled value, or 0 for an empty zone.
func (z ZonalSummary) Mean() float64 {
	if z.Count == 0 {
		return 0
	}
	return z.Sum / float64(z.Count)
}

// CellStats pairs a grid cell with the raster statistics sampled over it.
type CellStats struct {
	Cell    Cell
	Summary ZonalSummary
}

// Rasterize samples the raster once per grid cell, in row-major cell order.
// Cells that cover no raster pixels report a zero-count summary.
func Rasterize(g *Grid, s Sampler) []CellStats {
	stats := make([]CellStats, 0, len(g.Cells))
	for _, c := range g.Cells {
		stats = append(stats, CellStats{Cell: c, Summary: s.Sample(c.Bound)})
	}
	return stats
}

// ArrayRaster is an in-memory north-up raster with a simple affine
// georeference: Origin is the outer corner of the top-left pixel, and pixel
// sizes are positive with rows running southward. Values are indexed
// [row][col] with row 0 at the top.
type ArrayRaster struct {
	Values      [][]float64
	Origin      orb.Point
	PixelWidth  float64
	PixelHeight float64
	NoData      *float64
}

// NewArrayRaster validates the raster shape and georeference.
func NewArrayRaster(values [][]float64, origin orb.Point, pixelWidth, pixelHeight float64) (*ArrayRaster, error) {
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, fmt.Errorf("%w: raster has no pixels", ErrInvalidParameter)
	}
	width := len(values[0])
	for i, row := range values {
		if len(row) != width {
			return nil, fmt.Errorf("%w: raster row %d has %d columns, want %d", ErrInvalidParameter, i, len(row), width)
		}
	}
	if pixelWidth <= 0 || pixelHeight <= 0 {
		return nil, fmt.Errorf("%w: pixel size must be positive", ErrInvalidParameter)
	}
	return &ArrayRaster{
		Values:      values,
		Origin:      origin,
		PixelWidth:  pixelWidth,
		PixelHeight: pixelHeight,
	}, nil
}

// Sample aggregates every pixel whose center lies inside the zone, skipping
// nodata pixels.
func (r *ArrayRaster) Sample(zone orb.Bound) ZonalSummary {
	var summary ZonalSummary
	for row := range r.Values {
		y := r.Origin[1] - (float64(row)+0.5)*r.PixelHeight
		if y < zone.Min[1] || y > zone.Max[1] {
			continue
		}
		for col, v := range r.Values[row] {
			if r.NoData != nil && v == *r.NoData {
				continue
			}
			x := r.Origin[0] + (float64(col)+0.5)*r.PixelWidth
			if x < zone.Min[0] || x > zone.Max[0] {
				continue
			}
			summary.Count++
			summary.Sum += v
		}
	}
	return summary
}
