package grid

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// spanEpsilon absorbs floating point noise when counting rows and columns,
// so an extent that is an exact multiple of the cell size does not grow an
// extra row of slivers.
const spanEpsilon = 1e-9

// maxCells caps the lattice size so a tiny cell size over a large extent
// cannot exhaust memory while the cell slice is allocated.
const maxCells = 1 << 20

// Builder constructs fixed-size grids from a boundary. The zero value works
// in WGS84 with the aWhere default cell size.
type Builder struct {
	// WorkingCRS is the CRS the grid is built in. Boundaries in a different
	// (supported) CRS are reprojected first. Defaults to CRSWGS84.
	WorkingCRS CRS

	// CellSize is the cell edge length in working CRS units. Zero selects
	// the aWhere default for the working CRS.
	CellSize float64
}

// Build tessellates the buffered bounding rectangle of the boundary into a
// complete lattice of square cells. The buffer distance is in working CRS
// units and expands the extent outward so edge cells fully cover the study
// area; it must not be negative. The returned boundary is the input
// reprojected into the working CRS.
func (b Builder) Build(boundary Boundary, buffer float64) (*Grid, Boundary, error) {
	if buffer < 0 {
		return nil, Boundary{}, fmt.Errorf("%w: buffer distance %v is negative", ErrInvalidParameter, buffer)
	}

	crs := b.WorkingCRS
	if crs == 0 {
		crs = CRSWGS84
	}
	if crs != CRSWGS84 && crs != CRSWebMercator {
		return nil, Boundary{}, fmt.Errorf("%w: cannot build in %s", ErrUnsupportedCRS, crs)
	}
	size := b.CellSize
	if size == 0 {
		size = crs.DefaultCellSize()
	}
	if size < 0 {
		return nil, Boundary{}, fmt.Errorf("%w: cell size %v is negative", ErrInvalidParameter, size)
	}

	if err := validateGeometry(boundary.Geometry); err != nil {
		return nil, Boundary{}, err
	}

	reprojected, err := reproject(boundary, crs)
	if err != nil {
		return nil, Boundary{}, err
	}

	bound := reprojected.Geometry.Bound().Pad(buffer)

	fcols := cellCount(bound.Max[0]-bound.Min[0], size)
	frows := cellCount(bound.Max[1]-bound.Min[1], size)
	if frows*fcols > maxCells {
		return nil, Boundary{}, fmt.Errorf("%w: %.0fx%.0f cells exceeds the %d cell limit",
			ErrInvalidParameter, frows, fcols, maxCells)
	}
	rows := int(frows)
	cols := int(fcols)

	cells := make([]Cell, 0, rows*cols)
	for row := 0; row < rows; row++ {
		minY := bound.Min[1] + float64(row)*size
		for col := 0; col < cols; col++ {
			minX := bound.Min[0] + float64(col)*size
			cells = append(cells, Cell{
				Row: row,
				Col: col,
				Bound: orb.Bound{
					Min: orb.Point{minX, minY},
					Max: orb.Point{minX + size, minY + size},
				},
			})
		}
	}

	g := &Grid{
		Cells:    cells,
		Bound:    bound,
		CellSize: size,
		Rows:     rows,
		Cols:     cols,
		CRS:      crs,
	}
	return g, reprojected, nil
}

// Clip returns a copy of the grid narrowed to cells whose centroid falls
// inside the boundary geometry, preserving row-major order. The boundary
// must already be in the grid's CRS.
func Clip(g *Grid, boundary Boundary) (*Grid, error) {
	if boundary.CRS != g.CRS {
		return nil, fmt.Errorf("%w: boundary is %s, grid is %s", ErrUnsupportedCRS, boundary.CRS, g.CRS)
	}
	if err := validateGeometry(boundary.Geometry); err != nil {
		return nil, err
	}

	kept := make([]Cell, 0, len(g.Cells))
	for _, c := range g.Cells {
		if geometryContains(boundary.Geometry, c.Centroid()) {
			kept = append(kept, c)
		}
	}

	clipped := *g
	clipped.Cells = kept
	return &clipped, nil
}

// cellCount returns the number of cells the span needs as a float, so the
// caller can bound rows*cols before converting to int.
func cellCount(span, size float64) float64 {
	n := math.Ceil(span/size - spanEpsilon)
	if n < 1 {
		n = 1
	}
	return n
}

// reproject moves a boundary into the target CRS. Only the WGS84 and web
// mercator pair is supported; a boundary already in the target CRS is
// returned untouched.
func reproject(b Boundary, target CRS) (Boundary, error) {
	if b.CRS == 0 {
		b.CRS = CRSWGS84
	}
	if b.CRS == target {
		return b, nil
	}

	switch {
	case b.CRS == CRSWebMercator && target == CRSWGS84:
		return Boundary{Geometry: project.Geometry(orb.Clone(b.Geometry), project.Mercator.ToWGS84), CRS: target}, nil
	case b.CRS == CRSWGS84 && target == CRSWebMercator:
		return Boundary{Geometry: project.Geometry(orb.Clone(b.Geometry), project.WGS84.ToMercator), CRS: target}, nil
	default:
		return Boundary{}, fmt.Errorf("%w: cannot reproject %s to %s", ErrUnsupportedCRS, b.CRS, target)
	}
}

// validateGeometry rejects empty and malformed polygonal geometry before
// tessellation.
func validateGeometry(g orb.Geometry) error {
	switch geom := g.(type) {
	case orb.Polygon:
		return validatePolygon(geom)
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return fmt.Errorf("%w: empty multipolygon", ErrInvalidGeometry)
		}
		for _, p := range geom {
			if err := validatePolygon(p); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return fmt.Errorf("%w: nil geometry", ErrInvalidGeometry)
	default:
		return fmt.Errorf("%w: %s is not polygonal", ErrInvalidGeometry, g.GeoJSONType())
	}
}

func validatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty polygon", ErrInvalidGeometry)
	}
	for _, ring := range p {
		if len(ring) < 4 {
			return fmt.Errorf("%w: ring has %d points, need at least 4", ErrInvalidGeometry, len(ring))
		}
		if !ring.Closed() {
			return fmt.Errorf("%w: ring is not closed", ErrInvalidGeometry)
		}
	}
	return nil
}

func geometryContains(g orb.Geometry, p orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	default:
		return false
	}
}
