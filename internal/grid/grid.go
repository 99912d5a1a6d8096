// Package grid builds fixed-size query grids over a study area boundary.
//
// The aWhere API serves data per coordinate, so a study area is covered by
// tessellating its (buffered) bounding rectangle into aWhere-sized cells
// (0.08 x 0.08 degree, roughly 9 km x 9 km) and querying each cell centroid.
package grid

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

var (
	// ErrInvalidGeometry is returned when a boundary is empty or malformed.
	ErrInvalidGeometry = errors.New("invalid boundary geometry")
	// ErrInvalidParameter is returned for out-of-range build parameters.
	ErrInvalidParameter = errors.New("invalid grid parameter")
	// ErrUnsupportedCRS is returned for coordinate reference systems the
	// builder cannot reproject.
	ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")
)

// CRS identifies a coordinate reference system by EPSG code.
type CRS int

const (
	// CRSWGS84 is geographic lat/lon in degrees (EPSG:4326), the canonical
	// CRS for aWhere queries.
	CRSWGS84 CRS = 4326
	// CRSWebMercator is spherical mercator in meters (EPSG:3857).
	CRSWebMercator CRS = 3857
)

func (c CRS) String() string {
	return fmt.Sprintf("EPSG:%d", int(c))
}

// DefaultCellSize returns the aWhere cell size in the units of the CRS:
// 0.08 degrees for WGS84, 9 km for web mercator.
func (c CRS) DefaultCellSize() float64 {
	if c == CRSWebMercator {
		return 9000
	}
	return 0.08
}

// Boundary is a study area polygon with a known CRS. It is treated as
// immutable once loaded.
type Boundary struct {
	Geometry orb.Geometry
	CRS      CRS
}

// Cell is one axis-aligned grid tile, identified by its row/column position
// in the lattice. Row 0 is the southernmost row, column 0 the westernmost.
type Cell struct {
	Row   int
	Col   int
	Bound orb.Bound
}

// ID returns a stable identifier for the cell within its grid.
func (c Cell) ID() string {
	return fmt.Sprintf("r%dc%d", c.Row, c.Col)
}

// Centroid returns the geometric center of the cell.
func (c Cell) Centroid() orb.Point {
	return c.Bound.Center()
}

// Polygon returns the cell outline as a closed ring.
func (c Cell) Polygon() orb.Polygon {
	return c.Bound.ToPolygon()
}

// Grid is an ordered, read-only collection of cells covering the buffered
// bounding extent of a boundary. Cells are stored in row-major order.
type Grid struct {
	Cells    []Cell
	Bound    orb.Bound // buffered bounding rectangle the lattice tiles
	CellSize float64   // edge length in CRS units
	Rows     int
	Cols     int
	CRS      CRS
}

// Centroids returns the centroid of every cell in row-major order. The
// result is derived from cell bounds alone, so repeated calls yield
// identical output.
func (g *Grid) Centroids() []orb.Point {
	pts := make([]orb.Point, 0, len(g.Cells))
	for _, c := range g.Cells {
		pts = append(pts, c.Centroid())
	}
	return pts
}

// CellByID returns the cell with the given id, if present.
func (g *Grid) CellByID(id string) (Cell, bool) {
	for _, c := range g.Cells {
		if c.ID() == id {
			return c, true
		}
	}
	return Cell{}, false
}
