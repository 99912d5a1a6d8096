package grid

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LoadBoundary reads a boundary from a GeoJSON file. The file may hold a
// FeatureCollection, a single Feature, or a bare geometry; all polygonal
// geometries found are merged into the boundary. GeoJSON carries no CRS, so
// the caller declares the one the coordinates are in.
func LoadBoundary(path string, crs CRS) (Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Boundary{}, fmt.Errorf("read boundary file: %w", err)
	}
	return ParseBoundary(data, crs)
}

// ParseBoundary decodes GeoJSON bytes into a Boundary.
func ParseBoundary(data []byte, crs CRS) (Boundary, error) {
	geoms, err := decodeGeometries(data)
	if err != nil {
		return Boundary{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	var polys orb.MultiPolygon
	for _, g := range geoms {
		switch geom := g.(type) {
		case orb.Polygon:
			polys = append(polys, geom)
		case orb.MultiPolygon:
			polys = append(polys, geom...)
		}
	}
	if len(polys) == 0 {
		return Boundary{}, fmt.Errorf("%w: no polygonal geometry in boundary file", ErrInvalidGeometry)
	}

	b := Boundary{CRS: crs}
	if len(polys) == 1 {
		b.Geometry = polys[0]
	} else {
		b.Geometry = polys
	}
	if err := validateGeometry(b.Geometry); err != nil {
		return Boundary{}, err
	}
	return b, nil
}

func decodeGeometries(data []byte) ([]orb.Geometry, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		geoms := make([]orb.Geometry, 0, len(fc.Features))
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
		return geoms, nil
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil {
		return []orb.Geometry{f.Geometry}, nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, err
	}
	return []orb.Geometry{g.Geometry()}, nil
}

// FeatureCollection renders the grid as GeoJSON polygons, one feature per
// cell, with the cell id, lattice position, and centroid as properties.
func (g *Grid) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range g.Cells {
		f := geojson.NewFeature(c.Polygon())
		centroid := c.Centroid()
		f.Properties = geojson.Properties{
			"id":                 c.ID(),
			"row":                c.Row,
			"col":                c.Col,
			"centroid_longitude": centroid.Lon(),
			"centroid_latitude":  centroid.Lat(),
		}
		fc.Append(f)
	}
	return fc
}
