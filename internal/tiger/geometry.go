package tiger

import (
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// ShapeToGeometry converts a shapefile polygon to a Polygon, or to a
// MultiPolygon when it has several outer rings. Clockwise rings start a new
// polygon; counter-clockwise rings are holes in the polygon before them.
// Returns nil for nil, empty, or non-polygon shapes.
func ShapeToGeometry(shape shp.Shape) geom.T {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("tiger: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			zap.L().Debug("tiger: skipping degenerate ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		// LinearRing.Area is signed: negative for clockwise rings.
		if ring.Area() <= 0 || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("tiger: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	switch mp.NumPolygons() {
	case 0:
		return nil
	case 1:
		return mp.Polygon(0)
	default:
		return mp
	}
}

// Measure returns the planar area and perimeter of g in source units.
func Measure(g geom.T) (area, perimeter float64) {
	switch t := g.(type) {
	case *geom.Polygon:
		return math.Abs(t.Area()), t.Length()
	case *geom.MultiPolygon:
		return math.Abs(t.Area()), t.Length()
	}
	return 0, 0
}

// EncodeGeoJSON renders g as a GeoJSON geometry object.
func EncodeGeoJSON(g geom.T) (string, error) {
	data, err := geojson.Marshal(g, geojson.EncodeGeometryWithMaxDecimalDigits(6))
	if err != nil {
		return "", eris.Wrap(err, "tiger: encode geojson")
	}
	return string(data), nil
}
