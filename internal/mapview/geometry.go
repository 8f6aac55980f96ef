package mapview

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// ParseGeometry decodes a GeoJSON geometry, or a Feature wrapping one.
func ParseGeometry(text string) (geom.T, error) {
	var g geom.T
	gerr := geojson.Unmarshal([]byte(text), &g)
	if gerr == nil && g != nil {
		return g, nil
	}

	var f geojson.Feature
	if err := f.UnmarshalJSON([]byte(text)); err != nil {
		if gerr == nil {
			gerr = err
		}
		return nil, eris.Wrap(gerr, "mapview: parse geometry")
	}
	if f.Geometry == nil {
		return nil, eris.New("mapview: parse geometry: feature has no geometry")
	}
	return f.Geometry, nil
}
