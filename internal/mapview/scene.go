package mapview

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Scene is an in-memory Surface and Table. It records what a browser map
// would show and encodes it as JSON: the viewport, a GeoJSON
// FeatureCollection of overlays in draw order, and the table rows.
type Scene struct {
	mu     sync.Mutex
	center LatLng
	zoom   int
	tiles  []TileLayer
	layers []*Layer
	rows   []Row
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{rows: []Row{}}
}

// SetView implements Surface.
func (s *Scene) SetView(center LatLng, zoom int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center, s.zoom = center, zoom
	return nil
}

// AddTileLayer implements Surface.
func (s *Scene) AddTileLayer(t TileLayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles = append(s.tiles, t)
	return nil
}

// AddLayer implements Surface.
func (s *Scene) AddLayer(l *Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = append(s.layers, l)
	return nil
}

// RemoveLayer implements Surface.
func (s *Scene) RemoveLayer(l *Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.layers, l)
	if i < 0 {
		return eris.Errorf("mapview: layer %s not on scene", l.ID)
	}
	s.layers = slices.Delete(s.layers, i, i+1)
	return nil
}

// Render implements Table.
func (s *Scene) Render(rows []Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = slices.Clone(rows)
	return nil
}

// Rows returns the rendered table rows.
func (s *Scene) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows)
}

// Layers returns the overlays in draw order.
func (s *Scene) Layers() []*Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.layers)
}

// FeatureCollection encodes the overlays as GeoJSON features.
func (s *Scene) FeatureCollection() *geojson.FeatureCollection {
	layers := s.Layers()
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(layers))}
	for _, l := range layers {
		props := map[string]any{
			"kind":              string(l.Kind),
			"income_bucket":     l.IncomeBucket,
			"population_bucket": l.PopulationBucket,
		}
		f := &geojson.Feature{ID: l.ID, Properties: props}
		switch l.Kind {
		case LayerMarker:
			f.Geometry = geom.NewPointFlat(geom.XY, []float64{l.Position.Lng, l.Position.Lat})
			props["name"] = l.ID
			props["popup"] = l.Popup
		default:
			f.Geometry = l.Geometry
			props["zip_code"] = l.ID
			props["style"] = l.Style
		}
		fc.Features = append(fc.Features, f)
	}
	return fc
}

type sceneView struct {
	Center LatLng      `json:"center"`
	Zoom   int         `json:"zoom"`
	Tiles  []TileLayer `json:"tiles"`
}

type sceneTable struct {
	Columns    []string `json:"columns"`
	PageLength int      `json:"page_length"`
	Rows       []Row    `json:"rows"`
}

type sceneJSON struct {
	View  sceneView                  `json:"view"`
	Map   *geojson.FeatureCollection `json:"map"`
	Table sceneTable                 `json:"table"`
}

// MarshalJSON implements json.Marshaler.
func (s *Scene) MarshalJSON() ([]byte, error) {
	fc := s.FeatureCollection()

	s.mu.Lock()
	out := sceneJSON{
		View:  sceneView{Center: s.center, Zoom: s.zoom, Tiles: slices.Clone(s.tiles)},
		Map:   fc,
		Table: sceneTable{Columns: Columns, PageLength: PageLength, Rows: slices.Clone(s.rows)},
	}
	s.mu.Unlock()

	if out.View.Tiles == nil {
		out.View.Tiles = []TileLayer{}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, eris.Wrap(err, "mapview: encode scene")
	}
	return b, nil
}
