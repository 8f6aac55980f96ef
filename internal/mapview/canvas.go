package mapview

import (
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LatLng is a WGS84 position.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Initial viewport: the geographic centre of the contiguous US.
var (
	DefaultCenter = LatLng{Lat: 39.8283, Lng: -98.5795}
	DefaultZoom   = 4
)

// TileLayer is a raster basemap.
type TileLayer struct {
	URLTemplate string `json:"url"`
	MaxZoom     int    `json:"maxZoom"`
	Attribution string `json:"attribution"`
}

// OSMTiles is the OpenStreetMap basemap.
var OSMTiles = TileLayer{
	URLTemplate: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
	MaxZoom:     19,
	Attribution: "OpenStreetMap contributors",
}

// Style is a polygon paint style, keyed the way Leaflet path options are.
type Style struct {
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
	Color       string  `json:"color"`
	Weight      int     `json:"weight"`
	Stroke      bool    `json:"stroke"`
}

// BoundaryStyle paints every ZIP boundary.
var BoundaryStyle = Style{
	FillColor:   "#4a0080",
	FillOpacity: 0.35,
	Color:       "#4a0080",
	Weight:      0,
	Stroke:      false,
}

// LayerKind distinguishes polygon and marker layers.
type LayerKind string

// Layer kinds.
const (
	LayerPolygon LayerKind = "polygon"
	LayerMarker  LayerKind = "marker"
)

// Layer is one overlay on the map.
type Layer struct {
	Kind             LayerKind
	ID               string // ZIP code for polygons, college name for markers
	Geometry         geom.T // polygons only
	Style            Style  // polygons only
	Position         LatLng // markers only
	Popup            string // markers only, HTML
	IncomeBucket     string
	PopulationBucket string
}

// Surface is the drawing target a Canvas drives.
type Surface interface {
	SetView(center LatLng, zoom int) error
	AddTileLayer(t TileLayer) error
	AddLayer(l *Layer) error
	RemoveLayer(l *Layer) error
}

// Canvas owns the viewport and tracks the overlays it has added.
type Canvas struct {
	surface Surface
	log     *zap.Logger

	mu       sync.Mutex
	markers  []*Layer
	polygons []*Layer
}

// NewCanvas wraps surface.
func NewCanvas(surface Surface) *Canvas {
	return &Canvas{
		surface: surface,
		log:     zap.L().With(zap.String("component", "mapview.canvas")),
	}
}

// Init centres the map and adds the basemap.
func (c *Canvas) Init() error {
	if err := c.surface.SetView(DefaultCenter, DefaultZoom); err != nil {
		return eris.Wrap(err, "mapview: set view")
	}
	if err := c.surface.AddTileLayer(OSMTiles); err != nil {
		return eris.Wrap(err, "mapview: add tile layer")
	}
	return nil
}

// ClearLayers removes every tracked overlay and empties both lists. Removal
// failures are logged and the layer is dropped from tracking anyway.
func (c *Canvas) ClearLayers() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, list := range [][]*Layer{c.markers, c.polygons} {
		for _, l := range list {
			if err := c.surface.RemoveLayer(l); err != nil {
				c.log.Warn("mapview: remove layer failed",
					zap.String("kind", string(l.Kind)),
					zap.String("id", l.ID),
					zap.Error(err),
				)
			}
		}
	}
	c.markers = nil
	c.polygons = nil
}

// AddLayer draws l and tracks it.
func (c *Canvas) AddLayer(l *Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.surface.AddLayer(l); err != nil {
		return eris.Wrapf(err, "mapview: add %s layer %s", l.Kind, l.ID)
	}
	switch l.Kind {
	case LayerMarker:
		c.markers = append(c.markers, l)
	default:
		c.polygons = append(c.polygons, l)
	}
	return nil
}

// Counts returns the number of tracked polygons and markers.
func (c *Canvas) Counts() (polygons, markers int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.polygons), len(c.markers)
}
