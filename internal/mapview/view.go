// Package mapview filters the college and boundary datasets and keeps a map
// surface and a table in sync with the current selection.
package mapview

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// View ties the datasets, canvas and table together.
type View struct {
	canvas   *Canvas
	table    Table
	datasets *Datasets
	log      *zap.Logger

	gen atomic.Uint64

	mu     sync.Mutex // serializes redraws and guards filter
	filter Filter
}

// New creates a View drawing on surface and table.
func New(surface Surface, table Table, datasets *Datasets) *View {
	return &View{
		canvas:   NewCanvas(surface),
		table:    table,
		datasets: datasets,
		log:      zap.L().With(zap.String("component", "mapview")),
	}
}

// Canvas returns the view's canvas.
func (v *View) Canvas() *Canvas { return v.canvas }

// Filter returns the current selection.
func (v *View) Filter() Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// Init sets up the map and renders an empty table.
func (v *View) Init() error {
	if err := v.canvas.Init(); err != nil {
		v.log.Error("mapview: init failed", zap.Error(err))
		return err
	}
	if err := v.table.Render([]Row{}); err != nil {
		v.log.Error("mapview: init failed", zap.Error(err))
		return eris.Wrap(err, "mapview: render table")
	}
	return nil
}

// HandleChange applies one checkbox toggle and updates the view. Errors are
// logged, never returned.
func (v *View) HandleChange(ctx context.Context, c Change) {
	v.mu.Lock()
	f, err := v.filter.With(c)
	if err != nil {
		v.mu.Unlock()
		v.log.Warn("mapview: ignoring change", zap.Error(err))
		return
	}
	v.filter = f
	v.mu.Unlock()

	if _, err := v.Update(ctx, f); err != nil {
		v.log.Error("mapview: update failed", zap.Error(err))
	}
}

// Update loads the datasets f needs and redraws. It reports false without
// drawing when a fetch fails or when a newer Update started while this one
// was fetching.
func (v *View) Update(ctx context.Context, f Filter) (bool, error) {
	gen := v.gen.Add(1)

	if err := v.datasets.Ensure(ctx, f); err != nil {
		return false, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if cur := v.gen.Load(); cur != gen {
		v.log.Debug("mapview: dropping stale update",
			zap.Uint64("generation", gen),
			zap.Uint64("current", cur),
		)
		return false, nil
	}
	v.filter = f
	return true, v.redraw(f)
}

// Redraw clears the map and draws the cached data visible under f. It never
// fetches.
func (v *View) Redraw(f Filter) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.redraw(f)
}

func (v *View) redraw(f Filter) error {
	v.canvas.ClearLayers()

	if !f.Active() {
		return v.renderTable([]Row{})
	}

	colleges, _ := v.datasets.Colleges()
	boundaries, _ := v.datasets.Boundaries()
	visibleColleges := Apply(f, colleges)
	visibleBoundaries := Apply(f, boundaries)

	if err := v.renderTable(BuildRows(visibleColleges)); err != nil {
		return err
	}

	// Polygons go first so markers sit on top.
	for _, b := range visibleBoundaries {
		if b.Geometry == "" {
			continue
		}
		g, err := ParseGeometry(b.Geometry)
		if err != nil {
			v.log.Warn("mapview: skipping boundary",
				zap.String("zip_code", b.ZIPCode),
				zap.Error(err),
			)
			continue
		}
		if err := v.canvas.AddLayer(&Layer{
			Kind:             LayerPolygon,
			ID:               b.ZIPCode,
			Geometry:         g,
			Style:            BoundaryStyle,
			IncomeBucket:     b.IncomeBucket,
			PopulationBucket: b.PopulationBucket,
		}); err != nil {
			return err
		}
	}

	if !f.ShowColleges {
		return nil
	}
	for _, c := range visibleColleges {
		if !c.HasLocation() {
			continue
		}
		if err := v.canvas.AddLayer(&Layer{
			Kind:             LayerMarker,
			ID:               c.Name,
			Position:         LatLng{Lat: *c.Latitude, Lng: *c.Longitude},
			Popup:            Popup(c),
			IncomeBucket:     c.IncomeBucket,
			PopulationBucket: c.PopulationBucket,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (v *View) renderTable(rows []Row) error {
	if err := v.table.Render(rows); err != nil {
		return eris.Wrap(err, "mapview: render table")
	}
	return nil
}
