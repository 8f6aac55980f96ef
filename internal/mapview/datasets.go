package mapview

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sells-group/college-map/internal/model"
)

// dataset holds one loaded collection. loaded distinguishes "not fetched yet"
// from "fetched and empty".
type dataset[T any] struct {
	records []T
	loaded  bool
}

// Datasets fetches each dataset at most once and keeps it for its lifetime.
// Concurrent loads of the same dataset share one in-flight fetch. A failed
// fetch leaves the dataset unloaded.
type Datasets struct {
	src   Source
	group singleflight.Group

	mu         sync.RWMutex
	colleges   dataset[model.College]
	boundaries dataset[model.Boundary]
}

// NewDatasets creates an empty Datasets backed by src.
func NewDatasets(src Source) *Datasets {
	return &Datasets{src: src}
}

// Colleges returns the loaded colleges and whether they have been loaded.
func (d *Datasets) Colleges() ([]model.College, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.colleges.records, d.colleges.loaded
}

// Boundaries returns the loaded boundaries and whether they have been loaded.
func (d *Datasets) Boundaries() ([]model.Boundary, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.boundaries.records, d.boundaries.loaded
}

// Ensure loads whatever f requires, colleges first and then boundaries. It
// stops at the first failure.
func (d *Datasets) Ensure(ctx context.Context, f Filter) error {
	if f.NeedsColleges() {
		if err := d.LoadColleges(ctx); err != nil {
			return err
		}
	}
	if f.NeedsBoundaries() {
		if err := d.LoadBoundaries(ctx); err != nil {
			return err
		}
	}
	return nil
}

// LoadColleges fetches colleges unless they are already loaded.
func (d *Datasets) LoadColleges(ctx context.Context) error {
	return load(ctx, d, PathColleges, &d.colleges, d.src.Colleges)
}

// LoadBoundaries fetches boundaries unless they are already loaded.
func (d *Datasets) LoadBoundaries(ctx context.Context) error {
	return load(ctx, d, PathBoundaries, &d.boundaries, d.src.Boundaries)
}

func load[T any](ctx context.Context, d *Datasets, key string, slot *dataset[T], fetch func(context.Context) ([]T, error)) error {
	if d.isLoaded(func() bool { return slot.loaded }) {
		return nil
	}

	_, err, _ := d.group.Do(key, func() (any, error) {
		if d.isLoaded(func() bool { return slot.loaded }) {
			return nil, nil
		}
		records, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if records == nil {
			records = []T{}
		}

		d.mu.Lock()
		slot.records = records
		slot.loaded = true
		d.mu.Unlock()
		return nil, nil
	})
	return err
}

func (d *Datasets) isLoaded(check func() bool) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return check()
}
