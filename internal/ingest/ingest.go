// Package ingest loads colleges, ZIP centroids, ACS demographics, and ZCTA
// boundaries into the store.
package ingest

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/college-map/internal/config"
	"github.com/sells-group/college-map/internal/fetcher"
	"github.com/sells-group/college-map/internal/model"
	"github.com/sells-group/college-map/internal/store"
	"github.com/sells-group/college-map/internal/tiger"
)

// Step names, in the order All runs them.
const (
	StepColleges     = "colleges"
	StepZIPs         = "zips"
	StepDemographics = "demographics"
	StepBoundaries   = "boundaries"
)

// DemographicsSource supplies bucketed ZIP demographics.
type DemographicsSource interface {
	ZIPDemographics(ctx context.Context) ([]model.ZIPDemographics, error)
}

// StepResult records one completed load.
type StepResult struct {
	Step     string        `json:"step"`
	Rows     int64         `json:"rows"`
	Duration time.Duration `json:"duration"`
}

// Result is the outcome of a full ingest run.
type Result struct {
	RunID string       `json:"run_id"`
	Steps []StepResult `json:"steps"`
}

// Ingester runs the individual loads against a store.
type Ingester struct {
	store   store.Store
	fetcher fetcher.Fetcher
	census  DemographicsSource
	ingest  config.IngestConfig
	tiger   config.TigerConfig
}

// New returns an Ingester.
func New(st store.Store, f fetcher.Fetcher, census DemographicsSource, ingestCfg config.IngestConfig, tigerCfg config.TigerConfig) *Ingester {
	return &Ingester{
		store:   st,
		fetcher: f,
		census:  census,
		ingest:  ingestCfg,
		tiger:   tigerCfg,
	}
}

// Colleges replaces the colleges table from the configured CSV or XLSX file.
func (i *Ingester) Colleges(ctx context.Context) (int64, error) {
	recs, err := fetcher.ReadRecords(ctx, i.ingest.CollegesPath)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: read colleges")
	}

	colleges := make([]model.College, 0, len(recs))
	for _, rec := range recs {
		if c, ok := ParseCollege(rec); ok {
			colleges = append(colleges, c)
		}
	}
	if skipped := len(recs) - len(colleges); skipped > 0 {
		zap.L().Warn("ingest: skipped colleges without a name", zap.Int("skipped", skipped))
	}

	n, err := i.store.ReplaceColleges(ctx, colleges)
	return n, eris.Wrap(err, "ingest: store colleges")
}

// ZIPCoordinates replaces the ZIP centroid table from the configured CSV.
func (i *Ingester) ZIPCoordinates(ctx context.Context) (int64, error) {
	recs, err := fetcher.ReadRecords(ctx, i.ingest.ZIPCoordinatesPath)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: read zip coordinates")
	}

	coords := make([]model.ZIPCoordinate, 0, len(recs))
	for _, rec := range recs {
		if z, ok := ParseZIPCoordinate(rec); ok {
			coords = append(coords, z)
		}
	}
	coords = dedupeZIPs(coords)

	n, err := i.store.ReplaceZIPCoordinates(ctx, coords)
	return n, eris.Wrap(err, "ingest: store zip coordinates")
}

// Demographics replaces the demographics table from the Census API.
func (i *Ingester) Demographics(ctx context.Context) (int64, error) {
	if i.census == nil {
		return 0, eris.New("ingest: no demographics source configured")
	}
	demos, err := i.census.ZIPDemographics(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: fetch demographics")
	}

	n, err := i.store.ReplaceDemographics(ctx, demos)
	return n, eris.Wrap(err, "ingest: store demographics")
}

// Boundaries downloads the ZCTA shapefile and upserts the boundaries of every
// ZIP the map can show.
func (i *Ingester) Boundaries(ctx context.Context) (int64, error) {
	eligible, err := i.store.EligibleZIPs(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: eligible zips")
	}
	if len(eligible) == 0 {
		zap.L().Warn("ingest: no eligible zips, load coordinates and demographics first")
		return 0, nil
	}

	shpPath, err := tiger.Download(ctx, i.fetcher, i.tiger.ZCTAURL, filepath.Join(i.tiger.TempDir, "zcta"))
	if err != nil {
		return 0, eris.Wrap(err, "ingest: download zcta")
	}

	boundaries, err := tiger.ReadZCTA(shpPath, func(zip string) bool { return eligible[zip] })
	if err != nil {
		return 0, eris.Wrap(err, "ingest: read zcta")
	}

	n, err := i.store.UpsertBoundaries(ctx, boundaries)
	return n, eris.Wrap(err, "ingest: store boundaries")
}

// Run executes a single step by name.
func (i *Ingester) Run(ctx context.Context, step string) (StepResult, error) {
	var fn func(context.Context) (int64, error)
	switch step {
	case StepColleges:
		fn = i.Colleges
	case StepZIPs:
		fn = i.ZIPCoordinates
	case StepDemographics:
		fn = i.Demographics
	case StepBoundaries:
		fn = i.Boundaries
	default:
		return StepResult{}, eris.Errorf("ingest: unknown step %q", step)
	}
	return timed(ctx, step, fn)
}

// All loads colleges and ZIP coordinates concurrently, then demographics,
// then boundaries, which depend on both ZIP tables.
func (i *Ingester) All(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := zap.L().With(zap.String("component", "ingest"), zap.String("run_id", res.RunID))
	log.Info("ingest run started")
	start := time.Now()

	first := make([]StepResult, 2)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		first[0], err = i.Run(gctx, StepColleges)
		return err
	})
	g.Go(func() error {
		var err error
		first[1], err = i.Run(gctx, StepZIPs)
		return err
	})
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.Steps = append(res.Steps, first...)

	for _, step := range []string{StepDemographics, StepBoundaries} {
		sr, err := i.Run(ctx, step)
		if err != nil {
			return res, err
		}
		res.Steps = append(res.Steps, sr)
	}

	log.Info("ingest run complete", zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func timed(ctx context.Context, step string, fn func(context.Context) (int64, error)) (StepResult, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("step", step))
	log.Info("step started")
	start := time.Now()

	n, err := fn(ctx)
	sr := StepResult{Step: step, Rows: n, Duration: time.Since(start)}
	if err != nil {
		log.Error("step failed", zap.Duration("elapsed", sr.Duration), zap.Error(err))
		return sr, err
	}
	log.Info("step complete", zap.Int64("rows", n), zap.Duration("elapsed", sr.Duration))
	return sr, nil
}
