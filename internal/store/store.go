// Package store persists colleges and ZIP demographics and serves the map datasets.
package store

import (
	"context"
	"sort"

	"github.com/sells-group/college-map/internal/bucket"
	"github.com/sells-group/college-map/internal/model"
)

// Store defines the persistence interface behind the map endpoints and ingest.
type Store interface {
	// Map datasets. Both exclude bucket.ExcludedIncome.
	Colleges(ctx context.Context) ([]model.College, error)
	Boundaries(ctx context.Context) ([]model.Boundary, error)
	IncomeBuckets(ctx context.Context) ([]string, error)
	PopulationBuckets(ctx context.Context) ([]string, error)

	// Ingest
	ReplaceColleges(ctx context.Context, colleges []model.College) (int64, error)
	ReplaceZIPCoordinates(ctx context.Context, coords []model.ZIPCoordinate) (int64, error)
	ReplaceDemographics(ctx context.Context, demos []model.ZIPDemographics) (int64, error)
	UpsertBoundaries(ctx context.Context, boundaries []model.ZIPBoundary) (int64, error)
	EligibleZIPs(ctx context.Context) (map[string]bool, error)

	// Stats
	IncomeDistribution(ctx context.Context) ([]model.BucketCount, error)
	PopulationDistribution(ctx context.Context) ([]model.BucketCount, error)
	Coverage(ctx context.Context) (*model.ZIPCoverage, error)
	Summary(ctx context.Context) ([]model.TableSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Tables lists the tables reported by Summary, in report order.
var Tables = []string{"colleges", "zip_demographics", "zip_coordinates", "zip_boundaries"}

// sortPopulation orders population bucket labels canonically rather than
// lexicographically.
func sortPopulation(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		return bucket.PopulationRank(labels[i]) < bucket.PopulationRank(labels[j])
	})
}

func sortPopulationCounts(counts []model.BucketCount) {
	sort.SliceStable(counts, func(i, j int) bool {
		return bucket.PopulationRank(counts[i].Bucket) < bucket.PopulationRank(counts[j].Bucket)
	})
}

func nullableInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
