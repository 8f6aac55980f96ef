package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/college-map/internal/bucket"
	"github.com/sells-group/college-map/internal/db"
	"github.com/sells-group/college-map/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS colleges (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT,
	address    TEXT,
	city       TEXT,
	state      TEXT,
	zip        TEXT,
	telephone  TEXT,
	population BIGINT,
	county     TEXT,
	countyfips TEXT,
	country    TEXT,
	latitude   DOUBLE PRECISION,
	longitude  DOUBLE PRECISION,
	website    TEXT
);

CREATE TABLE IF NOT EXISTS zip_coordinates (
	zip_code  TEXT PRIMARY KEY,
	city      TEXT,
	state     TEXT,
	latitude  DOUBLE PRECISION,
	longitude DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS zip_demographics (
	zip_code                TEXT PRIMARY KEY,
	median_household_income BIGINT,
	population              BIGINT,
	income_bucket           TEXT,
	population_bucket       TEXT
);

CREATE TABLE IF NOT EXISTS zip_boundaries (
	zip_code         TEXT PRIMARY KEY,
	geometry         TEXT,
	area_sq_meters   DOUBLE PRECISION,
	perimeter_meters DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_colleges_zip ON colleges(zip);
CREATE INDEX IF NOT EXISTS idx_zip_demographics_income ON zip_demographics(income_bucket);
CREATE INDEX IF NOT EXISTS idx_zip_demographics_population ON zip_demographics(population_bucket);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const postgresCollegesQuery = `
SELECT c.name, c.address, c.city, c.state, c.zip, c.telephone, c.population,
       c.county, c.countyfips, c.country, c.website,
       zc.latitude, zc.longitude, zd.income_bucket, zd.population_bucket
FROM colleges c
JOIN zip_demographics zd ON c.zip = zd.zip_code
JOIN zip_coordinates zc ON c.zip = zc.zip_code
WHERE zd.income_bucket != $1
ORDER BY c.name`

func (s *PostgresStore) Colleges(ctx context.Context) ([]model.College, error) {
	rows, err := s.pool.Query(ctx, postgresCollegesQuery, bucket.ExcludedIncome)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query colleges")
	}
	defer rows.Close()

	colleges := []model.College{}
	for rows.Next() {
		var c model.College
		var name, address, city, state, zip, phone *string
		var county, fips, country, website *string
		var incomeBucket, populationBucket *string
		if err := rows.Scan(&name, &address, &city, &state, &zip, &phone, &c.Population,
			&county, &fips, &country, &website, &c.Latitude, &c.Longitude, &incomeBucket, &populationBucket); err != nil {
			return nil, eris.Wrap(err, "postgres: scan college")
		}
		c.Name, c.Address, c.City, c.State = deref(name), deref(address), deref(city), deref(state)
		c.ZIP, c.Telephone, c.County, c.CountyFIPS = deref(zip), deref(phone), deref(county), deref(fips)
		c.Country, c.Website = deref(country), deref(website)
		c.IncomeBucket, c.PopulationBucket = deref(incomeBucket), deref(populationBucket)
		colleges = append(colleges, c)
	}
	return colleges, eris.Wrap(rows.Err(), "postgres: iterate colleges")
}

const postgresBoundariesQuery = `
SELECT DISTINCT zb.zip_code, zb.geometry, zd.income_bucket, zd.population_bucket
FROM zip_boundaries zb
JOIN zip_demographics zd ON zb.zip_code = zd.zip_code
WHERE zd.income_bucket != $1`

func (s *PostgresStore) Boundaries(ctx context.Context) ([]model.Boundary, error) {
	rows, err := s.pool.Query(ctx, postgresBoundariesQuery, bucket.ExcludedIncome)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query boundaries")
	}
	defer rows.Close()

	boundaries := []model.Boundary{}
	for rows.Next() {
		var zip, geometry, income, population *string
		if err := rows.Scan(&zip, &geometry, &income, &population); err != nil {
			return nil, eris.Wrap(err, "postgres: scan boundary")
		}
		boundaries = append(boundaries, model.Boundary{
			ZIPCode:          deref(zip),
			Geometry:         deref(geometry),
			IncomeBucket:     deref(income),
			PopulationBucket: deref(population),
		})
	}
	return boundaries, eris.Wrap(rows.Err(), "postgres: iterate boundaries")
}

func (s *PostgresStore) IncomeBuckets(ctx context.Context) ([]string, error) {
	labels, err := s.strings(ctx,
		`SELECT DISTINCT income_bucket FROM zip_demographics WHERE income_bucket != $1 ORDER BY income_bucket`,
		bucket.ExcludedIncome)
	return labels, eris.Wrap(err, "postgres: income buckets")
}

func (s *PostgresStore) PopulationBuckets(ctx context.Context) ([]string, error) {
	labels, err := s.strings(ctx, `SELECT DISTINCT population_bucket FROM zip_demographics`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: population buckets")
	}
	sortPopulation(labels)
	return labels, nil
}

func (s *PostgresStore) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v *string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, rows.Err()
}

var (
	collegeColumns = []string{"name", "address", "city", "state", "zip", "telephone", "population",
		"county", "countyfips", "country", "latitude", "longitude", "website"}
	coordinateColumns  = []string{"zip_code", "city", "state", "latitude", "longitude"}
	demographicColumns = []string{"zip_code", "median_household_income", "population", "income_bucket", "population_bucket"}
	boundaryColumns    = []string{"zip_code", "geometry", "area_sq_meters", "perimeter_meters"}
)

func (s *PostgresStore) ReplaceColleges(ctx context.Context, colleges []model.College) (int64, error) {
	rows := make([][]any, len(colleges))
	for i, c := range colleges {
		rows[i] = []any{c.Name, c.Address, c.City, c.State, c.ZIP, c.Telephone, nullableInt(c.Population),
			c.County, c.CountyFIPS, nullableString(c.Country), nullableFloat(c.Latitude), nullableFloat(c.Longitude),
			nullableString(c.Website)}
	}
	n, err := db.Replace(ctx, s.pool, "colleges", collegeColumns, rows)
	return n, eris.Wrap(err, "postgres: replace colleges")
}

func (s *PostgresStore) ReplaceZIPCoordinates(ctx context.Context, coords []model.ZIPCoordinate) (int64, error) {
	rows := make([][]any, len(coords))
	for i, z := range coords {
		rows[i] = []any{z.ZIPCode, z.City, z.State, z.Latitude, z.Longitude}
	}
	n, err := db.Replace(ctx, s.pool, "zip_coordinates", coordinateColumns, rows)
	return n, eris.Wrap(err, "postgres: replace zip coordinates")
}

func (s *PostgresStore) ReplaceDemographics(ctx context.Context, demos []model.ZIPDemographics) (int64, error) {
	rows := make([][]any, len(demos))
	for i, d := range demos {
		rows[i] = []any{d.ZIPCode, nullableInt(d.MedianHouseholdIncome), nullableInt(d.Population), d.IncomeBucket, d.PopulationBucket}
	}
	n, err := db.Replace(ctx, s.pool, "zip_demographics", demographicColumns, rows)
	return n, eris.Wrap(err, "postgres: replace demographics")
}

func (s *PostgresStore) UpsertBoundaries(ctx context.Context, boundaries []model.ZIPBoundary) (int64, error) {
	rows := make([][]any, len(boundaries))
	for i, b := range boundaries {
		rows[i] = []any{b.ZIPCode, b.Geometry, b.Area, b.Perimeter}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:   "zip_boundaries",
		Key:     "zip_code",
		Columns: boundaryColumns,
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert boundaries")
}

func (s *PostgresStore) EligibleZIPs(ctx context.Context) (map[string]bool, error) {
	zips, err := s.strings(ctx, `
		SELECT DISTINCT d.zip_code
		FROM zip_demographics d
		JOIN zip_coordinates c ON d.zip_code = c.zip_code
		WHERE d.income_bucket != $1`, bucket.ExcludedIncome)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: eligible zips")
	}
	out := make(map[string]bool, len(zips))
	for _, z := range zips {
		out[z] = true
	}
	return out, nil
}

func (s *PostgresStore) IncomeDistribution(ctx context.Context) ([]model.BucketCount, error) {
	counts, err := s.counts(ctx, `SELECT income_bucket, COUNT(*) FROM zip_demographics GROUP BY income_bucket ORDER BY income_bucket`)
	return counts, eris.Wrap(err, "postgres: income distribution")
}

func (s *PostgresStore) PopulationDistribution(ctx context.Context) ([]model.BucketCount, error) {
	counts, err := s.counts(ctx, `SELECT population_bucket, COUNT(*) FROM zip_demographics GROUP BY population_bucket`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: population distribution")
	}
	sortPopulationCounts(counts)
	return counts, nil
}

func (s *PostgresStore) counts(ctx context.Context, query string) ([]model.BucketCount, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.BucketCount{}
	for rows.Next() {
		var label *string
		var bc model.BucketCount
		if err := rows.Scan(&label, &bc.Count); err != nil {
			return nil, err
		}
		bc.Bucket = deref(label)
		out = append(out, bc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Coverage(ctx context.Context) (*model.ZIPCoverage, error) {
	var cov model.ZIPCoverage
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT zc.zip_code), COUNT(DISTINCT zd.zip_code)
		FROM zip_coordinates zc
		LEFT JOIN zip_demographics zd ON zc.zip_code = zd.zip_code`).Scan(&cov.TotalZIPs, &cov.WithDemographics)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: zip coverage")
	}
	return &cov, nil
}

func (s *PostgresStore) Summary(ctx context.Context) ([]model.TableSummary, error) {
	out := make([]model.TableSummary, 0, len(Tables))
	for _, table := range Tables {
		ts := model.TableSummary{Name: table}
		countSQL := "SELECT COUNT(*) FROM " + pgx.Identifier{table}.Sanitize()
		if err := s.pool.QueryRow(ctx, countSQL).Scan(&ts.Rows); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", table)
		}

		cols, err := s.strings(ctx,
			`SELECT column_name FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position`,
			table)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: columns %s", table)
		}
		ts.Columns = cols
		out = append(out, ts)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
