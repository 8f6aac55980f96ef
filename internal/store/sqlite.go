package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/college-map/internal/bucket"
	"github.com/sells-group/college-map/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS colleges (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT,
	address    TEXT,
	city       TEXT,
	state      TEXT,
	zip        TEXT,
	telephone  TEXT,
	population INTEGER,
	county     TEXT,
	countyfips TEXT,
	country    TEXT,
	latitude   REAL,
	longitude  REAL,
	website    TEXT
);

CREATE TABLE IF NOT EXISTS zip_coordinates (
	zip_code  TEXT PRIMARY KEY,
	city      TEXT,
	state     TEXT,
	latitude  REAL,
	longitude REAL
);

CREATE TABLE IF NOT EXISTS zip_demographics (
	zip_code                TEXT PRIMARY KEY,
	median_household_income INTEGER,
	population              INTEGER,
	income_bucket           TEXT,
	population_bucket       TEXT
);

CREATE TABLE IF NOT EXISTS zip_boundaries (
	zip_code         TEXT PRIMARY KEY,
	geometry         TEXT,
	area_sq_meters   REAL,
	perimeter_meters REAL
);

CREATE INDEX IF NOT EXISTS idx_colleges_zip ON colleges(zip);
CREATE INDEX IF NOT EXISTS idx_zip_demographics_income ON zip_demographics(income_bucket);
CREATE INDEX IF NOT EXISTS idx_zip_demographics_population ON zip_demographics(population_bucket);
CREATE INDEX IF NOT EXISTS idx_zip_demographics_zip ON zip_demographics(zip_code);
CREATE INDEX IF NOT EXISTS idx_zip_coordinates_zip ON zip_coordinates(zip_code);
CREATE INDEX IF NOT EXISTS idx_zip_boundaries_zip ON zip_boundaries(zip_code);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteCollegesQuery = `
SELECT c.name, c.address, c.city, c.state, c.zip, c.telephone, c.population,
       c.county, c.countyfips, c.country, c.website,
       zc.latitude, zc.longitude, zd.income_bucket, zd.population_bucket
FROM colleges c
JOIN zip_demographics zd ON c.zip = zd.zip_code
JOIN zip_coordinates zc ON c.zip = zc.zip_code
WHERE zd.income_bucket != ?
ORDER BY c.name`

func (s *SQLiteStore) Colleges(ctx context.Context) ([]model.College, error) {
	rows, err := s.db.QueryContext(ctx, sqliteCollegesQuery, bucket.ExcludedIncome)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query colleges")
	}
	defer rows.Close() //nolint:errcheck

	colleges := []model.College{}
	for rows.Next() {
		var c model.College
		var name, address, city, state, zip, phone sql.NullString
		var county, fips, country, website sql.NullString
		var incomeBucket, populationBucket sql.NullString
		var population sql.NullInt64
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&name, &address, &city, &state, &zip, &phone, &population,
			&county, &fips, &country, &website, &lat, &lng, &incomeBucket, &populationBucket); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan college")
		}
		c.Name, c.Address, c.City, c.State = name.String, address.String, city.String, state.String
		c.ZIP, c.Telephone, c.County, c.CountyFIPS = zip.String, phone.String, county.String, fips.String
		c.Country, c.Website = country.String, website.String
		c.IncomeBucket, c.PopulationBucket = incomeBucket.String, populationBucket.String
		if population.Valid {
			c.Population = &population.Int64
		}
		if lat.Valid {
			c.Latitude = &lat.Float64
		}
		if lng.Valid {
			c.Longitude = &lng.Float64
		}
		colleges = append(colleges, c)
	}
	return colleges, eris.Wrap(rows.Err(), "sqlite: iterate colleges")
}

const sqliteBoundariesQuery = `
SELECT DISTINCT zb.zip_code, zb.geometry, zd.income_bucket, zd.population_bucket
FROM zip_boundaries zb
JOIN zip_demographics zd ON zb.zip_code = zd.zip_code
WHERE zd.income_bucket != ?`

func (s *SQLiteStore) Boundaries(ctx context.Context) ([]model.Boundary, error) {
	rows, err := s.db.QueryContext(ctx, sqliteBoundariesQuery, bucket.ExcludedIncome)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query boundaries")
	}
	defer rows.Close() //nolint:errcheck

	boundaries := []model.Boundary{}
	for rows.Next() {
		var zip, geometry, income, population sql.NullString
		if err := rows.Scan(&zip, &geometry, &income, &population); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan boundary")
		}
		boundaries = append(boundaries, model.Boundary{
			ZIPCode:          zip.String,
			Geometry:         geometry.String,
			IncomeBucket:     income.String,
			PopulationBucket: population.String,
		})
	}
	return boundaries, eris.Wrap(rows.Err(), "sqlite: iterate boundaries")
}

func (s *SQLiteStore) IncomeBuckets(ctx context.Context) ([]string, error) {
	labels, err := s.strings(ctx,
		`SELECT DISTINCT income_bucket FROM zip_demographics WHERE income_bucket != ? ORDER BY income_bucket`,
		bucket.ExcludedIncome)
	return labels, eris.Wrap(err, "sqlite: income buckets")
}

func (s *SQLiteStore) PopulationBuckets(ctx context.Context) ([]string, error) {
	labels, err := s.strings(ctx, `SELECT DISTINCT population_bucket FROM zip_demographics`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: population buckets")
	}
	sortPopulation(labels)
	return labels, nil
}

func (s *SQLiteStore) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := []string{}
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ReplaceColleges(ctx context.Context, colleges []model.College) (int64, error) {
	return s.replace(ctx, "colleges",
		`INSERT INTO colleges (name, address, city, state, zip, telephone, population, county, countyfips, country, latitude, longitude, website)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(colleges), func(i int) []any {
			c := colleges[i]
			return []any{c.Name, c.Address, c.City, c.State, c.ZIP, c.Telephone, nullableInt(c.Population),
				c.County, c.CountyFIPS, nullableString(c.Country), nullableFloat(c.Latitude), nullableFloat(c.Longitude),
				nullableString(c.Website)}
		})
}

func (s *SQLiteStore) ReplaceZIPCoordinates(ctx context.Context, coords []model.ZIPCoordinate) (int64, error) {
	return s.replace(ctx, "zip_coordinates",
		`INSERT OR REPLACE INTO zip_coordinates (zip_code, city, state, latitude, longitude) VALUES (?, ?, ?, ?, ?)`,
		len(coords), func(i int) []any {
			z := coords[i]
			return []any{z.ZIPCode, z.City, z.State, z.Latitude, z.Longitude}
		})
}

func (s *SQLiteStore) ReplaceDemographics(ctx context.Context, demos []model.ZIPDemographics) (int64, error) {
	return s.replace(ctx, "zip_demographics",
		`INSERT OR REPLACE INTO zip_demographics (zip_code, median_household_income, population, income_bucket, population_bucket)
		 VALUES (?, ?, ?, ?, ?)`,
		len(demos), func(i int) []any {
			d := demos[i]
			return []any{d.ZIPCode, nullableInt(d.MedianHouseholdIncome), nullableInt(d.Population), d.IncomeBucket, d.PopulationBucket}
		})
}

// replace clears table and inserts n rows built by args, in one transaction.
func (s *SQLiteStore) replace(ctx context.Context, table, insert string, n int, args func(i int) []any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: begin replace %s", table)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return 0, eris.Wrapf(err, "sqlite: clear %s", table)
	}

	inserted, err := insertAll(ctx, tx, insert, n, args)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: insert %s", table)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit replace %s", table)
	}
	return inserted, nil
}

func (s *SQLiteStore) UpsertBoundaries(ctx context.Context, boundaries []model.ZIPBoundary) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert boundaries")
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := insertAll(ctx, tx,
		`INSERT INTO zip_boundaries (zip_code, geometry, area_sq_meters, perimeter_meters) VALUES (?, ?, ?, ?)
		 ON CONFLICT(zip_code) DO UPDATE SET geometry = excluded.geometry,
		   area_sq_meters = excluded.area_sq_meters, perimeter_meters = excluded.perimeter_meters`,
		len(boundaries), func(i int) []any {
			b := boundaries[i]
			return []any{b.ZIPCode, b.Geometry, b.Area, b.Perimeter}
		})
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert boundaries")
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert boundaries")
	}
	return n, nil
}

func insertAll(ctx context.Context, tx *sql.Tx, insert string, n int, args func(i int) []any) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, eris.Wrap(err, "prepare")
	}
	defer stmt.Close() //nolint:errcheck

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return 0, eris.Wrapf(err, "row %d", i)
		}
	}
	return int64(n), nil
}

func (s *SQLiteStore) EligibleZIPs(ctx context.Context) (map[string]bool, error) {
	zips, err := s.strings(ctx, `
		SELECT DISTINCT d.zip_code
		FROM zip_demographics d
		JOIN zip_coordinates c ON d.zip_code = c.zip_code
		WHERE d.income_bucket != ?`, bucket.ExcludedIncome)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: eligible zips")
	}
	out := make(map[string]bool, len(zips))
	for _, z := range zips {
		out[z] = true
	}
	return out, nil
}

func (s *SQLiteStore) IncomeDistribution(ctx context.Context) ([]model.BucketCount, error) {
	counts, err := s.counts(ctx, `SELECT income_bucket, COUNT(*) FROM zip_demographics GROUP BY income_bucket ORDER BY income_bucket`)
	return counts, eris.Wrap(err, "sqlite: income distribution")
}

func (s *SQLiteStore) PopulationDistribution(ctx context.Context) ([]model.BucketCount, error) {
	counts, err := s.counts(ctx, `SELECT population_bucket, COUNT(*) FROM zip_demographics GROUP BY population_bucket`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: population distribution")
	}
	sortPopulationCounts(counts)
	return counts, nil
}

func (s *SQLiteStore) counts(ctx context.Context, query string) ([]model.BucketCount, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := []model.BucketCount{}
	for rows.Next() {
		var label sql.NullString
		var bc model.BucketCount
		if err := rows.Scan(&label, &bc.Count); err != nil {
			return nil, err
		}
		bc.Bucket = label.String
		out = append(out, bc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Coverage(ctx context.Context) (*model.ZIPCoverage, error) {
	var cov model.ZIPCoverage
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT zc.zip_code), COUNT(DISTINCT zd.zip_code)
		FROM zip_coordinates zc
		LEFT JOIN zip_demographics zd ON zc.zip_code = zd.zip_code`).Scan(&cov.TotalZIPs, &cov.WithDemographics)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: zip coverage")
	}
	return &cov, nil
}

func (s *SQLiteStore) Summary(ctx context.Context) ([]model.TableSummary, error) {
	out := make([]model.TableSummary, 0, len(Tables))
	for _, table := range Tables {
		ts := model.TableSummary{Name: table}
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&ts.Rows); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", table)
		}

		rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT name FROM pragma_table_info('%s') ORDER BY cid", table))
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: table info %s", table)
		}
		for rows.Next() {
			var col string
			if err := rows.Scan(&col); err != nil {
				rows.Close() //nolint:errcheck
				return nil, eris.Wrapf(err, "sqlite: scan column %s", table)
			}
			ts.Columns = append(ts.Columns, col)
		}
		rows.Close() //nolint:errcheck
		out = append(out, ts)
	}
	return out, nil
}
