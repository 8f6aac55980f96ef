package db

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig names a keyed bulk write. ZCTA boundaries use
//
//	UpsertConfig{Table: "zip_boundaries", Key: "zip_code", Columns: boundaryColumns}
//
// so re-ingesting a ZCTA rewrites its geometry and measurements in place.
type UpsertConfig struct {
	Table   string
	Key     string
	Columns []string
}

func (c UpsertConfig) validate() error {
	switch {
	case c.Table == "":
		return eris.New("db: upsert: table is required")
	case c.Key == "":
		return eris.Errorf("db: upsert %s: key column is required", c.Table)
	case !slices.Contains(c.Columns, c.Key):
		return eris.Errorf("db: upsert %s: key %q is not among the columns", c.Table, c.Key)
	case len(c.Columns) < 2:
		return eris.Errorf("db: upsert %s: nothing to update besides %q", c.Table, c.Key)
	}
	return nil
}

func (c UpsertConfig) staging() string {
	return c.Table + "_staging"
}

// mergeSQL copies the staging rows into Table, overwriting every non-key
// column of rows whose key already exists.
func (c UpsertConfig) mergeSQL() string {
	cols := make([]string, len(c.Columns))
	var sets []string
	for i, col := range c.Columns {
		cols[i] = pgx.Identifier{col}.Sanitize()
		if col != c.Key {
			sets = append(sets, cols[i]+" = EXCLUDED."+cols[i])
		}
	}
	list := strings.Join(cols, ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		pgx.Identifier{c.Table}.Sanitize(), list, list,
		pgx.Identifier{c.staging()}.Sanitize(),
		pgx.Identifier{c.Key}.Sanitize(),
		strings.Join(sets, ", "))
}

// BulkUpsert COPYs rows into a transaction-scoped staging table shaped like
// Table, then merges them with INSERT ... ON CONFLICT. It returns the number
// of rows inserted or updated.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: begin", cfg.Table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stage := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{cfg.staging()}.Sanitize(), pgx.Identifier{cfg.Table}.Sanitize())
	if _, err := tx.Exec(ctx, stage); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: create staging table", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{cfg.staging()}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: copy into staging", cfg.Table)
	}

	tag, err := tx.Exec(ctx, cfg.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: merge", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: commit", cfg.Table)
	}
	return tag.RowsAffected(), nil
}
