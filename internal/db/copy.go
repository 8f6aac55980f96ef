package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Replace swaps the contents of table for rows inside one transaction:
// DELETE, then COPY. Readers keep seeing the previous load until commit,
// and an empty rows slice leaves the table empty.
func Replace(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: begin", table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	id := pgx.Identifier{table}
	if _, err := tx.Exec(ctx, "DELETE FROM "+id.Sanitize()); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: delete", table)
	}

	var n int64
	if len(rows) > 0 {
		if n, err = tx.CopyFrom(ctx, id, columns, pgx.CopyFromRows(rows)); err != nil {
			return 0, eris.Wrapf(err, "db: replace %s: copy", table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: commit", table)
	}
	return n, nil
}
