package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// StreamRecords parses header-first CSV and emits each data row as a Record
// keyed by the normalized header. Cells are trimmed and stray quotes are
// tolerated, since the college export mixes quoted and bare fields.
// Both channels close when the input is exhausted or ctx is done.
func StreamRecords(ctx context.Context, r io.Reader) (<-chan Record, <-chan error) {
	recCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		var header []string
		for line := 1; ; line++ {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrap(err, "csv: cancelled")
				return
			}

			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- eris.Wrapf(err, "csv: line %d", line)
				return
			}
			for i := range row {
				row[i] = strings.TrimSpace(row[i])
			}

			if header == nil {
				header = NormalizeHeader(row)
				continue
			}

			select {
			case recCh <- NewRecord(header, row):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: cancelled")
				return
			}
		}
	}()

	return recCh, errCh
}
