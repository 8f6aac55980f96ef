package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Record is one data row keyed by its upper-cased header name.
type Record map[string]string

// Get returns the first non-empty value among keys. Keys are matched
// case-insensitively.
func (r Record) Get(keys ...string) string {
	for _, k := range keys {
		if v := r[strings.ToUpper(k)]; v != "" {
			return v
		}
	}
	return ""
}

// NewRecord pairs header names with row values. Missing trailing cells
// become empty strings; extra cells are dropped.
func NewRecord(header, row []string) Record {
	rec := make(Record, len(header))
	for i, h := range header {
		if i < len(row) {
			rec[h] = row[i]
		} else {
			rec[h] = ""
		}
	}
	return rec
}

// NormalizeHeader upper-cases and trims header names and strips a UTF-8 BOM.
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.ToUpper(strings.TrimSpace(h))
	}
	return out
}

// ReadRecords reads a .csv or .xlsx file whose first row is a header and
// returns every data row as a Record.
func ReadRecords(ctx context.Context, path string) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := ReadXLSX(path, "")
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, nil
		}
		header := NormalizeHeader(rows[0])
		out := make([]Record, 0, len(rows)-1)
		for _, row := range rows[1:] {
			out = append(out, NewRecord(header, row))
		}
		return out, nil
	case ".csv", ".txt":
		return readCSVRecords(ctx, path)
	default:
		return nil, eris.Errorf("records: unsupported file type %q", filepath.Ext(path))
	}
}

func readCSVRecords(ctx context.Context, path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "records: open")
	}
	defer f.Close() //nolint:errcheck

	recCh, errCh := StreamRecords(ctx, f)
	var out []Record
	for rec := range recCh {
		out = append(out, rec)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "records: %s", filepath.Base(path))
	}
	return out, nil
}
