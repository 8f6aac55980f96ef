package fetcher

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX returns the cell text of one sheet. An empty sheet name selects
// the first sheet. Rows whose cells are all blank are dropped, which strips
// the formatted-but-empty tail spreadsheet exports tend to carry.
func ReadXLSX(path, sheet string) ([][]string, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}

	var sh *xlsx.Sheet
	switch {
	case sheet != "":
		sh = wb.Sheet[sheet]
		if sh == nil {
			return nil, eris.Errorf("xlsx: no sheet named %q", sheet)
		}
	case len(wb.Sheets) > 0:
		sh = wb.Sheets[0]
	default:
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	var out [][]string
	for _, row := range sh.Rows {
		cells := make([]string, len(row.Cells))
		blank := true
		for i, c := range row.Cells {
			cells[i] = c.String()
			if strings.TrimSpace(cells[i]) != "" {
				blank = false
			}
		}
		if !blank {
			out = append(out, cells)
		}
	}
	return out, nil
}

// WriteXLSX writes header and rows as text cells on a single named sheet.
func WriteXLSX(w io.Writer, sheet string, header []string, rows [][]string) error {
	wb := xlsx.NewFile()
	sh, err := wb.AddSheet(sheet)
	if err != nil {
		return eris.Wrapf(err, "xlsx: add sheet %q", sheet)
	}

	for _, values := range append([][]string{header}, rows...) {
		r := sh.AddRow()
		for _, v := range values {
			r.AddCell().SetString(v)
		}
	}

	if err := wb.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}
