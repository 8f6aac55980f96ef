package fetcher

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

type sheetFixture struct {
	name string
	rows [][]string
}

// saveWorkbook writes the sheets in order and returns the file path.
func saveWorkbook(t *testing.T, sheets ...sheetFixture) string {
	t.Helper()
	wb := xlsx.NewFile()
	for _, s := range sheets {
		sh, err := wb.AddSheet(s.name)
		require.NoError(t, err)
		for _, values := range s.rows {
			r := sh.AddRow()
			for _, v := range values {
				r.AddCell().SetString(v)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "colleges.xlsx")
	require.NoError(t, wb.Save(path))
	return path
}

func TestReadXLSX_FirstSheetByDefault(t *testing.T) {
	path := saveWorkbook(t,
		sheetFixture{"Colleges", [][]string{
			{"NAME", "CITY", "ZIP"},
			{"Harbor College", "Boston", "02110"},
		}},
		sheetFixture{"Notes", [][]string{{"exported 2021"}}},
	)

	rows, err := ReadXLSX(path, "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"NAME", "CITY", "ZIP"},
		{"Harbor College", "Boston", "02110"},
	}, rows)
}

func TestReadXLSX_NamedSheet(t *testing.T) {
	path := saveWorkbook(t,
		sheetFixture{"Notes", [][]string{{"ignore me"}}},
		sheetFixture{"Colleges", [][]string{{"NAME"}, {"Ridge Tech"}}},
	)

	rows, err := ReadXLSX(path, "Colleges")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ridge Tech", rows[1][0])
}

func TestReadXLSX_DropsBlankRows(t *testing.T) {
	path := saveWorkbook(t, sheetFixture{"Colleges", [][]string{
		{"NAME", "ZIP"},
		{"Harbor College", "02110"},
		{"", " "},
		{"Ridge Tech", "80202"},
		{""},
	}})

	rows, err := ReadXLSX(path, "")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Ridge Tech", rows[2][0])
}

func TestReadXLSX_UnknownSheet(t *testing.T) {
	path := saveWorkbook(t, sheetFixture{"Colleges", [][]string{{"NAME"}}})

	_, err := ReadXLSX(path, "Boundaries")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no sheet named "Boundaries"`)
}

func TestReadXLSX_NotAWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colleges.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("NAME,ZIP\n"), 0o644))

	_, err := ReadXLSX(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open")
}

func TestWriteXLSX_ExportReadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xlsx")
	f, err := os.Create(path)
	require.NoError(t, err)

	header := []string{"Name", "Zip", "Website"}
	require.NoError(t, WriteXLSX(f, "Colleges", header, [][]string{
		{"Harbor College", "02110", ""},
		{"Ridge Tech", "80202", "https://ridge.edu"},
	}))
	require.NoError(t, f.Close())

	rows, err := ReadXLSX(path, "Colleges")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "02110", rows[1][1], "ZIP stays text")
	assert.Equal(t, "https://ridge.edu", rows[2][2])
}

func TestWriteXLSX_EmptyTableKeepsHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "Colleges", []string{"Name"}, nil))

	wb, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	assert.Equal(t, "Colleges", wb.Sheets[0].Name)
	require.Len(t, wb.Sheets[0].Rows, 1)
}
