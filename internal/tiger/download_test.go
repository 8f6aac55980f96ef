package tiger

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/college-map/internal/fetcher"
)

// archiveFetcher serves one in-memory archive and counts downloads.
type archiveFetcher struct {
	archive []byte
	err     error
	calls   int
}

func (a *archiveFetcher) Download(context.Context, string) (io.ReadCloser, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return io.NopCloser(bytes.NewReader(a.archive)), nil
}

func (a *archiveFetcher) DownloadToFile(_ context.Context, _ string, path string) (int64, error) {
	a.calls++
	if a.err != nil {
		return 0, a.err
	}
	return int64(len(a.archive)), os.WriteFile(path, a.archive, 0o644)
}

var _ fetcher.Fetcher = (*archiveFetcher)(nil)

const zctaURL = "https://www2.census.gov/geo/tiger/TIGER2023/ZCTA520/tl_2023_us_zcta520.zip"

func tigerArchive(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, "stub "+name)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDownload_ExtractsShapefileSet(t *testing.T) {
	f := &archiveFetcher{archive: tigerArchive(t,
		"tl_2023_us_zcta520.shp", "tl_2023_us_zcta520.dbf", "tl_2023_us_zcta520.shx", "tl_2023_us_zcta520.prj")}
	dir := t.TempDir()

	shp, err := Download(context.Background(), f, zctaURL, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tl_2023_us_zcta520", "tl_2023_us_zcta520.shp"), shp)
	assert.FileExists(t, strings.TrimSuffix(shp, ".shp")+".dbf")
	assert.FileExists(t, filepath.Join(dir, "tl_2023_us_zcta520.zip"))
}

func TestDownload_CachedArchive(t *testing.T) {
	f := &archiveFetcher{archive: tigerArchive(t, "zcta.shp")}
	dir := t.TempDir()

	for range 2 {
		_, err := Download(context.Background(), f, zctaURL, dir)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.calls)
}

func TestDownload_CorruptCacheIsRefetched(t *testing.T) {
	f := &archiveFetcher{archive: tigerArchive(t, "zcta.shp")}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tl_2023_us_zcta520.zip"), []byte("<html>maintenance</html>"), 0o644))

	shp, err := Download(context.Background(), f, zctaURL, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)
	assert.FileExists(t, shp)
}

func TestDownload_ArchiveWithoutShapefile(t *testing.T) {
	f := &archiveFetcher{archive: tigerArchive(t, "tl_2023_us_zcta520.shp.xml", "README.txt")}

	_, err := Download(context.Background(), f, zctaURL, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .shp file in tl_2023_us_zcta520.zip")
}

func TestDownload_FetchFailure(t *testing.T) {
	f := &archiveFetcher{err: &fetcher.StatusError{StatusCode: 404, Host: "www2.census.gov"}}
	dir := t.TempDir()

	_, err := Download(context.Background(), f, zctaURL, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tiger: download shapefile")
	assert.NoFileExists(t, filepath.Join(dir, "tl_2023_us_zcta520.zip"))
}

func TestDownload_RejectsNonZipBeforeFetching(t *testing.T) {
	f := &archiveFetcher{}
	dir := filepath.Join(t.TempDir(), "never")

	_, err := Download(context.Background(), f, "https://www2.census.gov/geo/zcta.tar.gz", dir)
	require.Error(t, err)
	assert.Zero(t, f.calls)
	assert.NoDirExists(t, dir)
}

func TestArchiveName(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr string
	}{
		{"ftp://ftp2.census.gov/geo/tiger/TIGER2023/ZCTA520/tl_2023_us_zcta520.zip", "tl_2023_us_zcta520.zip", ""},
		{"https://mirror.example.org/ZCTA.ZIP?token=x", "ZCTA.ZIP", ""},
		{"https://www2.census.gov/", "", "no archive name"},
		{"https://www2.census.gov/geo/zcta.tar.gz", "", "expected a .zip archive"},
	}
	for _, tt := range tests {
		got, err := archiveName(tt.url)
		if tt.wantErr != "" {
			require.Error(t, err, tt.url)
			assert.Contains(t, err.Error(), tt.wantErr)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got)
	}
}
