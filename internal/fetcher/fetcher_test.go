package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	calls []string
}

func (s *stubFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	s.calls = append(s.calls, url)
	return io.NopCloser(nil), nil
}

func (s *stubFetcher) DownloadToFile(_ context.Context, url string, _ string) (int64, error) {
	s.calls = append(s.calls, url)
	return 0, nil
}

func TestMulti_RoutesByScheme(t *testing.T) {
	httpStub, ftpStub := &stubFetcher{}, &stubFetcher{}
	m := &Multi{HTTP: httpStub, FTP: ftpStub}
	ctx := context.Background()

	_, err := m.Download(ctx, "https://www2.census.gov/zcta.zip")
	require.NoError(t, err)
	_, err = m.DownloadToFile(ctx, "http://mirror.local/zcta.zip", "/tmp/x")
	require.NoError(t, err)
	_, err = m.Download(ctx, "ftp://ftp2.census.gov/zcta.zip")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://www2.census.gov/zcta.zip", "http://mirror.local/zcta.zip"}, httpStub.calls)
	assert.Equal(t, []string{"ftp://ftp2.census.gov/zcta.zip"}, ftpStub.calls)
}

func TestMulti_UnsupportedScheme(t *testing.T) {
	m := &Multi{HTTP: &stubFetcher{}, FTP: &stubFetcher{}}

	_, err := m.Download(context.Background(), "s3://bucket/zcta.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported scheme "s3"`)

	_, err = m.DownloadToFile(context.Background(), "file:///tmp/zcta.zip", "/tmp/out")
	require.Error(t, err)
}

func TestNew_DownloadsOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("zip-bytes")) //nolint:errcheck
	}))
	defer srv.Close()

	m := New(HTTPOptions{Timeout: 5 * time.Second}, FTPOptions{})
	body, err := m.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(data))
}

func TestWriteFile_TruncatedBodyLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tl_2020_us_zcta520.zip")
	body := io.NopCloser(io.MultiReader(strings.NewReader("PK\x03\x04"), iotest.ErrReader(io.ErrUnexpectedEOF)))

	_, err := writeFile(body, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial download is removed")
}

func TestWriteFile_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colleges.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	n, err := writeFile(io.NopCloser(strings.NewReader("NAME\nHarbor\n")), path)
	require.NoError(t, err)
	assert.Equal(t, int64(len("NAME\nHarbor\n")), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "NAME\nHarbor\n", string(data))
}
