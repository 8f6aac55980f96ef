// Package fetcher downloads ingest inputs over HTTP and FTP and reads the
// CSV, JSON, XLSX, and ZIP formats they arrive in.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Multi routes downloads to the HTTP or FTP fetcher by URL scheme.
type Multi struct {
	HTTP Fetcher
	FTP  Fetcher
}

// New returns a Multi backed by an HTTPFetcher and an FTPFetcher.
func New(httpOpts HTTPOptions, ftpOpts FTPOptions) *Multi {
	return &Multi{
		HTTP: NewHTTPFetcher(httpOpts),
		FTP:  NewFTPFetcher(ftpOpts),
	}
}

func (m *Multi) route(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	switch u.Scheme {
	case "http", "https":
		return m.HTTP, nil
	case "ftp":
		return m.FTP, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

// Download fetches rawURL with the fetcher for its scheme.
func (m *Multi) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := m.route(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

// DownloadToFile fetches rawURL into path with the fetcher for its scheme.
func (m *Multi) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	f, err := m.route(rawURL)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, rawURL, path)
}

// writeFile drains body into path through a temp file in the same directory,
// so an interrupted download never leaves a partial file at path.
func writeFile(body io.ReadCloser, path string) (n int64, err error) {
	defer body.Close() //nolint:errcheck

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".part-*")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if n, err = io.Copy(tmp, body); err != nil {
		return n, eris.Wrapf(err, "fetcher: write %s", filepath.Base(path))
	}
	if err = tmp.Close(); err != nil {
		return n, eris.Wrap(err, "fetcher: close file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return n, eris.Wrap(err, "fetcher: move file into place")
	}
	return n, nil
}
