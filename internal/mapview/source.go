package mapview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sells-group/college-map/internal/fetcher"
	"github.com/sells-group/college-map/internal/model"
)

// Dataset endpoint paths.
const (
	PathColleges   = "/get_colleges"
	PathBoundaries = "/get_boundaries"
)

// Source supplies the two datasets. store.Store satisfies it directly.
type Source interface {
	Colleges(ctx context.Context) ([]model.College, error)
	Boundaries(ctx context.Context) ([]model.Boundary, error)
}

// FetchError reports a failed dataset fetch: a transport error, a non-2xx
// status, or an undecodable body.
type FetchError struct {
	Endpoint   string
	StatusCode int // 0 unless the server answered with an error status
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("mapview: fetch %s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("mapview: fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPSource fetches datasets from a running backend.
type HTTPSource struct {
	baseURL string
	fetcher fetcher.Fetcher
}

// NewHTTPSource creates an HTTPSource rooted at baseURL. The fetcher should be
// configured without retries.
func NewHTTPSource(baseURL string, f fetcher.Fetcher) *HTTPSource {
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), fetcher: f}
}

// Colleges fetches /get_colleges.
func (s *HTTPSource) Colleges(ctx context.Context) ([]model.College, error) {
	return getJSON[model.College](ctx, s, PathColleges)
}

// Boundaries fetches /get_boundaries.
func (s *HTTPSource) Boundaries(ctx context.Context) ([]model.Boundary, error) {
	return getJSON[model.Boundary](ctx, s, PathBoundaries)
}

func getJSON[T any](ctx context.Context, s *HTTPSource, path string) ([]T, error) {
	body, err := s.fetcher.Download(ctx, s.baseURL+path)
	if err != nil {
		fe := &FetchError{Endpoint: path, Err: err}
		var se *fetcher.StatusError
		if errors.As(err, &se) {
			fe.StatusCode = se.StatusCode
		}
		return nil, fe
	}
	defer body.Close() //nolint:errcheck

	records, err := fetcher.CollectJSONArray[T](ctx, body)
	if err != nil {
		return nil, &FetchError{Endpoint: path, Err: err}
	}
	return records, nil
}
