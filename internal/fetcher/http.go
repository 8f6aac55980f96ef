package fetcher

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// maxBackoff caps both the exponential delay and any Retry-After hint.
const maxBackoff = 30 * time.Second

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration
	// Limiters overrides the per-host limiters. Hosts without an entry
	// share DefaultRate.
	Limiters map[string]*AdaptiveLimiter
}

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Minute
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "college-map/1.0"
	}
	return o
}

// HTTPFetcher downloads over HTTP(S), retrying transport errors, 429s and 5xx
// responses with jittered exponential backoff under a per-host rate limit.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
	limits *hostLimits
}

// NewHTTPFetcher creates an HTTPFetcher; zero options take defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	opts = opts.withDefaults()
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:   opts,
		limits: newHostLimits(opts.Limiters),
	}
}

// attemptError is a failed attempt that may be retried after wait.
type attemptError struct {
	err  error
	wait time.Duration
}

// send performs one attempt. It returns the response when no retry is needed.
func (f *HTTPFetcher) send(ctx context.Context, req *http.Request, lim *AdaptiveLimiter) (*http.Response, *attemptError) {
	resp, err := f.client.Do(req.Clone(ctx))
	if err != nil {
		return nil, &attemptError{err: err}
	}
	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		zap.L().Warn("fetcher: throttled",
			zap.String("host", req.URL.Host),
			zap.Float64("new_rate", float64(lim.OnRateLimit())),
		)
		return nil, &attemptError{err: eris.Errorf("http 429 from %s", req.URL.Host), wait: retryAfter(resp)}
	case code >= 500:
		_ = resp.Body.Close()
		return nil, &attemptError{err: eris.Errorf("http %d from %s", code, req.URL.Host), wait: retryAfter(resp)}
	default:
		lim.OnSuccess()
		return resp, nil
	}
}

func (f *HTTPFetcher) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	lim := f.limits.forURL(req.URL)

	var last *attemptError
	for attempt := range f.opts.MaxRetries {
		if attempt > 0 {
			if err := sleepCtx(ctx, max(f.backoff(attempt-1), last.wait)); err != nil {
				return nil, eris.Wrap(err, "fetcher: wait to retry")
			}
		}
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limit")
		}

		resp, failed := f.send(ctx, req, lim)
		if failed == nil {
			return resp, nil
		}
		last = failed
		zap.L().Warn("fetcher: attempt failed",
			zap.String("url", req.URL.Redacted()),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", f.opts.MaxRetries),
			zap.Error(failed.err),
		)
	}
	return nil, eris.Wrapf(last.err, "fetcher: gave up after %d attempts", f.opts.MaxRetries)
}

// backoff returns BaseBackoff*2^attempt plus up to 50% jitter, capped.
func (f *HTTPFetcher) backoff(attempt int) time.Duration {
	d := min(f.opts.BaseBackoff<<attempt, maxBackoff)
	if d <= 0 {
		d = maxBackoff
	}
	if half := int64(d / 2); half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

// retryAfter reads a delay-seconds Retry-After header. HTTP-date values and
// absent headers give zero.
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Download fetches the URL and returns the body of a 200 response. Other
// non-retryable statuses come back as *StatusError.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: build request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Host: req.URL.Host}
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL into path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	return writeFile(body, path)
}

// StatusError reports a non-retryable, non-200 response.
type StatusError struct {
	StatusCode int
	Host       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: unexpected status %d from %s", e.StatusCode, e.Host)
}
