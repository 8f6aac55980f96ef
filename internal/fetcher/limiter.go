package fetcher

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultRate applies to hosts without a configured limiter.
const DefaultRate rate.Limit = 20

// AdaptiveLimiter is a token bucket that speeds up 20% after each success and
// halves after a 429. The rate stays within [base/4, base*2].
type AdaptiveLimiter struct {
	mu   sync.Mutex
	lim  *rate.Limiter
	base rate.Limit
}

// NewAdaptiveLimiter returns a limiter starting at r events per second.
func NewAdaptiveLimiter(r rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{lim: rate.NewLimiter(r, burst), base: r}
}

// Wait blocks until a request may be sent or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.lim.Wait(ctx)
}

// OnSuccess raises the rate.
func (a *AdaptiveLimiter) OnSuccess() { a.scale(1.2) }

// OnRateLimit lowers the rate and returns the new value.
func (a *AdaptiveLimiter) OnRateLimit() rate.Limit { return a.scale(0.5) }

func (a *AdaptiveLimiter) scale(f float64) rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := min(max(a.lim.Limit()*rate.Limit(f), a.base/4), a.base*2)
	a.lim.SetLimit(next)
	return next
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	return a.lim.Limit()
}

// DefaultLimiters returns limiters for the Census hosts ingest talks to. The
// data API is throttled harder than the TIGER file server.
func DefaultLimiters() map[string]*AdaptiveLimiter {
	return map[string]*AdaptiveLimiter{
		"api.census.gov":  NewAdaptiveLimiter(5, 5),
		"www2.census.gov": NewAdaptiveLimiter(2, 2),
	}
}

// hostLimits hands out one limiter per host, creating DefaultRate limiters
// for hosts it has not seen.
type hostLimits struct {
	mu     sync.Mutex
	byHost map[string]*AdaptiveLimiter
}

func newHostLimits(seed map[string]*AdaptiveLimiter) *hostLimits {
	if seed == nil {
		seed = DefaultLimiters()
	}
	h := &hostLimits{byHost: make(map[string]*AdaptiveLimiter, len(seed))}
	for host, lim := range seed {
		h.byHost[host] = lim
	}
	return h
}

func (h *hostLimits) forURL(u *url.URL) *AdaptiveLimiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	lim, ok := h.byHost[u.Host]
	if !ok {
		lim = NewAdaptiveLimiter(DefaultRate, int(DefaultRate))
		h.byHost[u.Host] = lim
	}
	return lim
}
