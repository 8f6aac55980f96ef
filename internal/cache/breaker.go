package cache

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BreakerState is the state of a Guarded cache's circuit.
type BreakerState int

// Breaker states.
const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when a Guarded cache stops calling its backend.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Default: 5.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before one trial request is
	// let through. Default: 30s.
	ResetTimeout time.Duration
}

// Guarded wraps a remote Cache with a circuit breaker. While the circuit is
// open, Get reports a miss and Set and Delete do nothing, so callers fall
// through to the store without paying for a dead backend on every request.
type Guarded struct {
	inner Cache
	cfg   BreakerConfig
	log   *zap.Logger

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time

	nowFunc func() time.Time
}

// NewGuarded wraps inner.
func NewGuarded(inner Cache, cfg BreakerConfig) *Guarded {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Guarded{
		inner:   inner,
		cfg:     cfg,
		log:     zap.L().With(zap.String("component", "cache.breaker")),
		nowFunc: time.Now,
	}
}

// Get implements Cache.
func (g *Guarded) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !g.allow() {
		return nil, false, nil
	}
	b, ok, err := g.inner.Get(ctx, key)
	g.record(err)
	return b, ok, err
}

// Set implements Cache.
func (g *Guarded) Set(ctx context.Context, key string, data []byte) error {
	if !g.allow() {
		return nil
	}
	err := g.inner.Set(ctx, key, data)
	g.record(err)
	return err
}

// Delete implements Cache.
func (g *Guarded) Delete(ctx context.Context, keys ...string) error {
	if !g.allow() {
		return nil
	}
	err := g.inner.Delete(ctx, keys...)
	g.record(err)
	return err
}

// Ping checks the backend when it supports pinging.
func (g *Guarded) Ping(ctx context.Context) error {
	if p, ok := g.inner.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the backend when it holds resources.
func (g *Guarded) Close() error {
	if c, ok := g.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// State returns the current circuit state.
func (g *Guarded) State() BreakerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == BreakerOpen && g.nowFunc().Sub(g.openedAt) >= g.cfg.ResetTimeout {
		return BreakerHalfOpen
	}
	return g.state
}

func (g *Guarded) allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != BreakerOpen {
		return true
	}
	if g.nowFunc().Sub(g.openedAt) >= g.cfg.ResetTimeout {
		g.transition(BreakerHalfOpen)
		return true
	}
	return false
}

func (g *Guarded) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err == nil {
		g.consecutiveFailures = 0
		if g.state == BreakerHalfOpen {
			g.transition(BreakerClosed)
		}
		return
	}

	g.consecutiveFailures++
	switch g.state {
	case BreakerClosed:
		if g.consecutiveFailures >= g.cfg.FailureThreshold {
			g.openedAt = g.nowFunc()
			g.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		g.openedAt = g.nowFunc()
		g.transition(BreakerOpen)
	}
}

func (g *Guarded) transition(to BreakerState) {
	from := g.state
	g.state = to
	g.log.Warn("cache circuit changed state",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}
