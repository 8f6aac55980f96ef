package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyCache fails every call while down is set.
type flakyCache struct {
	*Memory
	down  bool
	calls int
}

func (f *flakyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.calls++
	if f.down {
		return nil, false, errors.New("connection refused")
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyCache) Set(ctx context.Context, key string, data []byte) error {
	f.calls++
	if f.down {
		return errors.New("connection refused")
	}
	return f.Memory.Set(ctx, key, data)
}

func TestGuarded_OpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	inner := &flakyCache{Memory: NewMemory(4, time.Hour), down: true}
	g := NewGuarded(inner, BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for range 3 {
		_, _, err := g.Get(ctx, "colleges")
		require.Error(t, err)
	}
	assert.Equal(t, BreakerOpen, g.State())

	// Open: calls short-circuit to a miss without touching the backend.
	_, ok, err := g.Get(ctx, "colleges")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, g.Set(ctx, "colleges", []byte("[]")))
	assert.Equal(t, 3, inner.calls)
}

func TestGuarded_HalfOpenTrial(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	inner := &flakyCache{Memory: NewMemory(4, time.Hour), down: true}
	g := NewGuarded(inner, BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	g.nowFunc = func() time.Time { return now }

	_, _, err := g.Get(ctx, "k")
	require.Error(t, err)
	require.Equal(t, BreakerOpen, g.State())

	// A failed trial reopens the circuit.
	now = now.Add(2 * time.Minute)
	assert.Equal(t, BreakerHalfOpen, g.State())
	_, _, err = g.Get(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, BreakerOpen, g.State())

	// A successful trial closes it.
	now = now.Add(2 * time.Minute)
	inner.down = false
	require.NoError(t, g.Set(ctx, "k", []byte("v")))
	assert.Equal(t, BreakerClosed, g.State())

	got, ok, err := g.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestGuarded_SuccessResetsFailures(t *testing.T) {
	ctx := context.Background()
	inner := &flakyCache{Memory: NewMemory(4, time.Hour), down: true}
	g := NewGuarded(inner, BreakerConfig{FailureThreshold: 2})

	_, _, _ = g.Get(ctx, "k")
	inner.down = false
	_, _, _ = g.Get(ctx, "k")
	inner.down = true
	_, _, _ = g.Get(ctx, "k")
	assert.Equal(t, BreakerClosed, g.State())
}

func TestGuarded_DelegatesPingAndClose(t *testing.T) {
	g := NewGuarded(NewMemory(1, 0), BreakerConfig{})
	assert.NoError(t, g.Ping(context.Background()))
	assert.NoError(t, g.Close())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
}
