// Package cache holds encoded API payloads in front of the store.
package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/college-map/internal/config"
)

// Cache stores encoded payloads by key. A miss returns (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// New builds the cache selected by cfg.Driver. Redis is wrapped in a circuit
// breaker. The "none" driver returns a nil Cache, which callers treat as
// caching disabled.
func New(cfg config.CacheConfig) (Cache, error) {
	ttl := time.Duration(cfg.TTLSecs) * time.Second
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg.MaxEntries, ttl), nil
	case "redis":
		return NewGuarded(NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, ttl), BreakerConfig{}), nil
	case "none":
		return nil, nil
	default:
		return nil, eris.Errorf("cache: unsupported driver %q", cfg.Driver)
	}
}
