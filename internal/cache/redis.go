package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// keyPrefix namespaces every key this package writes.
const keyPrefix = "collegemap:"

// Redis stores payloads in a Redis server with a per-key TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects lazily; the first command dials the server.
func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		ttl:    ttl,
	}
}

// Get retrieves a cached payload.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: redis get %s", key)
	}
	return b, true, nil
}

// Set stores a payload with the configured TTL.
func (c *Redis) Set(ctx context.Context, key string, data []byte) error {
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return eris.Wrapf(err, "cache: redis set %s", key)
	}
	return nil
}

// Delete removes the given keys.
func (c *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = keyPrefix + k
	}
	if err := c.client.Del(ctx, prefixed...).Err(); err != nil {
		return eris.Wrap(err, "cache: redis delete")
	}
	return nil
}

// Ping checks connectivity.
func (c *Redis) Ping(ctx context.Context) error {
	return eris.Wrap(c.client.Ping(ctx).Err(), "cache: redis ping")
}

// Close releases the client's connections.
func (c *Redis) Close() error {
	return c.client.Close()
}
