package features

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/getkayan/kayan-link/core/tenant"
)

// RedisGate caches gate decisions in Redis for distributed deployments.
// A Redis failure falls through to the inner gate rather than failing the
// operation.
type RedisGate struct {
	client *redis.Client
	inner  Gate
	prefix string
	ttl    time.Duration
}

// NewRedisGate creates a Redis-backed cache in front of inner.
func NewRedisGate(client *redis.Client, inner Gate, prefix string, ttl time.Duration) *RedisGate {
	if prefix == "" {
		prefix = "kayanlink:features:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisGate{client: client, inner: inner, prefix: prefix, ttl: ttl}
}

func (g *RedisGate) key(app tenant.AppID, feature string) string {
	return g.prefix + string(app) + ":" + feature
}

func (g *RedisGate) IsEnabled(ctx context.Context, app tenant.AppID, feature string) (bool, error) {
	key := g.key(app, feature)

	val, err := g.client.Get(ctx, key).Result()
	if err == nil {
		return val == "1", nil
	}

	enabled, err := g.inner.IsEnabled(ctx, app, feature)
	if err != nil {
		return false, err
	}

	cached := "0"
	if enabled {
		cached = "1"
	}
	// Best effort; a failed write only costs a cache miss next time.
	g.client.Set(ctx, key, cached, g.ttl)

	return enabled, nil
}

// Invalidate drops the cached decision for one application feature.
func (g *RedisGate) Invalidate(ctx context.Context, app tenant.AppID, feature string) error {
	return g.client.Del(ctx, g.key(app, feature)).Err()
}
