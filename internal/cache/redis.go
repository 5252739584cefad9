package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lucentfeed/lucent/internal/metrics"
)

// redisBackend is the backend label used in metrics.
const redisBackend = "redis"

// keyPrefix namespaces score-cache entries away from other Redis users
// (session records share the same instance).
const keyPrefix = "score:"

// Redis is a Redis-backed Cache. TTL expiry is handled by Redis itself;
// connection and protocol errors degrade to misses so ranking requests never
// fail on cache trouble.
type Redis struct {
	client  *redis.Client
	metrics *metrics.Metrics
}

// NewRedis creates a Redis-backed cache. m may be nil to disable
// observability.
func NewRedis(client *redis.Client, m *metrics.Metrics) *Redis {
	return &Redis{client: client, metrics: m}
}

// Get decodes the cached value for key into dest. redis.Nil is an ordinary
// miss; every other error is counted and also treated as a miss.
func (c *Redis) Get(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			c.miss()
			return false
		}
		slog.Warn("score cache read failed, treating as miss",
			"key", key,
			"error", err)
		c.err()
		return false
	}

	if err := decode(data, dest); err != nil {
		slog.Warn("failed to decode cached value, treating as miss",
			"key", key,
			"error", err)
		c.err()
		return false
	}

	c.hit()
	return true
}

// Set stores value under key for ttl. Non-positive TTLs are ignored; write
// failures are observed but never surfaced.
func (c *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	data, err := encode(value)
	if err != nil {
		slog.Warn("failed to encode value for cache",
			"key", key,
			"error", err)
		c.err()
		return
	}

	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		slog.Warn("score cache write failed",
			"key", key,
			"error", err)
		c.err()
	}
}

func (c *Redis) hit() {
	if c.metrics != nil {
		c.metrics.IncCacheHit(redisBackend)
	}
}

func (c *Redis) miss() {
	if c.metrics != nil {
		c.metrics.IncCacheMiss(redisBackend)
	}
}

func (c *Redis) err() {
	if c.metrics != nil {
		c.metrics.IncCacheError(redisBackend)
	}
}
