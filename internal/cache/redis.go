package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/metrics"
	"ResearchDigest/internal/ports"
)

const redisPrefix = "researchdigest:cache:"

// Redis shares connector responses between processes.
type Redis struct {
	client  *redis.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

var _ ports.ItemCache = (*Redis)(nil)

// NewRedis parses a redis URL (or bare address) and builds the cache.
func NewRedis(url string, logger *slog.Logger, m *metrics.Metrics) *Redis {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	return NewRedisWithClient(redis.NewClient(opt), logger, m)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, logger *slog.Logger, m *metrics.Metrics) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, logger: logger, metrics: m}
}

// Get decodes the cached items; any redis or decode error is a miss.
func (c *Redis) Get(ctx context.Context, key string) ([]domain.Item, bool) {
	raw, err := c.client.Get(ctx, redisPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.metrics.CacheLookup(false)
		return nil, false
	}
	var items []domain.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		c.logger.Warn("cache decode failed", "key", key, "error", err)
		c.metrics.CacheLookup(false)
		return nil, false
	}
	c.metrics.CacheLookup(true)
	return items, true
}

// Set encodes items and stores them with an expiry.
func (c *Redis) Set(ctx context.Context, key string, items []domain.Item, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, redisPrefix+key, raw, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// TTL returns the remaining lifetime of key.
func (c *Redis) TTL(ctx context.Context, key string) time.Duration {
	ttl, err := c.client.TTL(ctx, redisPrefix+key).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

// Close releases the redis connection pool.
func (c *Redis) Close() error {
	return c.client.Close()
}
