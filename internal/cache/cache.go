// Package cache keeps connector responses for a bounded time.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/metrics"
	"ResearchDigest/internal/ports"
)

// Clock returns the current instant; tests inject a fixed one.
type Clock func() time.Time

// Key builds the cache key of a connector response.
func Key(kind string, window time.Duration, limit int, query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), "+")
	return fmt.Sprintf("%s:%s:%d:%s", kind, window, limit, normalized)
}

type entry struct {
	items     []domain.Item
	expiresAt time.Time
}

// Memory is a size-bounded in-process cache with per-entry expiry.
type Memory struct {
	mu      sync.Mutex
	entries *lru.Cache[string, entry]
	now     Clock
	metrics *metrics.Metrics
}

var _ ports.ItemCache = (*Memory)(nil)

// NewMemory builds a Memory cache holding at most size keys.
func NewMemory(size int, now Clock, m *metrics.Metrics) (*Memory, error) {
	if size <= 0 {
		size = 512
	}
	if now == nil {
		now = time.Now
	}
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Memory{entries: entries, now: now, metrics: m}, nil
}

// Get returns a copy of the cached items when the entry has not expired.
func (c *Memory) Get(_ context.Context, key string) ([]domain.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hit, ok := c.entries.Get(key)
	if ok && !c.now().Before(hit.expiresAt) {
		c.entries.Remove(key)
		ok = false
	}
	c.metrics.CacheLookup(ok)
	if !ok {
		return nil, false
	}
	return append([]domain.Item(nil), hit.items...), true
}

// Set stores items under key until ttl elapses.
func (c *Memory) Set(_ context.Context, key string, items []domain.Item, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Add(key, entry{
		items:     append([]domain.Item(nil), items...),
		expiresAt: c.now().Add(ttl),
	})
}

// TTL returns the remaining lifetime of key, or zero when absent or expired.
func (c *Memory) TTL(_ context.Context, key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	hit, ok := c.entries.Peek(key)
	if !ok {
		return 0
	}
	remaining := hit.expiresAt.Sub(c.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Len reports the number of stored keys, expired ones included.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
