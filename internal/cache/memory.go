package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lucentfeed/lucent/internal/metrics"
)

// memoryBackend is the backend label used in metrics.
const memoryBackend = "memory"

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process Cache with passive TTL expiry: entries are checked
// and evicted on read. PurgeExpired exists so a background sweeper can be
// added without changing the type, but none is required at this scale.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache. m may be nil to disable
// observability.
func NewMemory(m *metrics.Metrics) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		metrics: m,
		now:     time.Now,
	}
}

// Get decodes the cached value for key into dest. Expired entries are
// evicted and reported as misses.
func (c *Memory) Get(_ context.Context, key string, dest any) bool {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if current, stillThere := c.entries[key]; stillThere && c.now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		ok = false
	}

	if !ok {
		c.miss()
		return false
	}

	if err := decode(entry.data, dest); err != nil {
		slog.Warn("failed to decode cached value, treating as miss",
			"key", key,
			"error", err)
		c.err()
		return false
	}

	c.hit()
	return true
}

// Set stores value under key for ttl. Non-positive TTLs are ignored.
func (c *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) {
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

	c.mu.Lock()
	c.entries[key] = memoryEntry{data: data, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// PurgeExpired removes every expired entry and returns how many were evicted.
func (c *Memory) PurgeExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	purged := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			purged++
		}
	}
	return purged
}

// Len returns the number of entries currently held, expired or not.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Memory) hit() {
	if c.metrics != nil {
		c.metrics.IncCacheHit(memoryBackend)
	}
}

func (c *Memory) miss() {
	if c.metrics != nil {
		c.metrics.IncCacheMiss(memoryBackend)
	}
}

func (c *Memory) err() {
	if c.metrics != nil {
		c.metrics.IncCacheError(memoryBackend)
	}
}
