// SPDX-License-Identifier: MIT

// Package cache stores upstream API responses for a bounded time.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cutroom/cutroom/internal/metrics"
)

// Cache provides thread-safe caching of serialised values with expiration.
type Cache interface {
	// Get returns the stored bytes, or false when missing or expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string)
	// Stats returns cache statistics.
	Stats() CacheStats
	// Close releases background resources.
	Close() error
}

// CacheStats holds cache performance metrics.
type CacheStats struct {
	Hits        int64 // Number of successful Get operations
	Misses      int64 // Number of failed Get operations (not found or expired)
	Sets        int64 // Number of Set operations
	Evictions   int64 // Number of expired entries cleaned up
	CurrentSize int   // Current number of cached entries
}

// Key joins a namespace and an identifier into a cache key.
func Key(namespace, id string) string {
	return "cutroom:" + namespace + ":" + id
}

// GetJSON loads and decodes a cached value, recording the lookup result.
func GetJSON[T any](ctx context.Context, c Cache, namespace, id string) (T, bool) {
	var zero T
	raw, ok := c.Get(ctx, Key(namespace, id))
	if !ok {
		metrics.RecordCacheLookup(namespace, false)
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		metrics.RecordCacheLookup(namespace, false)
		return zero, false
	}
	metrics.RecordCacheLookup(namespace, true)
	return v, true
}

// SetJSON encodes v and stores it. Encoding failures are silently skipped.
func SetJSON(ctx context.Context, c Cache, namespace, id string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(ctx, Key(namespace, id), raw, ttl)
}

type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return now.After(e.expiration)
}

// memoryCache is an in-memory implementation of Cache.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	stats   CacheStats
	janitor *janitor
	now     func() time.Time
}

// NewMemoryCache creates a new in-memory cache. A positive cleanupInterval
// starts a janitor goroutine that removes expired entries until Close.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
			done:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}
	return c
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.isExpired(c.now()) {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.value, true
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	c.entries[key] = &entry{value: stored, expiration: c.now().Add(ttl)}
	c.stats.Sets++
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

// deleteExpired removes all expired entries and returns how many were dropped.
func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for key, e := range c.entries {
		if e.isExpired(now) {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

// Close stops the janitor and waits for it to exit.
func (c *memoryCache) Close() error {
	if c.janitor != nil {
		c.janitor.stopOnce.Do(func() { close(c.janitor.stop) })
		<-c.janitor.done
	}
	return nil
}

type janitor struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (j *janitor) run(c *memoryCache) {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache anything.
func NewNoOpCache() Cache {
	return noOpCache{}
}

func (noOpCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (noOpCache) Set(context.Context, string, []byte, time.Duration) {}
func (noOpCache) Delete(context.Context, string)                     {}
func (noOpCache) Stats() CacheStats                                  { return CacheStats{} }
func (noOpCache) Close() error                                       { return nil }
