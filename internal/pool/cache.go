package pool

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiry
}

// Cache is a fixed-capacity LRU with an optional per-entry TTL. Reads that
// hit an expired entry evict it and report a miss. A Cache is created fresh
// per pipeline run when correctness depends on run-scoped freshness.
type Cache[K comparable, V any] struct {
	lru    *lru.Cache[K, cacheEntry[V]]
	ttl    time.Duration
	flight singleflight.Group
}

// NewCache creates a cache holding at most size entries. defaultTTL of zero
// disables expiry unless SetTTL is used per entry.
func NewCache[K comparable, V any](size int, defaultTTL time.Duration) *Cache[K, V] {
	if size <= 0 {
		size = 128
	}
	c, err := lru.New[K, cacheEntry[V]](size)
	if err != nil {
		// lru.New only fails on non-positive size, which is guarded above.
		panic(err)
	}
	return &Cache[K, V]{lru: c, ttl: defaultTTL}
}

// Get returns the cached value for key, treating expired entries as misses.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.lru.Remove(key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key with the cache's default TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL stores value under key with an entry-specific TTL (zero = no expiry).
// Writes beyond capacity evict the least-recently-used entry.
func (c *Cache[K, V]) SetTTL(key K, value V, ttl time.Duration) {
	entry := cacheEntry[V]{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.lru.Add(key, entry)
}

// Len returns the number of live entries, counting not-yet-evicted expired ones.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// GetOrFetch returns the cached value for key or runs fetch once, caching the
// result. Concurrent callers for the same key share a single in-flight fetch,
// so a retried fetch is not duplicated across pool workers. Errors are not
// cached.
func (c *Cache[K, V]) GetOrFetch(ctx context.Context, key K, fetch func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.flight.Do(fmt.Sprintf("%v", key), func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}
