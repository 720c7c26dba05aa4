package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Sources reported by GetOrFetch.
const (
	SourceCache = "cache"
	SourceRPC   = "rpc"
)

type item[V any] struct {
	val       V
	expiresAt time.Time
}

// Cache provides a TTL cache with singleflight coalescing per key. Expired
// items are swept on write, at most once per TTL.
type Cache[V any] struct {
	mu        sync.RWMutex
	items     map[string]item[V]
	ttl       time.Duration
	lastSweep time.Time
	group     singleflight.Group
}

func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{items: make(map[string]item[V]), ttl: ttl}
}

// GetOrFetch returns a cached value if valid; otherwise it coalesces concurrent
// fetches for the same key using singleflight and stores the result.
// Returns the value, source ("cache" or "rpc"), and error if fetching failed.
// Failed fetches are not cached.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, string, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	if ok && time.Now().Before(it.expiresAt) {
		v := it.val
		c.mu.RUnlock()
		return v, SourceCache, nil
	}
	c.mu.RUnlock()

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, "", err
	}
	return res.(V), SourceRPC, nil
}

// Set stores v under key for one TTL.
func (c *Cache[V]) Set(key string, v V) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item[V]{val: v, expiresAt: now.Add(c.ttl)}
	if now.Sub(c.lastSweep) >= c.ttl {
		c.sweepLocked(now)
	}
}

// Sweep removes every expired item.
func (c *Cache[V]) Sweep() {
	c.mu.Lock()
	c.sweepLocked(time.Now())
	c.mu.Unlock()
}

func (c *Cache[V]) sweepLocked(now time.Time) {
	for k, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, k)
		}
	}
	c.lastSweep = now
}

// Invalidate drops key so the next GetOrFetch goes to the source.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len returns the number of items in the cache (for tests).
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
