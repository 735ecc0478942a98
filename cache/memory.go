package cache

import (
	"context"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jonwraymond/notegate/observe"
)

// MemoryCache is a bounded in-memory LRU with an optional TTL.
type MemoryCache[V any] struct {
	lru       *lru.LRU[string, V]
	metrics   observe.Metrics
	evictions atomic.Uint64

	// deleting holds keys removed through Delete so the eviction callback
	// can tell explicit removals from capacity or TTL evictions.
	deleting sync.Map
}

// NewMemoryCache creates a new in-memory cache sized by policy. A nil
// metrics recorder is replaced with a no-op.
func NewMemoryCache[V any](policy Policy, metrics observe.Metrics) *MemoryCache[V] {
	capacity := policy.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	c := &MemoryCache[V]{metrics: metrics}
	c.lru = lru.NewLRU[string, V](capacity, c.onEvict, policy.EffectiveTTL())
	return c
}

func (c *MemoryCache[V]) onEvict(key string, _ V) {
	if _, ok := c.deleting.Load(key); ok {
		return
	}
	c.evictions.Add(1)
	c.metrics.RecordCacheEviction(context.Background(), 1)
}

// Get retrieves a value from the cache. Returns (zero, false) on miss or expiry.
func (c *MemoryCache[V]) Get(_ context.Context, key string) (V, bool) {
	return c.lru.Get(key)
}

// Set stores a value, replacing any existing entry for key.
func (c *MemoryCache[V]) Set(_ context.Context, key string, value V) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	c.lru.Add(key, value)
	return nil
}

// Delete removes a value from the cache.
func (c *MemoryCache[V]) Delete(_ context.Context, key string) error {
	c.deleting.Store(key, struct{}{})
	c.lru.Remove(key)
	c.deleting.Delete(key)
	return nil
}

// Keys returns the live keys, oldest first.
func (c *MemoryCache[V]) Keys() []string {
	return c.lru.Keys()
}

// Len returns the number of entries in the cache.
func (c *MemoryCache[V]) Len() int {
	return c.lru.Len()
}

// Evictions returns the number of entries dropped for capacity or expiry.
func (c *MemoryCache[V]) Evictions() uint64 {
	return c.evictions.Load()
}
