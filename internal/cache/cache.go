package cache

import (
	"sync"
	"time"
)

// DefaultCompactionThreshold is the entry count above which Put sweeps
// expired entries. TTL bounds growth in practice, so this is amortized
// cleanup rather than an eviction policy.
const DefaultCompactionThreshold = 100

// Entry is a cached value together with the time it was stored and the TTL
// it was stored with. Entries are never mutated in place, only replaced.
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
	TTL      time.Duration
}

// Fresh reports whether the entry is still within its TTL at the given time.
func (e Entry[V]) Fresh(now time.Time) bool {
	return now.Sub(e.StoredAt) <= e.TTL
}

// Cache is a keyed TTL cache. Get only returns fresh entries; GetStale
// returns expired ones too, which callers use as a degraded fallback when a
// remote fetch fails.
//
// Safe for concurrent use. Concurrent writers to the same key race with
// last-write-wins semantics; entries are idempotent recomputations of the
// same remote truth, so that is acceptable.
type Cache[V any] struct {
	mu        sync.RWMutex
	entries   map[string]Entry[V]
	threshold int
	now       func() time.Time
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock replaces the cache's time source. Tests use this to expire
// entries without sleeping.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// WithCompactionThreshold overrides the entry count that triggers an expired
// entry sweep during Put.
func WithCompactionThreshold[V any](n int) Option[V] {
	return func(c *Cache[V]) {
		c.threshold = n
	}
}

// New creates an empty cache.
func New[V any](opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		entries:   make(map[string]Entry[V]),
		threshold: DefaultCompactionThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the entry for key if it exists and is still fresh. Expired
// entries are treated as absent; they are left in place for GetStale.
func (c *Cache[V]) Get(key string) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !entry.Fresh(c.now()) {
		var zero Entry[V]
		return zero, false
	}
	return entry, true
}

// GetStale returns the entry for key regardless of freshness. The second
// return reports presence, the third reports whether the entry is stale.
func (c *Cache[V]) GetStale(key string) (Entry[V], bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero Entry[V]
		return zero, false, false
	}
	return entry, true, !entry.Fresh(c.now())
}

// Put inserts or replaces the entry for key, stamped with the current time.
func (c *Cache[V]) Put(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = Entry[V]{Value: value, StoredAt: now, TTL: ttl}

	if len(c.entries) > c.threshold {
		c.compact(now)
	}
}

// Invalidate removes the entry for key, if any.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry[V])
}

// Len returns the number of entries, fresh or stale.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// compact drops expired entries. Caller must hold the write lock.
func (c *Cache[V]) compact(now time.Time) {
	for key, entry := range c.entries {
		if !entry.Fresh(now) {
			delete(c.entries, key)
		}
	}
}
