// Package cache provides an in-memory TTL cache keyed by normalized query
// text, used to shield external search APIs from repeated queries.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is the freshness window applied when New is given a
// non-positive TTL.
const DefaultTTL = 30 * time.Minute

type entry[V any] struct {
	storedAt time.Time
	value    V
}

// Cache maps normalized queries to values with a fixed time-to-live.
// Expired entries are evicted on read and by ClearExpired; a read never
// returns stale data. Safe for concurrent use.
type Cache[V any] struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]entry[V]
	now     func() time.Time
	hits    uint64
	misses  uint64
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock overrides the cache's time source, for tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// New returns an empty cache whose entries expire after ttl.
func New[V any](ttl time.Duration, opts ...Option[V]) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for query, if present and fresh. Queries
// differing only in case or surrounding whitespace share one entry. An
// expired entry is evicted on the spot and reported as a miss.
func (c *Cache[V]) Get(query string) (V, bool) {
	k := Key(query)
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, k)
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores value for query, overwriting any previous entry and
// restarting its TTL.
func (c *Cache[V]) Set(query string, value V) {
	k := Key(query)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = entry[V]{storedAt: c.now(), value: value}
}

// ClearExpired sweeps the whole cache and reports how many entries it
// removed.
func (c *Cache[V]) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including any not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports cumulative hit and miss counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses}
}

// Stats holds cumulative cache counters.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Sweep runs ClearExpired every interval until ctx is done. Run it on its
// own goroutine; lazy read-time eviction keeps correctness without it, the
// sweep only bounds memory held by queries that never recur.
func (c *Cache[V]) Sweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.ClearExpired()
		}
	}
}
