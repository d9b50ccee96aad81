// Package cache provides an in-memory key/value cache with per-entry TTL.
// Expired entries are reclaimed lazily on the next Get for their key; Clear
// is the only way to reclaim entries that are never looked up again.
package cache

import (
	"sync"
	"time"
)

// entry pairs a stored value with its expiry instant.
type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a TTL cache safe for concurrent use. Capacity is unbounded;
// callers control lifetime through TTLs. Inject one per process (or per
// test) rather than sharing a package global.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key, or ok=false if the key is absent or
// expired. An expired entry is evicted atomically with the lookup.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}

	return e.value, true
}

// Set stores value under key for ttl. A zero or negative ttl stores an
// already-expired entry.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
}

// Len returns the number of stored entries, including any not yet reclaimed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
