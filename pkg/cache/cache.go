// Package cache deduplicates identical requests. Results are keyed by a
// fingerprint of who asked for what, so a caller retrying the same request
// gets an instant replay instead of spending tokens twice.
package cache

import (
	"sync"
	"time"

	"github.com/easygo-cv/cvforge/pkg/clock"
)

// DefaultExpiry is how long a cached result stays valid.
const DefaultExpiry = 10 * time.Minute

type entry struct {
	result   any
	storedAt time.Time
}

// Cache is an in-memory fingerprint-keyed result store with time-based
// expiry. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	expiry  time.Duration
	clock   clock.Clock
}

// Option configures a Cache.
type Option func(*Cache)

// WithExpiry sets the entry lifetime.
func WithExpiry(d time.Duration) Option {
	return func(c *Cache) { c.expiry = d }
}

// WithClock sets the clock. Useful for testing.
func WithClock(cl clock.Clock) Option {
	return func(c *Cache) { c.clock = cl }
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		expiry:  DefaultExpiry,
		clock:   clock.System{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the stored result for a fingerprint. Expired entries are
// removed on lookup and reported as absent.
func (c *Cache) Get(fingerprint string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(e.storedAt) > c.expiry {
		delete(c.entries, fingerprint)
		return nil, false
	}
	return e.result, true
}

// Put stores a result, overwriting any prior entry for the fingerprint.
func (c *Cache) Put(fingerprint string, result any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = entry{result: result, storedAt: c.clock.Now()}
}

// Len reports the number of stored entries, expired ones included until
// they are swept or looked up.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes all expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for fp, e := range c.entries {
		if now.Sub(e.storedAt) > c.expiry {
			delete(c.entries, fp)
			removed++
		}
	}
	return removed
}
