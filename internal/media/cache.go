// Package media resolves Telegram file references into fetchable URLs and
// memoizes successful resolutions for a fixed time-to-live.
package media

import (
	"sync"
	"time"

	"tgfeed/internal/metrics"
)

// DefaultTTL is how long a resolved URL stays usable. Telegram download
// links are valid for at least one hour.
const DefaultTTL = time.Hour

type cacheEntry struct {
	url       string
	expiresAt time.Time
}

// Cache maps file ids to resolved URLs. An entry is usable only when queried
// strictly before its expiry; expired entries are evicted on read.
// Entries are independent, so a single RWMutex is enough.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an empty cache. A non-positive ttl falls back to DefaultTTL.
func NewCache(ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the cached URL for key if it has not expired.
func (c *Cache) Get(key string) (string, bool) {
	url, ok := c.peek(key)
	if ok {
		metrics.MediaCacheHits.Inc()
	} else {
		metrics.MediaCacheMisses.Inc()
	}
	return url, ok
}

// peek is Get without hit/miss accounting.
func (c *Cache) peek(key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}

	now := c.now()
	if !now.Before(entry.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, still := c.entries[key]; still && !now.Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false
	}
	return entry.url, true
}

// Set stores url for key, expiring after the cache TTL.
func (c *Cache) Set(key, url string) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{url: url, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops expired entries and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
