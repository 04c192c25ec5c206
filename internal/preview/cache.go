package preview

import (
	"sync"
	"time"
)

// Cache keeps resolved preview URLs so the same track is not scraped twice.
// An empty URL records a miss.
type Cache struct {
	cache map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
}

type cacheEntry struct {
	url       string
	timestamp time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		cache: make(map[string]cacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a cached preview URL if it exists and is fresh
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.cache[key]
	if !exists {
		return "", false
	}

	if c.now().Sub(entry.timestamp) > c.ttl {
		return "", false
	}

	return entry.url, true
}

// Set stores a preview URL in the cache
func (c *Cache) Set(key, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = cacheEntry{
		url:       url,
		timestamp: c.now(),
	}
}

// Prune drops expired entries and returns how many were removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for key, entry := range c.cache {
		if now.Sub(entry.timestamp) > c.ttl {
			delete(c.cache, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
