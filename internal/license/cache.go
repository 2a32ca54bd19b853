package license

import (
	"sync"
	"time"
)

// Cache holds resolved install entries with a TTL. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache. A non-positive ttl disables caching.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *Cache) Get(installID string) (Entry, bool) {
	if c.ttl <= 0 {
		return Entry{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[installID]
	if !ok {
		return Entry{}, false
	}
	if c.now().Sub(entry.CachedAt) > c.ttl {
		delete(c.entries, installID)
		return Entry{}, false
	}
	return entry, true
}

func (c *Cache) Put(installID string, entry Entry) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.CachedAt = c.now()
	c.entries[installID] = entry
}

func (c *Cache) Delete(installID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, installID)
}
