package memory

import (
	"context"
	"sync"
	"time"

	"github.com/V4T54L/event-counter/internal/domain"
)

type cacheEntry struct {
	count     uint64
	expiresAt time.Time
}

// CountCache implements domain.CountCache in process memory with a TTL. It
// holds at most maxEntries live entries; when full, new counts are not cached.
type CountCache struct {
	mu         sync.RWMutex
	entries    map[domain.CountFilter]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewCountCache creates an in-process cache.
func NewCountCache(ttl time.Duration, maxEntries int) *CountCache {
	return &CountCache{
		entries:    make(map[domain.CountFilter]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *CountCache) Get(ctx context.Context, filter domain.CountFilter) (uint64, bool, error) {
	c.mu.RLock()
	entry, found := c.entries[filter]
	c.mu.RUnlock()

	if found && c.now().Before(entry.expiresAt) {
		return entry.count, true, nil
	}
	return 0, false, nil
}

func (c *CountCache) Set(ctx context.Context, filter domain.CountFilter, count uint64) error {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[filter]; !exists && len(c.entries) >= c.maxEntries {
		c.evictExpired(now)
		if len(c.entries) >= c.maxEntries {
			return nil
		}
	}
	c.entries[filter] = cacheEntry{count: count, expiresAt: now.Add(c.ttl)}
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *CountCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictExpired must be called with mu held.
func (c *CountCache) evictExpired(now time.Time) {
	for filter, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, filter)
		}
	}
}
