package memory

import (
	"context"
	"slices"
	"sync"
	"time"
)

type cacheEntry struct {
	items     []string
	expiresAt time.Time
}

// FeedCache is an in-memory domain.FeedCache with TTL expiry.
type FeedCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewFeedCache creates an empty cache.
func NewFeedCache() *FeedCache {
	return &FeedCache{entries: make(map[string]cacheEntry), now: time.Now}
}

func cacheKey(viewer, algorithm string) string {
	return "feed:" + viewer + ":" + algorithm
}

func (c *FeedCache) GetFeed(_ context.Context, viewer, algorithm string) ([]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(viewer, algorithm)
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return slices.Clone(e.items), true, nil
}

func (c *FeedCache) PutFeed(_ context.Context, viewer, algorithm string, items []string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(viewer, algorithm)] = cacheEntry{
		items:     slices.Clone(items),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}
