// Package rediskv stores generated feeds in Redis.
package rediskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

// FeedCache implements domain.FeedCache. Each feed is one JSON-encoded list of
// post URIs under feed:<viewer>:<algorithm>, written with SET EX so Redis
// expires it.
type FeedCache struct {
	client redis.Cmdable
}

// NewFeedCache wraps an existing client.
func NewFeedCache(client redis.Cmdable) *FeedCache {
	return &FeedCache{client: client}
}

// Key returns the cache key for a viewer's feed.
func Key(viewer, algorithm string) string {
	return fmt.Sprintf("feed:%s:%s", viewer, algorithm)
}

func (c *FeedCache) GetFeed(ctx context.Context, viewer, algorithm string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, Key(viewer, algorithm)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &domain.StoreError{Op: "get feed", Err: err}
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, &domain.StoreError{Op: "decode feed", Err: err}
	}
	return items, true, nil
}

func (c *FeedCache) PutFeed(ctx context.Context, viewer, algorithm string, items []string, ttl time.Duration) error {
	if items == nil {
		items = []string{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return &domain.StoreError{Op: "encode feed", Err: err}
	}
	if err := c.client.Set(ctx, Key(viewer, algorithm), raw, ttl).Err(); err != nil {
		return &domain.StoreError{Op: "put feed", Err: err}
	}
	return nil
}
