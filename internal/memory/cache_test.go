package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedCache_Expiry(t *testing.T) {
	now := time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC)
	c := NewFeedCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.PutFeed(ctx, "did:plc:v", "alg", []string{"a", "b"}, time.Minute))

	items, ok, err := c.GetFeed(ctx, "did:plc:v", "alg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, items)

	_, ok, _ = c.GetFeed(ctx, "did:plc:v", "other")
	assert.False(t, ok)

	now = now.Add(time.Minute)
	_, ok, err = c.GetFeed(ctx, "did:plc:v", "alg")
	require.NoError(t, err)
	assert.False(t, ok, "entry expires at its ttl")
}

func TestFeedCache_EmptyFeedIsAHit(t *testing.T) {
	c := NewFeedCache()
	require.NoError(t, c.PutFeed(context.Background(), "did:plc:v", "alg", nil, time.Minute))

	items, ok, err := c.GetFeed(context.Background(), "did:plc:v", "alg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, items)
}
