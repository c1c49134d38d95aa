package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/bluesky-paper-feed/internal/config"
	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
	"github.com/blackmichael/bluesky-paper-feed/internal/memory"
	"github.com/blackmichael/bluesky-paper-feed/internal/metrics"
)

func newMemoryApp(t *testing.T) *app {
	t.Helper()
	registry := prometheus.NewRegistry()
	a := &app{
		cfg:      &config.Config{ConsentThreshold: 5},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		registry: registry,
		metrics:  metrics.NewPipeline(registry),
	}
	a.useMemory()
	return a
}

func TestFilterHandler_StoresPapersFromQueue(t *testing.T) {
	a := newMemoryApp(t)
	stage, err := a.filterStage()
	require.NoError(t, err)
	ctx := context.Background()

	record, err := json.Marshal(map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      "new preprint https://arxiv.org/abs/2401.01234",
		"createdAt": "2024-09-09T19:46:02.102Z",
	})
	require.NoError(t, err)

	did := "did:plc:author"
	uri := domain.PostURI(did, domain.PostCollection, "3k1")
	cursor := int64(1725911162329308)
	batch := domain.RawEventBatch{
		Cursor: &cursor,
		Events: []domain.RawEvent{{
			Kind:       "commit",
			Operation:  domain.OperationCreate,
			Collection: domain.PostCollection,
			AuthorDID:  did,
			URI:        uri,
			CID:        "bafy1",
			Record:     record,
			TimeUS:     cursor,
		}},
	}
	require.NoError(t, a.rawEvents.Send(ctx, batch))

	raw := a.rawEvents.(*memory.Queue)
	assert.Equal(t, 1, raw.Drain(ctx, filterHandler(stage)))
	assert.Equal(t, 1, raw.Acked())

	post, ok := a.posts.(*memory.PostStore).Get(uri)
	require.True(t, ok)
	assert.Equal(t, did, post.AuthorDID)
	assert.Equal(t, domain.PostStatusActive, post.Status)
}

func TestBookkeepHandler_DropsPoison(t *testing.T) {
	a := newMemoryApp(t)
	ctx := context.Background()

	events := a.accessEvents.(*memory.Queue)
	require.NoError(t, events.Send(ctx, []int{1, 2}))
	require.NoError(t, events.Send(ctx, domain.AccessEvent{Viewer: "did:plc:v", AccessAt: 1}))

	assert.Equal(t, 2, events.Drain(ctx, bookkeepHandler(a.bookkeeper())))
	assert.Zero(t, events.Len())
	assert.Len(t, a.access.(*memory.AccessLog).Entries(), 1)
}
