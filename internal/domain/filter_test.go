package domain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
	"github.com/blackmichael/bluesky-paper-feed/internal/memory"
)

func newFilter(t *testing.T, store domain.PostRepository) *domain.FilterStage {
	t.Helper()
	return domain.NewFilterStage(defaultClassifier(t), domain.NewWriteCoalescer(store, newMetrics()), discardLogger)
}

func TestFilterStage_CreateThenDeleteInOneBatch(t *testing.T) {
	store := memory.NewPostStore()
	stage := newFilter(t, store)

	create := createEvent(t, "did:plc:alice", "3k1", "https://arxiv.org/abs/2401.01234", 1_000_000)
	batch := domain.RawEventBatch{Events: []domain.RawEvent{
		create,
		deleteEvent("did:plc:alice", "3k1", 2_000_000),
	}}

	result, err := stage.ProcessBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, domain.FilterResult{Events: 2, Puts: 1, Deletes: 1}, result)

	require.Equal(t, 1, store.Len())
	post, ok := store.Get(create.URI)
	require.True(t, ok)
	assert.Equal(t, domain.PostStatusDeleted, post.Status)
}

func TestFilterStage_RedeliveryIsIdempotent(t *testing.T) {
	store := memory.NewPostStore()
	stage := newFilter(t, store)

	batch := domain.RawEventBatch{Events: []domain.RawEvent{
		createEvent(t, "did:plc:alice", "3k1", "https://arxiv.org/abs/2401.01234", 1_000_000),
		createEvent(t, "did:plc:bob", "3k2", "brunch pics", 1_100_000),
		createEvent(t, "did:plc:carol", "3k3", "doi.org/10.1126/science.abc123 is out", 1_200_000),
	}}

	for range 2 {
		result, err := stage.ProcessBatch(context.Background(), batch)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Puts)
		assert.Equal(t, 1, result.Ignored)
	}

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 2, store.PutCalls)
	assert.Zero(t, store.DeleteCalls)
}

func TestFilterStage_DeleteOfUnknownPost(t *testing.T) {
	store := memory.NewPostStore()
	stage := newFilter(t, store)

	_, err := stage.ProcessBatch(context.Background(), domain.RawEventBatch{
		Events: []domain.RawEvent{deleteEvent("did:plc:alice", "gone", 1)},
	})
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}
