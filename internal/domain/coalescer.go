package domain

import (
	"context"
	"fmt"

	"github.com/blackmichael/bluesky-paper-feed/internal/metrics"
)

// WriteCoalescer collapses the write intents of one unit of work into at most
// two physical store calls: one insert-or-ignore for all puts, then one
// mark-deleted for all deletes. Puts are always committed before deletes, so a
// create followed by a delete of the same URI converges to deleted.
type WriteCoalescer struct {
	posts   PostRepository
	metrics *metrics.Pipeline
}

// NewWriteCoalescer creates a coalescer over the given post store.
func NewWriteCoalescer(posts PostRepository, m *metrics.Pipeline) *WriteCoalescer {
	return &WriteCoalescer{posts: posts, metrics: m}
}

// Apply executes the puts and deletes. Duplicate URIs within each kind are
// dropped before the store is called; the first put for a URI wins.
func (c *WriteCoalescer) Apply(ctx context.Context, puts []PaperPost, deletes []string) error {
	if unique := dedupePosts(puts); len(unique) > 0 {
		if err := c.posts.PutPosts(ctx, unique); err != nil {
			return fmt.Errorf("put %d posts: %w", len(unique), err)
		}
		c.metrics.StoreWrites.WithLabelValues("put").Inc()
		c.metrics.PostsMatched.Add(float64(len(unique)))
	}

	if unique := dedupeStrings(deletes); len(unique) > 0 {
		if err := c.posts.MarkPostsDeleted(ctx, unique); err != nil {
			return fmt.Errorf("mark %d posts deleted: %w", len(unique), err)
		}
		c.metrics.StoreWrites.WithLabelValues("delete").Inc()
		c.metrics.PostsDeleted.Add(float64(len(unique)))
	}

	return nil
}

func dedupePosts(posts []PaperPost) []PaperPost {
	seen := make(map[string]struct{}, len(posts))
	out := make([]PaperPost, 0, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.URI]; ok {
			continue
		}
		seen[p.URI] = struct{}{}
		out = append(out, p)
	}
	return out
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
