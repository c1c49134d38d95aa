package domain

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blackmichael/bluesky-paper-feed/internal/metrics"
)

// DefaultAlgorithm is the cache key algorithm for the paper feed.
const DefaultAlgorithm = "default"

// GeneratorConfig bounds the work done per viewer.
type GeneratorConfig struct {
	// FollowLimit is how many follows are read per viewer. getFollows serves
	// at most 100 per page, so limits above that page through the graph
	// sequentially instead of reading a single page.
	FollowLimit       int
	FeedLimit         int
	PerAuthorLimit    int
	TTL               time.Duration
	AuthorConcurrency int
	ViewerConcurrency int
}

// DefaultGeneratorConfig returns the standard limits.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		FollowLimit:       5000,
		FeedLimit:         150,
		PerAuthorLimit:    10,
		TTL:               15 * time.Minute,
		AuthorConcurrency: 10,
		ViewerConcurrency: 5,
	}
}

// maxFollowsPage is the largest page app.bsky.graph.getFollows serves.
const maxFollowsPage = 100

// GenerateResult summarises one generation request.
type GenerateResult struct {
	Generated int
	Failed    int
}

// FeedBuilder builds each viewer's candidate feed from the recent paper posts
// of the accounts they follow and writes it to the feed cache.
type FeedBuilder struct {
	graph   SocialGraph
	posts   PostRepository
	cache   FeedCache
	cfg     GeneratorConfig
	logger  *slog.Logger
	metrics *metrics.Pipeline
}

// NewFeedBuilder creates a feed builder.
func NewFeedBuilder(graph SocialGraph, posts PostRepository, cache FeedCache, cfg GeneratorConfig, logger *slog.Logger, m *metrics.Pipeline) *FeedBuilder {
	return &FeedBuilder{
		graph:   graph,
		posts:   posts,
		cache:   cache,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// Process builds feeds for every viewer in the request with bounded
// concurrency. A failing viewer does not abort the others; an error is
// returned only when every viewer failed and at least one failure may succeed
// on retry, so the request is redelivered. Viewers the graph rejects
// outright are not retried.
func (b *FeedBuilder) Process(ctx context.Context, req GenerationRequest) (GenerateResult, error) {
	var (
		mu        sync.Mutex
		result    GenerateResult
		errs      []error
		retryLeft bool
	)

	var g errgroup.Group
	g.SetLimit(b.cfg.ViewerConcurrency)
	for _, viewer := range req.Users {
		g.Go(func() error {
			n, err := b.BuildForViewer(ctx, viewer)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				errs = append(errs, fmt.Errorf("viewer %s: %w", viewer, err))
				retryLeft = retryLeft || retryable(err)
				b.metrics.FeedsFailed.Inc()
				b.logger.Error("feed generation failed",
					"viewer", viewer,
					"batch_id", req.BatchID,
					"error", err,
				)
				return nil
			}
			result.Generated++
			b.metrics.FeedsGenerated.Inc()
			b.metrics.FeedItems.Observe(float64(n))
			return nil
		})
	}
	_ = g.Wait()

	b.logger.Info("generation request processed",
		"batch_id", req.BatchID,
		"generated", result.Generated,
		"failed", result.Failed,
	)

	if result.Failed > 0 && result.Generated == 0 && retryLeft {
		return result, errors.Join(errs...)
	}
	return result, nil
}

// BuildForViewer regenerates one viewer's feed and returns its length.
func (b *FeedBuilder) BuildForViewer(ctx context.Context, viewer string) (int, error) {
	follows, err := b.fetchFollows(ctx, viewer)
	if err != nil {
		return 0, fmt.Errorf("get follows: %w", err)
	}

	perAuthor := make([][]PaperPost, len(follows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.AuthorConcurrency)
	for i, author := range follows {
		g.Go(func() error {
			posts, err := b.posts.ListRecentByAuthor(gctx, author, b.cfg.PerAuthorLimit)
			if err != nil {
				return fmt.Errorf("list posts of %s: %w", author, err)
			}
			perAuthor[i] = posts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	items := mergeCandidates(perAuthor, b.cfg.FeedLimit)
	if err := b.cache.PutFeed(ctx, viewer, DefaultAlgorithm, items, b.cfg.TTL); err != nil {
		return 0, fmt.Errorf("put feed: %w", err)
	}
	return len(items), nil
}

// fetchFollows pages through the viewer's follows until FollowLimit is reached
// or the graph reports no further pages.
func (b *FeedBuilder) fetchFollows(ctx context.Context, viewer string) ([]string, error) {
	var (
		dids   []string
		cursor string
	)
	for len(dids) < b.cfg.FollowLimit {
		page, err := b.graph.GetFollows(ctx, viewer, cursor, min(maxFollowsPage, b.cfg.FollowLimit-len(dids)))
		if err != nil {
			return nil, err
		}
		dids = append(dids, page.DIDs...)
		if page.Cursor == "" || len(page.DIDs) == 0 {
			break
		}
		cursor = page.Cursor
	}
	if len(dids) > b.cfg.FollowLimit {
		dids = dids[:b.cfg.FollowLimit]
	}
	return dids, nil
}

// mergeCandidates flattens the per-author result sets, sorts them globally by
// recency (newest first, ties broken by URI) and truncates to limit. Duplicate
// URIs are kept once.
func mergeCandidates(perAuthor [][]PaperPost, limit int) []string {
	var all []PaperPost
	for _, posts := range perAuthor {
		all = append(all, posts...)
	}

	slices.SortStableFunc(all, func(a, b PaperPost) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.URI, a.URI)
	})

	seen := make(map[string]struct{}, len(all))
	items := make([]string, 0, min(len(all), limit))
	for _, p := range all {
		if len(items) >= limit {
			break
		}
		if _, ok := seen[p.URI]; ok {
			continue
		}
		seen[p.URI] = struct{}{}
		items = append(items, p.URI)
	}
	return items
}
