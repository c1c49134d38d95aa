package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/blackmichael/bluesky-paper-feed/internal/metrics"
)

// EOFCursor is the pagination cursor that signals the end of a feed.
const EOFCursor = "eof"

// DefaultPageLimit is the page size used when a request omits limit.
const DefaultPageLimit = 50

// bookkeepingTimeout bounds the asynchronous sends issued by a feed request.
const bookkeepingTimeout = 5 * time.Second

// FeedSkeleton is the response body for getFeedSkeleton.
type FeedSkeleton struct {
	Cursor string
	Posts  []SkeletonPost
}

// SkeletonPost is a single entry in a feed skeleton.
type SkeletonPost struct {
	// Post is the AT-URI of the post.
	Post string
}

// FeedDescription describes a single feed served by this generator.
type FeedDescription struct {
	// URI is the AT-URI of the feed generator record.
	URI         string
	Name        string
	Description string
}

// GeneratorDescription is the response body for describeFeedGenerator.
type GeneratorDescription struct {
	DID   string
	Feeds []FeedDescription
}

// FeedIdentity is the static metadata of the feed this service generates.
type FeedIdentity struct {
	ServiceDID  string
	FeedURI     string
	Name        string
	Description string
}

// SkeletonRequest is one getFeedSkeleton call. Viewer is empty for anonymous
// requests; Limit is nil when the caller did not send one.
type SkeletonRequest struct {
	Viewer string
	Limit  *int
	Cursor string
}

// FeedService serves cached feeds page by page and hands bookkeeping off to
// the access-events queue without waiting for it.
type FeedService struct {
	identity     FeedIdentity
	cache        FeedCache
	accessEvents MessageSender
	genRequests  MessageSender
	maxLimit     int
	logger       *slog.Logger
	metrics      *metrics.Pipeline
	now          func() time.Time

	inflight sync.WaitGroup
}

// NewFeedService creates a FeedService. maxLimit caps the page size.
// genRequests may be nil; when set, a cache miss for an identified viewer
// enqueues a single-viewer generation request.
func NewFeedService(identity FeedIdentity, cache FeedCache, accessEvents, genRequests MessageSender, maxLimit int, logger *slog.Logger, m *metrics.Pipeline) *FeedService {
	return &FeedService{
		identity:     identity,
		cache:        cache,
		accessEvents: accessEvents,
		genRequests:  genRequests,
		maxLimit:     maxLimit,
		logger:       logger,
		metrics:      m,
		now:          time.Now,
	}
}

// FeedURI returns the AT-URI of the served feed.
func (s *FeedService) FeedURI() string {
	return s.identity.FeedURI
}

// DescribeGenerator returns the generator metadata.
func (s *FeedService) DescribeGenerator() GeneratorDescription {
	return GeneratorDescription{
		DID: s.identity.ServiceDID,
		Feeds: []FeedDescription{{
			URI:         s.identity.FeedURI,
			Name:        s.identity.Name,
			Description: s.identity.Description,
		}},
	}
}

// ParseCursor parses a pagination cursor. An empty cursor starts at 0.
func ParseCursor(cursor string) (start int, eof bool, err error) {
	switch cursor {
	case "":
		return 0, false, nil
	case EOFCursor:
		return 0, true, nil
	}
	start, err = strconv.Atoi(cursor)
	if err != nil || start < 0 {
		return 0, false, fmt.Errorf("%w: cursor must be a non-negative integer or %q", ErrInvalidRequest, EOFCursor)
	}
	return start, false, nil
}

// Paginate returns items[start:start+limit] and the cursor of the next page.
// The next cursor is EOFCursor once the page is empty or reaches the end.
func Paginate(items []string, start, limit int) (page []string, next string) {
	if start >= len(items) || limit <= 0 {
		return nil, EOFCursor
	}
	end := min(start+limit, len(items))
	page = items[start:end]
	if end >= len(items) {
		return page, EOFCursor
	}
	return page, strconv.Itoa(start + limit)
}

// GetFeedSkeleton returns one page of the viewer's cached feed. It never fails
// because of the cache or the queues: a missing or unreadable cache entry
// degrades to an empty feed.
func (s *FeedService) GetFeedSkeleton(ctx context.Context, req SkeletonRequest) (*FeedSkeleton, error) {
	start, eof, err := ParseCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	if eof {
		return &FeedSkeleton{Cursor: EOFCursor, Posts: []SkeletonPost{}}, nil
	}

	limit := min(DefaultPageLimit, s.maxLimit)
	if req.Limit != nil {
		limit = min(*req.Limit, s.maxLimit)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidRequest)
	}

	items := s.loadFeed(ctx, req.Viewer)
	page, next := Paginate(items, start, limit)

	skeleton := &FeedSkeleton{
		Cursor: next,
		Posts:  make([]SkeletonPost, len(page)),
	}
	recs := make([]FeedItem, len(page))
	for i, uri := range page {
		skeleton.Posts[i] = SkeletonPost{Post: uri}
		recs[i] = FeedItem{Post: uri}
	}

	if req.Viewer != "" {
		event := AccessEvent{
			Viewer:      req.Viewer,
			AccessAt:    s.now().UnixMilli(),
			Limit:       limit,
			CursorStart: start,
			CursorEnd:   start + len(page),
			Recs:        recs,
		}
		if req.Cursor == "" {
			defaultFrom := start
			event.DefaultFrom = &defaultFrom
		}
		s.sendAsync(ctx, "access-events", s.accessEvents, event)
	}

	return skeleton, nil
}

func (s *FeedService) loadFeed(ctx context.Context, viewer string) []string {
	if viewer == "" {
		s.metrics.SkeletonRequests.WithLabelValues("anonymous", "skip").Inc()
		return nil
	}

	items, ok, err := s.cache.GetFeed(ctx, viewer, DefaultAlgorithm)
	switch {
	case err != nil:
		s.metrics.SkeletonRequests.WithLabelValues("viewer", "error").Inc()
		s.logger.Warn("feed cache read failed, serving empty feed", "viewer", viewer, "error", err)
		return nil
	case !ok:
		s.metrics.SkeletonRequests.WithLabelValues("viewer", "miss").Inc()
		if s.genRequests != nil {
			s.sendAsync(ctx, "gen-requests", s.genRequests, GenerationRequest{Users: []string{viewer}})
		}
		return nil
	}
	s.metrics.SkeletonRequests.WithLabelValues("viewer", "hit").Inc()
	return items
}

// sendAsync publishes payload in the background. Failures are logged and
// swallowed.
func (s *FeedService) sendAsync(ctx context.Context, queue string, sender MessageSender, payload any) {
	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		sendCtx, cancel := context.WithTimeout(ctx, bookkeepingTimeout)
		defer cancel()
		if err := sender.Send(sendCtx, payload); err != nil {
			s.metrics.QueueSendFailures.WithLabelValues(queue).Inc()
			s.logger.Warn("best-effort queue send failed", "queue", queue, "error", err)
		}
	}()
}

// Wait blocks until all background sends have finished.
func (s *FeedService) Wait() {
	s.inflight.Wait()
}
