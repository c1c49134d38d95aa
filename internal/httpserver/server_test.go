package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/bluesky-paper-feed/internal/config"
	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
	"github.com/blackmichael/bluesky-paper-feed/internal/memory"
	"github.com/blackmichael/bluesky-paper-feed/internal/metrics"
	"github.com/blackmichael/bluesky-paper-feed/internal/queue"
)

const viewerDID = "did:plc:viewer"

type fixture struct {
	server       *Server
	feeds        *domain.FeedService
	cache        *memory.FeedCache
	accessEvents *memory.Queue
	genRequests  *memory.Queue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.NewPipeline(reg)

	cfg := &config.Config{
		Hostname:     "feed.example.com",
		PublisherDID: "did:plc:owner",
		FeedRKey:     "papers",
		Port:         0,
	}
	f := &fixture{
		cache:        memory.NewFeedCache(),
		accessEvents: memory.NewQueue(queue.AccessEvents, logger),
		genRequests:  memory.NewQueue(queue.GenRequests, logger),
	}
	f.feeds = domain.NewFeedService(domain.FeedIdentity{
		ServiceDID:  cfg.ServiceDID(),
		FeedURI:     cfg.FeedURI(),
		Name:        "Paper Skygest",
		Description: "Papers from people you follow",
	}, f.cache, f.accessEvents, f.genRequests, 150, logger, m)
	f.server = NewServer(cfg, f.feeds, reg, logger)
	return f
}

func bearer(t *testing.T, iss string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": iss}).SignedString([]byte("k"))
	require.NoError(t, err)
	return "Bearer " + token
}

func (f *fixture) get(t *testing.T, target, authHeader string) (*httptest.ResponseRecorder, skeletonResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	f.feeds.Wait()

	var body skeletonResponse
	if rec.Code == http.StatusOK && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestGetFeedSkeleton_Pagination(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.PutFeed(context.Background(), viewerDID, domain.DefaultAlgorithm, []string{"A", "B"}, time.Hour))
	auth := bearer(t, viewerDID)

	rec, body := f.get(t, "/xrpc/app.bsky.feed.getFeedSkeleton?limit=1", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", body.Cursor)
	assert.Equal(t, []domain.FeedItem{{Post: "A"}}, body.Feed)

	rec, body = f.get(t, "/xrpc/app.bsky.feed.getFeedSkeleton?limit=1&cursor=1", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.EOFCursor, body.Cursor)
	assert.Equal(t, []domain.FeedItem{{Post: "B"}}, body.Feed)

	rec, body = f.get(t, "/xrpc/app.bsky.feed.getFeedSkeleton?limit=1&cursor=2", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.EOFCursor, body.Cursor)
	assert.Empty(t, body.Feed)

	assert.Equal(t, 3, f.accessEvents.Len())
}

func TestGetFeedSkeleton_AccessEvent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.PutFeed(context.Background(), viewerDID, domain.DefaultAlgorithm, []string{"A", "B", "C"}, time.Hour))

	rec, _ := f.get(t, "/xrpc/app.bsky.feed.getFeedSkeleton?limit=2", bearer(t, viewerDID))
	require.Equal(t, http.StatusOK, rec.Code)

	msgs := f.accessEvents.Messages()
	require.Len(t, msgs, 1)
	var event domain.AccessEvent
	require.NoError(t, json.Unmarshal(msgs[0].Body, &event))
	assert.Equal(t, viewerDID, event.Viewer)
	assert.Equal(t, 2, event.Limit)
	assert.Equal(t, 0, event.CursorStart)
	assert.Equal(t, 2, event.CursorEnd)
	require.NotNil(t, event.DefaultFrom)
	assert.Equal(t, 0, *event.DefaultFrom)
	assert.Equal(t, []domain.FeedItem{{Post: "A"}, {Post: "B"}}, event.Recs)
}

func TestGetFeedSkeleton_Anonymous(t *testing.T) {
	f := newFixture(t)

	rec, body := f.get(t, "/xrpc/app.bsky.feed.getFeedSkeleton", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body.Feed)
	assert.Equal(t, domain.EOFCursor, body.Cursor)
	assert.Zero(t, f.accessEvents.Len())
	assert.Zero(t, f.genRequests.Len())
}

func TestGetFeedSkeleton_MalformedCredentialIsAnonymous(t *testing.T) {
	f := newFixture(t)

	rec, body := f.get(t, "/xrpc/app.bsky.feed.getFeedSkeleton", "Bearer garbage")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body.Feed)
	assert.Zero(t, f.accessEvents.Len())
}

func TestGetFeedSkeleton_CacheMissRequestsGeneration(t *testing.T) {
	f := newFixture(t)

	rec, body := f.get(t, "/xrpc/app.bsky.feed.getFeedSkeleton", bearer(t, viewerDID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body.Feed)

	msgs := f.genRequests.Messages()
	require.Len(t, msgs, 1)
	var req domain.GenerationRequest
	require.NoError(t, json.Unmarshal(msgs[0].Body, &req))
	assert.Equal(t, []string{viewerDID}, req.Users)
}

func TestGetFeedSkeleton_EOF(t *testing.T) {
	f := newFixture(t)

	rec, body := f.get(t, "/xrpc/app.bsky.feed.getFeedSkeleton?cursor=eof", bearer(t, viewerDID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.EOFCursor, body.Cursor)
	assert.Empty(t, body.Feed)
	assert.Zero(t, f.accessEvents.Len())
}

func TestGetFeedSkeleton_QueueFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.accessEvents.SetSendErr(assert.AnError)
	require.NoError(t, f.cache.PutFeed(context.Background(), viewerDID, domain.DefaultAlgorithm, []string{"A"}, time.Hour))

	rec, body := f.get(t, "/xrpc/app.bsky.feed.getFeedSkeleton", bearer(t, viewerDID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []domain.FeedItem{{Post: "A"}}, body.Feed)
}

func TestGetFeedSkeleton_BadRequests(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{
		"/xrpc/app.bsky.feed.getFeedSkeleton?limit=abc",
		"/xrpc/app.bsky.feed.getFeedSkeleton?limit=0",
		"/xrpc/app.bsky.feed.getFeedSkeleton?cursor=-3",
		"/xrpc/app.bsky.feed.getFeedSkeleton?cursor=next",
		"/xrpc/app.bsky.feed.getFeedSkeleton?feed=at://did:plc:other/app.bsky.feed.generator/x",
	} {
		rec, _ := f.get(t, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestDescribeFeedGenerator(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/xrpc/app.bsky.feed.describeFeedGenerator", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		DID   string         `json:"did"`
		Feeds []feedResponse `json:"feeds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "did:web:feed.example.com", body.DID)
	require.Len(t, body.Feeds, 1)
	assert.Equal(t, "at://did:plc:owner/app.bsky.feed.generator/papers", body.Feeds[0].URI)
	assert.Equal(t, "Paper Skygest", body.Feeds[0].Name)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	f.get(t, "/xrpc/app.bsky.feed.getFeedSkeleton", "")

	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `paperfeed_skeleton_requests_total{cache="skip",viewer="anonymous"} 1`)
}

func TestDIDDocument(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/did.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"did:web:feed.example.com"`)
	assert.Contains(t, rec.Body.String(), `"serviceEndpoint":"https://feed.example.com"`)
}
