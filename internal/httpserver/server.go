package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackmichael/bluesky-paper-feed/internal/auth"
	"github.com/blackmichael/bluesky-paper-feed/internal/config"
	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

// Server is the HTTP server that serves feed generator XRPC endpoints.
type Server struct {
	cfg         *config.Config
	feedService *domain.FeedService
	logger      *slog.Logger
	handler     http.Handler
	httpServer  *http.Server
}

// NewServer creates a new HTTP server with the given feed service. Metrics
// from gatherer are exposed on /metrics.
func NewServer(cfg *config.Config, feedService *domain.FeedService, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		feedService: feedService,
		logger:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/did.json", s.handleDIDDoc)
	mux.HandleFunc("GET /xrpc/app.bsky.feed.describeFeedGenerator", s.handleDescribeFeedGenerator)
	mux.HandleFunc("GET /xrpc/app.bsky.feed.getFeedSkeleton", s.handleGetFeedSkeleton)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.handler = withLogging(logger, mux)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server and waits for in-flight
// bookkeeping sends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.feedService.Wait()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleDIDDoc(w http.ResponseWriter, _ *http.Request) {
	doc := map[string]any{
		"@context": []string{"https://www.w3.org/ns/did/v1"},
		"id":       s.cfg.ServiceDID(),
		"service": []map[string]any{
			{
				"id":              "#bsky_fg",
				"type":            "BskyFeedGenerator",
				"serviceEndpoint": fmt.Sprintf("https://%s", s.cfg.Hostname),
			},
		},
	}
	writeJSON(w, http.StatusOK, doc)
}

type feedResponse struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleDescribeFeedGenerator(w http.ResponseWriter, _ *http.Request) {
	desc := s.feedService.DescribeGenerator()
	feeds := make([]feedResponse, 0, len(desc.Feeds))
	for _, f := range desc.Feeds {
		feeds = append(feeds, feedResponse{URI: f.URI, Name: f.Name, Description: f.Description})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"did":   desc.DID,
		"feeds": feeds,
	})
}

type skeletonResponse struct {
	Cursor string            `json:"cursor,omitempty"`
	Feed   []domain.FeedItem `json:"feed"`
}

func (s *Server) handleGetFeedSkeleton(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if feedURI := query.Get("feed"); feedURI != "" && feedURI != s.feedService.FeedURI() {
		writeError(w, http.StatusBadRequest, "UnknownFeed", "unknown feed "+feedURI)
		return
	}

	req := domain.SkeletonRequest{Cursor: query.Get("cursor")}
	if l := query.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be an integer")
			return
		}
		req.Limit = &parsed
	}

	viewer, err := auth.IssuerFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		s.logger.Debug("ignoring unreadable credential", "error", err)
		viewer = ""
	}
	req.Viewer = viewer

	skeleton, err := s.feedService.GetFeedSkeleton(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
			return
		}
		s.logger.Error("failed to get feed skeleton", "viewer", viewer, "cursor", req.Cursor, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to get feed")
		return
	}

	s.logger.Debug("getFeedSkeleton success", "viewer", viewer, "posts_returned", len(skeleton.Posts), "next_cursor", skeleton.Cursor)

	resp := skeletonResponse{
		Cursor: skeleton.Cursor,
		Feed:   make([]domain.FeedItem, len(skeleton.Posts)),
	}
	for i, p := range skeleton.Posts {
		resp.Feed[i] = domain.FeedItem{Post: p.Post}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
