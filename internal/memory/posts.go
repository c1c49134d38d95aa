// Package memory provides in-process implementations of the pipeline's
// stores, cache and queues. They back STORAGE_BACKEND=memory and the tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

// PostStore is an in-memory domain.PostRepository. It counts physical calls
// so tests can assert on write coalescing.
type PostStore struct {
	mu    sync.Mutex
	posts map[string]domain.PaperPost

	PutCalls    int
	DeleteCalls int
}

// NewPostStore creates an empty post store.
func NewPostStore() *PostStore {
	return &PostStore{posts: make(map[string]domain.PaperPost)}
}

func (s *PostStore) PutPosts(_ context.Context, posts []domain.PaperPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PutCalls++
	for _, p := range posts {
		if _, ok := s.posts[p.URI]; ok {
			continue
		}
		s.posts[p.URI] = p
	}
	return nil
}

func (s *PostStore) MarkPostsDeleted(_ context.Context, uris []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCalls++
	for _, uri := range uris {
		if p, ok := s.posts[uri]; ok {
			p.Status = domain.PostStatusDeleted
			s.posts[uri] = p
		}
	}
	return nil
}

func (s *PostStore) ListRecentByAuthor(_ context.Context, authorDID string, limit int) ([]domain.PaperPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.PaperPost
	for _, p := range s.posts {
		if p.AuthorDID == authorDID && p.Status == domain.PostStatusActive {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.PaperPost) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.URI, a.URI)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get returns the stored post.
func (s *PostStore) Get(uri string) (domain.PaperPost, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[uri]
	return p, ok
}

// Len returns the number of stored rows, including deleted ones.
func (s *PostStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}
