package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

// UserStore is an in-memory domain.UserRepository.
type UserStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

// NewUserStore creates a store seeded with the given users.
func NewUserStore(users ...domain.User) *UserStore {
	s := &UserStore{users: make(map[string]*domain.User, len(users))}
	for _, u := range users {
		s.users[u.DID] = &u
	}
	return s
}

func (s *UserStore) ListActive(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dids []string
	for did, u := range s.users {
		if !u.OptOut && !u.Deactivated {
			dids = append(dids, did)
		}
	}
	slices.Sort(dids)
	return dids, nil
}

func (s *UserStore) Get(_ context.Context, did string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[did]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) RecordAccess(_ context.Context, did string, at time.Time, consentIncrement int) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.getOrCreate(did, at)
	u.AccessCount++
	u.ConsentAccesses += int64(consentIncrement)
	u.LastAccessAt = at
	cp := *u
	return &cp, nil
}

func (s *UserStore) SetFlags(_ context.Context, did string, optOut, deactivated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.getOrCreate(did, time.Now().UTC())
	u.OptOut = optOut
	u.Deactivated = deactivated
	return nil
}

func (s *UserStore) getOrCreate(did string, at time.Time) *domain.User {
	u, ok := s.users[did]
	if !ok {
		u = &domain.User{DID: did, CreatedAt: at}
		s.users[did] = u
	}
	return u
}

// AccessLog is an in-memory domain.AccessLogRepository.
type AccessLog struct {
	mu      sync.Mutex
	entries []domain.AccessLogEntry
}

// NewAccessLog creates an empty access log.
func NewAccessLog() *AccessLog {
	return &AccessLog{}
}

func (l *AccessLog) LogAccess(_ context.Context, entry domain.AccessLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of the logged rows in insertion order.
func (l *AccessLog) Entries() []domain.AccessLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}
