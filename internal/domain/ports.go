package domain

import (
	"context"
	"time"
)

// PostRepository defines persistence operations for paper posts.
type PostRepository interface {
	// PutPosts inserts all posts in one round trip. Posts whose URI already
	// exists, in the store or earlier in the slice, are silently ignored.
	PutPosts(ctx context.Context, posts []PaperPost) error

	// MarkPostsDeleted sets status=deleted for every URI in one round trip.
	// Unknown URIs are ignored.
	MarkPostsDeleted(ctx context.Context, uris []string) error

	// ListRecentByAuthor returns up to limit active posts by the author,
	// newest first.
	ListRecentByAuthor(ctx context.Context, authorDID string, limit int) ([]PaperPost, error)
}

// CursorRepository persists the firehose ingestion cursor. The ingestor is its
// only writer.
type CursorRepository interface {
	// GetCursor returns the last committed stream offset. ok is false when no
	// cursor has been saved yet.
	GetCursor(ctx context.Context) (cursor int64, ok bool, err error)

	// UpdateCursor persists the offset so ingestion can resume on restart.
	UpdateCursor(ctx context.Context, cursor int64) error
}

// UserRepository defines persistence operations for feed viewers.
type UserRepository interface {
	// ListActive returns the DIDs of users that have not opted out and are
	// not deactivated.
	ListActive(ctx context.Context) ([]string, error)

	// Get returns the user, or nil when unknown.
	Get(ctx context.Context, did string) (*User, error)

	// RecordAccess creates the user if needed, increments AccessCount by one
	// and ConsentAccesses by consentIncrement, and returns the updated user.
	RecordAccess(ctx context.Context, did string, at time.Time, consentIncrement int) (*User, error)

	// SetFlags creates the user if needed and sets the dispatch eligibility flags.
	SetFlags(ctx context.Context, did string, optOut, deactivated bool) error
}

// AccessLogRepository appends access audit rows.
type AccessLogRepository interface {
	LogAccess(ctx context.Context, entry AccessLogEntry) error
}

// FeedCache stores generated feeds. It is a disposable projection and is
// treated as best-effort.
type FeedCache interface {
	// GetFeed returns the cached post URIs. ok is false when absent or expired.
	GetFeed(ctx context.Context, viewer, algorithm string) (items []string, ok bool, err error)

	// PutFeed replaces the cached feed wholesale.
	PutFeed(ctx context.Context, viewer, algorithm string, items []string, ttl time.Duration) error
}

// Follows is one page of a viewer's follow list.
type Follows struct {
	DIDs   []string
	Cursor string
}

// SocialGraph looks up who a viewer follows.
type SocialGraph interface {
	// GetFollows returns one page of follows. cursor is empty for the first
	// page; an empty Follows.Cursor means there are no more pages.
	GetFollows(ctx context.Context, did, cursor string, limit int) (*Follows, error)
}

// MessageSender publishes a payload onto a queue. Delivery to consumers is
// at-least-once.
type MessageSender interface {
	Send(ctx context.Context, payload any) error
}
