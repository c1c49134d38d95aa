package domain

import "time"

// PostStatus is the lifecycle state of a persisted paper post. Posts are never
// physically removed; a delete event flips the status to PostStatusDeleted.
type PostStatus string

const (
	PostStatusActive  PostStatus = "active"
	PostStatusDeleted PostStatus = "deleted"
)

// PaperPost represents a post that matched the paper classifier and is stored
// in our database.
type PaperPost struct {
	// URI is the AT-URI of the post (e.g. at://did:plc:abc/app.bsky.feed.post/3l3qo2vuowo2b).
	// It is the primary key.
	URI string

	// CID is the content identifier of the record.
	CID string

	// AuthorDID is the DID of the post's author.
	AuthorDID string

	// CreatedAt is the post creation time in epoch seconds.
	CreatedAt int64

	// CreatedAtDay is the UTC calendar day of CreatedAt (YYYY-MM-DD).
	CreatedAtDay string

	// IndexedAt is when we indexed this post.
	IndexedAt time.Time

	// SearchText is the case-folded text the classifier matched against.
	SearchText string

	// ReplyRoot and ReplyParent are the AT-URIs of the reply chain, empty for
	// top-level posts.
	ReplyRoot   string
	ReplyParent string

	Status PostStatus
}

// CreatedAtDayOf formats epoch seconds as the UTC day used for CreatedAtDay.
func CreatedAtDayOf(epochSeconds int64) string {
	return time.Unix(epochSeconds, 0).UTC().Format(time.DateOnly)
}
