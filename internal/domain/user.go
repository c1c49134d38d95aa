package domain

import "time"

// User is a feed viewer.
type User struct {
	DID             string
	Handle          string
	DisplayName     string
	CreatedAt       time.Time
	LastAccessAt    time.Time
	AccessCount     int64
	ConsentAccesses int64
	OptOut          bool
	Deactivated     bool
}

// AccessLogEntry is one append-only audit row of what a viewer was shown.
type AccessLogEntry struct {
	ID          string
	DID         string
	AccessAt    time.Time
	RecsShown   string
	CursorStart int
	CursorEnd   int
	DefaultFrom *int
}

// FeedItem is one post reference in a feed skeleton.
type FeedItem struct {
	Post string `json:"post"`
}

// AccessEvent is the payload the serving endpoint enqueues for bookkeeping.
// AccessAt is in epoch milliseconds. DefaultFrom is set only when the request
// carried no explicit cursor.
type AccessEvent struct {
	Viewer      string     `json:"viewer"`
	AccessAt    int64      `json:"accessAt"`
	Limit       int        `json:"limit"`
	CursorStart int        `json:"cursorStart"`
	CursorEnd   int        `json:"cursorEnd"`
	DefaultFrom *int       `json:"defaultFrom,omitempty"`
	Recs        []FeedItem `json:"recs"`
}

// GenerationRequest asks the feed builder to regenerate feeds for Users.
// GenerateAgg is true only for the first batch of a dispatch run.
type GenerationRequest struct {
	Users       []string `json:"users"`
	BatchID     int      `json:"batchId"`
	GenerateAgg bool     `json:"generateAgg"`
}
