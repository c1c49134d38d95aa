package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// PostCollection is the AT Proto collection NSID of Bluesky posts.
const PostCollection = "app.bsky.feed.post"

// Operation is the kind of repository commit carried by a RawEvent.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// RawEvent is one observed firehose commit. It is immutable once produced.
type RawEvent struct {
	Kind       string          `json:"kind"`
	Operation  Operation       `json:"operation"`
	Collection string          `json:"collection"`
	AuthorDID  string          `json:"did"`
	URI        string          `json:"uri"`
	CID        string          `json:"cid,omitempty"`
	Record     json.RawMessage `json:"record,omitempty"`
	TimeUS     int64           `json:"timeUs"`
}

// RawEventBatch is the payload forwarded from the ingestor to the filter stage.
// Cursor is the stream time of the last event, nil when no event advanced the
// offset.
type RawEventBatch struct {
	Cursor *int64     `json:"cursor,omitempty"`
	Events []RawEvent `json:"events"`
}

var (
	didPattern   = regexp.MustCompile(`^did:[a-z]+:[a-zA-Z0-9._:%-]+$`)
	atURIPattern = regexp.MustCompile(`^at://did:[a-z]+:[a-zA-Z0-9._:%-]+(/[a-zA-Z0-9.-]+(/[a-zA-Z0-9._~:@!$&')(*+,;=-]+)?)?$`)
)

// ValidDID reports whether s has the shape of a DID.
func ValidDID(s string) bool {
	return didPattern.MatchString(s)
}

// ValidATURI reports whether s has the shape of a DID-based AT-URI.
func ValidATURI(s string) bool {
	return atURIPattern.MatchString(s)
}

// PostURI builds the AT-URI of a record in the given repo.
func PostURI(did, collection, rkey string) string {
	return fmt.Sprintf("at://%s/%s/%s", did, collection, rkey)
}
