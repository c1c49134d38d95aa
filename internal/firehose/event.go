package firehose

import (
	stdjson "encoding/json"

	"github.com/goccy/go-json"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

const kindCommit = "commit"

// jetstreamEvent is the raw JSON frame from Jetstream. Identity and account
// frames share the envelope but carry no commit.
type jetstreamEvent struct {
	DID    string           `json:"did"`
	TimeUS int64            `json:"time_us"`
	Kind   string           `json:"kind"`
	Commit *jetstreamCommit `json:"commit,omitempty"`
}

// jetstreamCommit is the raw commit data from Jetstream. The record is kept
// undecoded; the filter stage parses it.
type jetstreamCommit struct {
	Rev        string             `json:"rev"`
	Operation  string             `json:"operation"`
	Collection string             `json:"collection"`
	RKey       string             `json:"rkey"`
	Record     stdjson.RawMessage `json:"record,omitempty"`
	CID        string             `json:"cid"`
}

func parseEvent(data []byte) (*jetstreamEvent, error) {
	var event jetstreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// toRawEvent keeps commit events on the post collection. Everything else,
// including commits with a malformed DID or record key, is dropped.
func toRawEvent(event *jetstreamEvent) (domain.RawEvent, bool) {
	if event.Kind != kindCommit || event.Commit == nil {
		return domain.RawEvent{}, false
	}
	commit := event.Commit
	if commit.Collection != domain.PostCollection || commit.RKey == "" {
		return domain.RawEvent{}, false
	}

	op := domain.Operation(commit.Operation)
	switch op {
	case domain.OperationCreate, domain.OperationUpdate, domain.OperationDelete:
	default:
		return domain.RawEvent{}, false
	}

	if !domain.ValidDID(event.DID) {
		return domain.RawEvent{}, false
	}
	uri := domain.PostURI(event.DID, commit.Collection, commit.RKey)
	if !domain.ValidATURI(uri) {
		return domain.RawEvent{}, false
	}

	return domain.RawEvent{
		Kind:       event.Kind,
		Operation:  op,
		Collection: commit.Collection,
		AuthorDID:  event.DID,
		URI:        uri,
		CID:        commit.CID,
		Record:     commit.Record,
		TimeUS:     event.TimeUS,
	}, true
}
