package domain

import "time"

// WriteIntent is the outcome of mapping one RawEvent for the post store. It is
// a closed sum type: PutIntent, DeleteIntent or IgnoreIntent.
type WriteIntent interface {
	isWriteIntent()
}

// PutIntent asks for the post to be inserted if absent.
type PutIntent struct {
	Post PaperPost
}

// DeleteIntent asks for the post at URI to be marked deleted.
type DeleteIntent struct {
	URI string
}

// IgnoreIntent means the event has no effect on the store.
type IgnoreIntent struct {
	Reason string
}

func (PutIntent) isWriteIntent()    {}
func (DeleteIntent) isWriteIntent() {}
func (IgnoreIntent) isWriteIntent() {}

// ClassifyEvent maps a raw event to a write intent. It never fails: events
// that are malformed, outside the post collection, or not about papers map to
// IgnoreIntent.
func ClassifyEvent(event RawEvent, classifier *PaperClassifier, now time.Time) WriteIntent {
	if event.Collection != PostCollection {
		return IgnoreIntent{Reason: "collection"}
	}

	if event.Operation == OperationDelete {
		return DeleteIntent{URI: event.URI}
	}
	if event.Operation != OperationCreate && event.Operation != OperationUpdate {
		return IgnoreIntent{Reason: "operation"}
	}

	parsed, ok := ParseRecord(event.Record)
	if !ok {
		return IgnoreIntent{Reason: "record"}
	}
	if !classifier.Match(parsed.SearchText) {
		return IgnoreIntent{Reason: "no match"}
	}

	createdAt := event.TimeUS / 1_000_000
	return PutIntent{Post: PaperPost{
		URI:          event.URI,
		CID:          event.CID,
		AuthorDID:    event.AuthorDID,
		CreatedAt:    createdAt,
		CreatedAtDay: CreatedAtDayOf(createdAt),
		IndexedAt:    now.UTC(),
		SearchText:   parsed.SearchText,
		ReplyRoot:    parsed.ReplyRoot,
		ReplyParent:  parsed.ReplyParent,
		Status:       PostStatusActive,
	}}
}
