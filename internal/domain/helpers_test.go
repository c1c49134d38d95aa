package domain_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/bluesky-paper-feed/internal/config"
	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
	"github.com/blackmichael/bluesky-paper-feed/internal/metrics"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newMetrics() *metrics.Pipeline {
	return metrics.NewPipeline(prometheus.NewRegistry())
}

func defaultClassifier(t *testing.T) *domain.PaperClassifier {
	t.Helper()
	c, err := config.NewClassifier("")
	require.NoError(t, err)
	return c
}

func postRecord(t *testing.T, text string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      text,
		"createdAt": "2024-09-09T19:46:02.102Z",
	})
	require.NoError(t, err)
	return raw
}

func createEvent(t *testing.T, did, rkey, text string, timeUS int64) domain.RawEvent {
	return domain.RawEvent{
		Kind:       "commit",
		Operation:  domain.OperationCreate,
		Collection: domain.PostCollection,
		AuthorDID:  did,
		URI:        domain.PostURI(did, domain.PostCollection, rkey),
		CID:        "bafy" + rkey,
		Record:     postRecord(t, text),
		TimeUS:     timeUS,
	}
}

func deleteEvent(did, rkey string, timeUS int64) domain.RawEvent {
	return domain.RawEvent{
		Kind:       "commit",
		Operation:  domain.OperationDelete,
		Collection: domain.PostCollection,
		AuthorDID:  did,
		URI:        domain.PostURI(did, domain.PostCollection, rkey),
		TimeUS:     timeUS,
	}
}
