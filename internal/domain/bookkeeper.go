package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/blackmichael/bluesky-paper-feed/internal/metrics"
)

// AccessBookkeeper persists access events: one append-only log row plus the
// viewer's access counters. Log ids are fresh per delivery, so a redelivered
// event produces a duplicate row.
type AccessBookkeeper struct {
	access           AccessLogRepository
	users            UserRepository
	consentThreshold int64
	logger           *slog.Logger
	metrics          *metrics.Pipeline
	newID            func() string
}

// NewAccessBookkeeper creates a bookkeeper. consentThreshold is the number of
// non-empty accesses after which a viewer counts as consent-eligible.
func NewAccessBookkeeper(access AccessLogRepository, users UserRepository, consentThreshold int, logger *slog.Logger, m *metrics.Pipeline) *AccessBookkeeper {
	return &AccessBookkeeper{
		access:           access,
		users:            users,
		consentThreshold: int64(consentThreshold),
		logger:           logger,
		metrics:          m,
		newID:            uuid.NewString,
	}
}

// Process records one access event.
func (b *AccessBookkeeper) Process(ctx context.Context, event AccessEvent) error {
	recs := event.Recs
	if recs == nil {
		recs = []FeedItem{}
	}
	recsShown, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encode recs: %w", err)
	}

	accessAt := time.UnixMilli(event.AccessAt).UTC()
	entry := AccessLogEntry{
		ID:          b.newID(),
		DID:         event.Viewer,
		AccessAt:    accessAt,
		RecsShown:   string(recsShown),
		CursorStart: event.CursorStart,
		CursorEnd:   event.CursorEnd,
		DefaultFrom: event.DefaultFrom,
	}
	if err := b.access.LogAccess(ctx, entry); err != nil {
		return fmt.Errorf("log access: %w", err)
	}
	b.metrics.AccessLogged.Inc()

	consentIncrement := 0
	if len(event.Recs) > 0 {
		consentIncrement = 1
	}
	user, err := b.users.RecordAccess(ctx, event.Viewer, accessAt, consentIncrement)
	if err != nil {
		return fmt.Errorf("record access: %w", err)
	}

	if consentIncrement > 0 && b.consentThreshold > 0 && user.ConsentAccesses == b.consentThreshold {
		b.logger.Info("viewer reached consent threshold",
			"viewer", event.Viewer,
			"consent_accesses", user.ConsentAccesses,
		)
	}
	return nil
}
