package postgres

import (
	"context"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

// LogAccess appends one audit row. The log is append-only; a redelivered
// access event produces a second row.
func (r *Repository) LogAccess(ctx context.Context, entry domain.AccessLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_access_log
			(id, did, access_at, recs_shown, cursor_start, cursor_end, default_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.DID, entry.AccessAt.UTC(), entry.RecsShown,
		entry.CursorStart, entry.CursorEnd, entry.DefaultFrom,
	)
	if err != nil {
		return &domain.StoreError{Op: "log access", Err: err}
	}
	return nil
}
