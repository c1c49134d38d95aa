package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

const userColumns = `did, handle, display_name, created_at, last_access_at,
	access_count, consent_accesses, opt_out, deactivated`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.DID, &u.Handle, &u.DisplayName, &u.CreatedAt, &u.LastAccessAt,
		&u.AccessCount, &u.ConsentAccesses, &u.OptOut, &u.Deactivated,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListActive returns users eligible for scheduled feed generation.
func (r *Repository) ListActive(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT did FROM users WHERE NOT opt_out AND NOT deactivated ORDER BY did`)
	if err != nil {
		return nil, &domain.StoreError{Op: "list active users", Err: err}
	}
	defer rows.Close()

	var dids []string
	for rows.Next() {
		var did string
		if err := rows.Scan(&did); err != nil {
			return nil, &domain.StoreError{Op: "scan user", Err: err}
		}
		dids = append(dids, did)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "iterate users", Err: err}
	}
	return dids, nil
}

func (r *Repository) Get(ctx context.Context, did string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE did = $1`, did))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get user", Err: err}
	}
	return u, nil
}

// RecordAccess upserts the viewer and bumps its counters atomically.
func (r *Repository) RecordAccess(ctx context.Context, did string, at time.Time, consentIncrement int) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		INSERT INTO users (did, created_at, last_access_at, access_count, consent_accesses)
		VALUES ($1, $2, $2, 1, $3)
		ON CONFLICT (did) DO UPDATE SET
			last_access_at   = EXCLUDED.last_access_at,
			access_count     = users.access_count + 1,
			consent_accesses = users.consent_accesses + EXCLUDED.consent_accesses
		RETURNING `+userColumns,
		did, at.UTC(), consentIncrement,
	))
	if err != nil {
		return nil, &domain.StoreError{Op: "record access", Err: err}
	}
	return u, nil
}

func (r *Repository) SetFlags(ctx context.Context, did string, optOut, deactivated bool) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (did, created_at, last_access_at, opt_out, deactivated)
		VALUES ($1, $2, $2, $3, $4)
		ON CONFLICT (did) DO UPDATE SET
			opt_out     = EXCLUDED.opt_out,
			deactivated = EXCLUDED.deactivated`,
		did, now, optOut, deactivated,
	)
	if err != nil {
		return &domain.StoreError{Op: "set user flags", Err: err}
	}
	return nil
}
