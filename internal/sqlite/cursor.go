// Package sqlite persists the firehose ingestion cursor in a local SQLite
// file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

const cursorRowID = "main"

const schema = `CREATE TABLE IF NOT EXISTS jetstream_state (
	id     TEXT PRIMARY KEY,
	cursor INTEGER NOT NULL
)`

// CursorStore implements domain.CursorRepository. The ingestor is the only
// writer, so the table holds a single row.
type CursorStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the state
// table exists. Pass ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*CursorStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cursor db: %w", err)
	}
	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cursor table: %w", err)
	}
	return &CursorStore{db: db}, nil
}

// Close closes the database.
func (s *CursorStore) Close() error {
	return s.db.Close()
}

func (s *CursorStore) GetCursor(ctx context.Context) (int64, bool, error) {
	var cursor int64
	err := s.db.QueryRowContext(ctx,
		`SELECT cursor FROM jetstream_state WHERE id = ?`, cursorRowID,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &domain.StoreError{Op: "get cursor", Err: err}
	}
	return cursor, true, nil
}

func (s *CursorStore) UpdateCursor(ctx context.Context, cursor int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jetstream_state (id, cursor) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET cursor = excluded.cursor`,
		cursorRowID, cursor,
	)
	if err != nil {
		return &domain.StoreError{Op: "update cursor", Err: err}
	}
	return nil
}
