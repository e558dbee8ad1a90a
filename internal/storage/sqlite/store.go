// Package sqlite provides a SQLite implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jwulff/glucosync/internal/storage"

	_ "modernc.org/sqlite"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

// NewMemoryStore creates an in-memory SQLite store.
func NewMemoryStore() (*Store, error) {
	return newStore(":memory:")
}

// NewFileStore creates a file-based SQLite store.
func NewFileStore(path string) (*Store, error) {
	return newStore(path)
}

func newStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Token methods

func (s *Store) SaveToken(ctx context.Context, stream, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tokens (stream, token, updated_at)
		VALUES (?, ?, ?)
	`, stream, token, time.Now())
	return err
}

func (s *Store) GetToken(ctx context.Context, stream string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, "SELECT token FROM tokens WHERE stream = ?", stream).Scan(&token)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound{Resource: "token", ID: stream}
	}
	return token, err
}

func (s *Store) DeleteToken(ctx context.Context, stream string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE stream = ?", stream)
	return err
}

// Sync run log methods

func (s *Store) AppendSyncRun(ctx context.Context, run *storage.SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, started_at, finished_at, window_start, window_end,
			uploaded, skipped_duplicates, failed, blocked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.FinishedAt, run.WindowStart, run.WindowEnd,
		run.Uploaded, run.SkippedDuplicates, run.Failed, run.Blocked)
	return err
}

func (s *Store) RecentSyncRuns(ctx context.Context, limit int) ([]*storage.SyncRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, window_start, window_end,
			uploaded, skipped_duplicates, failed, blocked
		FROM sync_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*storage.SyncRun
	for rows.Next() {
		var run storage.SyncRun
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt,
			&run.WindowStart, &run.WindowEnd,
			&run.Uploaded, &run.SkippedDuplicates, &run.Failed, &run.Blocked); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// Config methods

func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound{Resource: "config", ID: key}
	}
	return value, err
}

func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO config (key, value, updated_at)
		VALUES (?, ?, ?)
	`, key, value, time.Now())
	return err
}

func (s *Store) DeleteConfig(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM config WHERE key = ?", key)
	return err
}

// Verify interface compliance
var _ storage.Store = (*Store)(nil)
