// Package storage provides local state persistence for the sync engine:
// continuation tokens, the sync run log, and configuration values.
package storage

import (
	"context"
	"time"
)

// Store is the interface for local persistent state. This is engine-side
// bookkeeping only; glucose records themselves live in the external health
// store.
type Store interface {
	// Continuation tokens, one per named change stream
	SaveToken(ctx context.Context, stream, token string) error
	GetToken(ctx context.Context, stream string) (string, error)
	DeleteToken(ctx context.Context, stream string) error

	// Sync run log
	AppendSyncRun(ctx context.Context, run *SyncRun) error
	RecentSyncRuns(ctx context.Context, limit int) ([]*SyncRun, error)

	// Configuration
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	DeleteConfig(ctx context.Context, key string) error

	// Lifecycle
	Close() error
}

// SyncRun records the outcome of one sync attempt.
type SyncRun struct {
	ID                string
	StartedAt         time.Time
	FinishedAt        time.Time
	WindowStart       time.Time
	WindowEnd         time.Time
	Uploaded          int
	SkippedDuplicates int
	Failed            int
	Blocked           string // non-empty when permission/availability halted the run
}

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found: " + e.ID
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
