// Package syncer orchestrates uploads, background polling, and incremental
// historical retrieval against the external health store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwulff/glucosync/internal/access"
	"github.com/jwulff/glucosync/internal/dedup"
	"github.com/jwulff/glucosync/internal/healthstore"
	"github.com/jwulff/glucosync/internal/record"
	"github.com/jwulff/glucosync/internal/storage"
)

// ErrSyncInFlight means another sync for the same logical window is still
// running. At most one in-flight sync per window.
var ErrSyncInFlight = errors.New("sync already in flight for this window")

// Config tunes the orchestrator.
type Config struct {
	BatchSize      int           // max records per store write call
	MaxRetries     uint64        // bounded retries per batch on transient failure
	InitialBackoff time.Duration // first retry delay, grows exponentially
	Lookback       time.Duration // baseline window when pagination restarts
	Stream         string        // name of the change stream token in local state
	Dedup          dedup.Keyer   // key resolution/precision; zero value uses defaults
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		BatchSize:      50,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		Lookback:       30 * 24 * time.Hour,
		Stream:         "glucose-changes",
	}
}

// FailedRecord names one record that could not be uploaded and why.
type FailedRecord struct {
	Record record.GlucoseRecord
	Reason string
}

// SyncReport is the user-visible outcome of one sync attempt. It always
// distinguishes "nothing new" (all counts zero), "partial success with
// named failures" (Failed populated), and "blocked by permission or
// availability" (Blocked set), never a bare generic failure.
type SyncReport struct {
	RunID             string
	Window            healthstore.Window
	Uploaded          int
	SkippedDuplicates int
	Failed            []FailedRecord
	Blocked           string
}

// Syncer drives the dedup filter and the store. It owns the continuation
// token and the per-window single-flight discipline.
type Syncer struct {
	store   healthstore.Store
	local   storage.Store
	checker *access.Checker
	keyer   dedup.Keyer
	cfg     Config
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates a Syncer. A nil logger logs nowhere.
func New(store healthstore.Store, local storage.Store, checker *access.Checker, cfg Config, logger *zap.SugaredLogger) *Syncer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultConfig().Stream
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultConfig().Lookback
	}
	return &Syncer{
		store:    store,
		local:    local,
		checker:  checker,
		keyer:    cfg.Dedup,
		cfg:      cfg,
		logger:   logger,
		inflight: map[string]struct{}{},
	}
}

// acquire claims the window for this sync, or fails when one is running.
func (s *Syncer) acquire(w healthstore.Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := w.Key()
	if _, busy := s.inflight[key]; busy {
		return ErrSyncInFlight
	}
	s.inflight[key] = struct{}{}
	return nil
}

func (s *Syncer) release(w healthstore.Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, w.Key())
}

// Sync uploads the candidate records for the window: consistent read of
// what the store already holds, dedup, then batched writes with bounded
// exponential retry on transient failures. The access snapshot is asserted
// before any store call; a missing basic tier blocks the run without
// touching the store. The report is appended to the local sync log.
func (s *Syncer) Sync(ctx context.Context, snap access.Snapshot, w healthstore.Window, candidates []record.GlucoseRecord) (*SyncReport, error) {
	if err := s.acquire(w); err != nil {
		return nil, err
	}
	defer s.release(w)

	report := &SyncReport{
		RunID:  uuid.NewString(),
		Window: w,
	}
	started := time.Now()

	if err := snap.Require(access.TierBasic); err != nil {
		report.Blocked = err.Error()
		s.logRun(ctx, report, started)
		return report, err
	}

	stored, err := s.readWithRetry(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("reading stored records for %s: %w", w, err)
	}

	fresh := s.keyer.Filter(candidates, stored)
	report.SkippedDuplicates = len(candidates) - len(fresh)

	for start := 0; start < len(fresh); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(fresh) {
			end = len(fresh)
		}
		batch := fresh[start:end]

		result, err := s.writeWithRetry(ctx, batch)
		if err != nil {
			// the whole batch failed after bounded retries
			for _, r := range batch {
				report.Failed = append(report.Failed, FailedRecord{Record: r, Reason: err.Error()})
			}
			s.logger.Warnw("batch upload failed", "window", w.String(), "records", len(batch), "error", err)
			continue
		}

		report.Uploaded += result.Succeeded
		for _, f := range result.Failed {
			report.Failed = append(report.Failed, FailedRecord{Record: f.Record, Reason: f.Reason})
		}
	}

	s.logRun(ctx, report, started)
	s.logger.Infow("sync complete",
		"window", w.String(),
		"uploaded", report.Uploaded,
		"skipped_duplicates", report.SkippedDuplicates,
		"failed", len(report.Failed))
	return report, nil
}

// retryTransient runs op, retrying transient store failures with bounded
// exponential backoff. Every store call goes through this: timeouts and
// rate limits are never surfaced on the first occurrence. Permission and
// other non-transient errors abort immediately.
func (s *Syncer) retryTransient(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	if s.cfg.InitialBackoff > 0 {
		policy.InitialInterval = s.cfg.InitialBackoff
	}

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !healthstore.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithMaxRetries(backoff.WithContext(policy, ctx), s.cfg.MaxRetries))
}

// writeWithRetry performs one batch write with transient retry.
func (s *Syncer) writeWithRetry(ctx context.Context, batch []record.GlucoseRecord) (*healthstore.WriteResult, error) {
	var result *healthstore.WriteResult
	err := s.retryTransient(ctx, func() error {
		res, err := s.store.WriteRecords(ctx, batch)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// readWithRetry performs one windowed read with transient retry.
func (s *Syncer) readWithRetry(ctx context.Context, w healthstore.Window) ([]record.GlucoseRecord, error) {
	var out []record.GlucoseRecord
	err := s.retryTransient(ctx, func() error {
		res, err := s.store.ReadRecords(ctx, w)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// logRun persists the sync report to the local run log. Failure to record
// a run never fails the sync itself.
func (s *Syncer) logRun(ctx context.Context, report *SyncReport, started time.Time) {
	if s.local == nil {
		return
	}
	run := &storage.SyncRun{
		ID:                report.RunID,
		StartedAt:         started,
		FinishedAt:        time.Now(),
		WindowStart:       report.Window.Start,
		WindowEnd:         report.Window.End,
		Uploaded:          report.Uploaded,
		SkippedDuplicates: report.SkippedDuplicates,
		Failed:            len(report.Failed),
		Blocked:           report.Blocked,
	}
	if err := s.local.AppendSyncRun(ctx, run); err != nil {
		s.logger.Warnw("failed to record sync run", "run_id", run.ID, "error", err)
	}
}
