package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwulff/glucosync/internal/access"
	"github.com/jwulff/glucosync/internal/healthstore"
	"github.com/jwulff/glucosync/internal/record"
	"github.com/jwulff/glucosync/internal/storage"
)

// History is the result of draining the change stream: every change since
// the starting token exactly once, plus the token to resume from next time.
type History struct {
	Records []record.GlucoseRecord
	Token   healthstore.Token
	// Restarted is set when the starting token had expired and pagination
	// restarted from the lookback baseline.
	Restarted bool
}

// FetchHistory pages through the store's change stream starting from the
// given token, or from the persisted token when the argument is empty.
// Each page's token is persisted before the next call so a restart resumes
// where it left off. An expired token restarts pagination from the
// configured lookback baseline instead of failing; records older than the
// baseline are dropped in that case. Requires the historical tier.
func (s *Syncer) FetchHistory(ctx context.Context, snap access.Snapshot, token healthstore.Token) (*History, error) {
	if err := snap.Require(access.TierHistorical); err != nil {
		return nil, err
	}

	if token == "" {
		saved, err := s.local.GetToken(ctx, s.cfg.Stream)
		if err != nil && !storage.IsNotFound(err) {
			return nil, fmt.Errorf("loading continuation token: %w", err)
		}
		token = healthstore.Token(saved)
	}

	hist := &History{}
	baseline := time.Now().Add(-s.cfg.Lookback)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := s.changesWithRetry(ctx, token)
		if errors.Is(err, healthstore.ErrTokenExpired) {
			if hist.Restarted {
				return nil, fmt.Errorf("restarted pagination token expired immediately: %w", err)
			}
			s.logger.Warnw("continuation token expired, restarting from baseline",
				"stream", s.cfg.Stream, "lookback", s.cfg.Lookback)
			if err := s.local.DeleteToken(ctx, s.cfg.Stream); err != nil {
				return nil, fmt.Errorf("clearing expired token: %w", err)
			}
			hist.Restarted = true
			hist.Records = hist.Records[:0]
			token = ""
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading changes: %w", err)
		}

		switch page := result.(type) {
		case healthstore.ChangePage:
			for _, r := range page.Records {
				if hist.Restarted && r.Instant.Before(baseline) {
					continue
				}
				hist.Records = append(hist.Records, r)
			}
			token = page.NextToken
			if err := s.local.SaveToken(ctx, s.cfg.Stream, string(token)); err != nil {
				return nil, fmt.Errorf("persisting continuation token: %w", err)
			}
		case healthstore.ChangesDone:
			hist.Token = page.ResumeToken
			if err := s.local.SaveToken(ctx, s.cfg.Stream, string(page.ResumeToken)); err != nil {
				return nil, fmt.Errorf("persisting resume token: %w", err)
			}
			s.logger.Debugw("change stream drained",
				"stream", s.cfg.Stream, "records", len(hist.Records))
			return hist, nil
		default:
			return nil, fmt.Errorf("store returned unknown change result %T", result)
		}
	}
}

// changesWithRetry performs one change-stream call with transient retry.
// An expired token is not transient; it reaches the caller untouched so
// the restart policy can fire.
func (s *Syncer) changesWithRetry(ctx context.Context, token healthstore.Token) (healthstore.ChangeResult, error) {
	var result healthstore.ChangeResult
	err := s.retryTransient(ctx, func() error {
		res, err := s.store.ReadChanges(ctx, token)
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
