package syncer

import (
	"context"
	"time"

	"github.com/jwulff/glucosync/internal/access"
)

// Watch polls the store at the given interval until the context is
// cancelled. Each tick refreshes the access snapshot and, when the
// background tier is granted, drains the change stream to keep the
// continuation token fresh. Cancellation is honored between store calls,
// never mid-write: the only writes here are token persistence, which
// happen after a completed store read.
func (s *Syncer) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Infow("background polling started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("background polling stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Syncer) tick(ctx context.Context) {
	snap, err := s.checker.Refresh(ctx)
	if err != nil {
		s.logger.Warnw("access refresh failed", "error", err)
		return
	}
	if err := snap.Require(access.TierBackground); err != nil {
		s.logger.Debugw("background tick skipped", "reason", err.Error())
		return
	}

	// the snapshot holds at least background; historical may still be
	// missing, in which case the incremental drain is skipped too
	if err := snap.Require(access.TierHistorical); err != nil {
		return
	}
	hist, err := s.FetchHistory(ctx, snap, "")
	if err != nil {
		s.logger.Warnw("incremental history poll failed", "error", err)
		return
	}
	if len(hist.Records) > 0 {
		s.logger.Infow("incremental changes received", "records", len(hist.Records))
	}
}
