package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/glucosync/internal/access"
	"github.com/jwulff/glucosync/internal/healthstore"
	"github.com/jwulff/glucosync/internal/record"
)

func changePages() [][]record.GlucoseRecord {
	now := time.Now().UTC()
	return [][]record.GlucoseRecord{
		{
			{Value: 95, Instant: now.Add(-3 * time.Hour)},
			{Value: 110, Instant: now.Add(-2 * time.Hour)},
		},
		{
			{Value: 142, Instant: now.Add(-1 * time.Hour)},
		},
	}
}

func TestFetchHistoryDrainsAllPages(t *testing.T) {
	engine, fake, local := newTestSyncer(t, fastConfig())
	ctx := context.Background()

	pages := changePages()
	fake.SetChangePages(pages, "cursor-final")

	hist, err := engine.FetchHistory(ctx, fullSnapshot(), "")
	require.NoError(t, err)

	require.Len(t, hist.Records, 3)
	assert.Equal(t, 95.0, hist.Records[0].Value)
	assert.Equal(t, 110.0, hist.Records[1].Value)
	assert.Equal(t, 142.0, hist.Records[2].Value)
	assert.Equal(t, healthstore.Token("cursor-final"), hist.Token)
	assert.False(t, hist.Restarted)

	// the resume token is persisted for the next run
	saved, err := local.GetToken(ctx, engine.cfg.Stream)
	require.NoError(t, err)
	assert.Equal(t, "cursor-final", saved)
}

func TestFetchHistoryRetriesTransientFailures(t *testing.T) {
	engine, fake, _ := newTestSyncer(t, fastConfig())
	ctx := context.Background()

	fake.SetChangePages(changePages(), "cursor-final")
	fake.FailNextChanges(1)

	hist, err := engine.FetchHistory(ctx, fullSnapshot(), "")
	require.NoError(t, err)

	require.Len(t, hist.Records, 3)
	assert.Equal(t, healthstore.Token("cursor-final"), hist.Token)
	// one failed attempt, two pages, one done
	assert.Equal(t, 4, fake.Calls("ReadChanges"))
}

func TestFetchHistoryRequiresHistoricalTier(t *testing.T) {
	engine, fake, _ := newTestSyncer(t, fastConfig())

	snap := access.Snapshot{
		StoreAvailable: true,
		Tiers:          access.NewTierSet(access.TierBackground),
		CheckedAt:      time.Now(),
	}

	_, err := engine.FetchHistory(context.Background(), snap, "")
	require.Error(t, err)
	assert.True(t, access.IsPermissionDenied(err))
	assert.Equal(t, 0, fake.Calls("ReadChanges"))
}

func TestFetchHistoryResumesFromPersistedToken(t *testing.T) {
	engine, fake, local := newTestSyncer(t, fastConfig())
	ctx := context.Background()

	pages := changePages()
	fake.SetChangePages(pages, "")

	_, err := engine.FetchHistory(ctx, fullSnapshot(), "")
	require.NoError(t, err)

	// simulate a process restart: a fresh engine over the same local state
	restarted := New(fake, local, nil, fastConfig(), nil)
	fake.SetChangePages(append(pages, []record.GlucoseRecord{
		{Value: 180, Instant: time.Now().UTC()},
	}), "")

	hist, err := restarted.FetchHistory(ctx, fullSnapshot(), "")
	require.NoError(t, err)

	// only the page that appeared since the first drain
	require.Len(t, hist.Records, 1)
	assert.Equal(t, 180.0, hist.Records[0].Value)
}

func TestFetchHistoryExpiredTokenRestartsFromBaseline(t *testing.T) {
	cfg := fastConfig()
	cfg.Lookback = 2 * time.Hour
	engine, fake, local := newTestSyncer(t, cfg)
	ctx := context.Background()

	require.NoError(t, local.SaveToken(ctx, cfg.Stream, "cursor-stale"))
	fake.ExpireToken("cursor-stale")

	now := time.Now().UTC()
	fake.SetChangePages([][]record.GlucoseRecord{
		{
			{Value: 88, Instant: now.Add(-5 * time.Hour)}, // older than baseline
			{Value: 120, Instant: now.Add(-30 * time.Minute)},
		},
	}, "cursor-fresh")

	hist, err := engine.FetchHistory(ctx, fullSnapshot(), "")
	require.NoError(t, err)

	assert.True(t, hist.Restarted)
	require.Len(t, hist.Records, 1)
	assert.Equal(t, 120.0, hist.Records[0].Value)
	assert.Equal(t, healthstore.Token("cursor-fresh"), hist.Token)

	saved, err := local.GetToken(ctx, cfg.Stream)
	require.NoError(t, err)
	assert.Equal(t, "cursor-fresh", saved)
}

func TestFetchHistoryFailsWhenRestartExpiresToo(t *testing.T) {
	engine, fake, local := newTestSyncer(t, fastConfig())
	ctx := context.Background()

	require.NoError(t, local.SaveToken(ctx, engine.cfg.Stream, "cursor-stale"))
	fake.ExpireToken("cursor-stale")
	fake.ExpireToken("")

	_, err := engine.FetchHistory(ctx, fullSnapshot(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, healthstore.ErrTokenExpired)
}

func TestFetchHistoryHonorsCancellation(t *testing.T) {
	engine, fake, _ := newTestSyncer(t, fastConfig())
	fake.SetChangePages(changePages(), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.FetchHistory(ctx, fullSnapshot(), "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fake.Calls("ReadChanges"))
}

func TestFetchHistoryEmptyStream(t *testing.T) {
	engine, fake, _ := newTestSyncer(t, fastConfig())
	fake.SetChangePages(nil, "cursor-0")

	hist, err := engine.FetchHistory(context.Background(), fullSnapshot(), "")
	require.NoError(t, err)
	assert.Empty(t, hist.Records)
	assert.Equal(t, healthstore.Token("cursor-0"), hist.Token)
}
