package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/glucosync/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewMemoryStore(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	assert.NotNil(t, store)
}

func TestNewFileStore(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewFileStore(tmpDir + "/test.db")
	require.NoError(t, err)
	defer store.Close()

	assert.NotNil(t, store)
}

// Token tests

func TestSaveAndGetToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SaveToken(ctx, "glucose-changes", "cursor-42")
	require.NoError(t, err)

	token, err := store.GetToken(ctx, "glucose-changes")
	require.NoError(t, err)
	assert.Equal(t, "cursor-42", token)
}

func TestSaveTokenOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveToken(ctx, "glucose-changes", "cursor-1"))
	require.NoError(t, store.SaveToken(ctx, "glucose-changes", "cursor-2"))

	token, err := store.GetToken(ctx, "glucose-changes")
	require.NoError(t, err)
	assert.Equal(t, "cursor-2", token)
}

func TestGetTokenNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetToken(context.Background(), "nonexistent")
	assert.True(t, storage.IsNotFound(err))
}

func TestDeleteToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveToken(ctx, "glucose-changes", "cursor-1"))
	require.NoError(t, store.DeleteToken(ctx, "glucose-changes"))

	_, err := store.GetToken(ctx, "glucose-changes")
	assert.True(t, storage.IsNotFound(err))
}

func TestTokenPersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/state.db"
	ctx := context.Background()

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveToken(ctx, "glucose-changes", "cursor-7"))
	require.NoError(t, store.Close())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	token, err := reopened.GetToken(ctx, "glucose-changes")
	require.NoError(t, err)
	assert.Equal(t, "cursor-7", token)
}

// Sync run log tests

func TestAppendAndListSyncRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		run := &storage.SyncRun{
			ID:                "run-" + string(rune('a'+i)),
			StartedAt:         base.Add(time.Duration(i) * time.Hour),
			FinishedAt:        base.Add(time.Duration(i)*time.Hour + time.Minute),
			WindowStart:       base,
			WindowEnd:         base.Add(24 * time.Hour),
			Uploaded:          i,
			SkippedDuplicates: 10 - i,
		}
		require.NoError(t, store.AppendSyncRun(ctx, run))
	}

	runs, err := store.RecentSyncRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// most recent first
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
	assert.Equal(t, 2, runs[0].Uploaded)
	assert.Equal(t, 8, runs[0].SkippedDuplicates)
}

func TestSyncRunBlockedRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	run := &storage.SyncRun{
		ID:          "run-blocked",
		StartedAt:   now,
		FinishedAt:  now,
		WindowStart: now,
		WindowEnd:   now,
		Blocked:     "operation requires basic permission tier, none granted",
	}
	require.NoError(t, store.AppendSyncRun(ctx, run))

	runs, err := store.RecentSyncRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.Blocked, runs[0].Blocked)
}

// Config tests

func TestConfigRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetConfig(ctx, "last_import", "readings.csv"))

	value, err := store.GetConfig(ctx, "last_import")
	require.NoError(t, err)
	assert.Equal(t, "readings.csv", value)

	require.NoError(t, store.SetConfig(ctx, "last_import", "other.csv"))
	value, err = store.GetConfig(ctx, "last_import")
	require.NoError(t, err)
	assert.Equal(t, "other.csv", value)
}

func TestGetConfigNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetConfig(context.Background(), "missing")
	assert.True(t, storage.IsNotFound(err))
}

func TestDeleteConfig(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetConfig(ctx, "key", "value"))
	require.NoError(t, store.DeleteConfig(ctx, "key"))

	_, err := store.GetConfig(ctx, "key")
	assert.True(t, storage.IsNotFound(err))
}
