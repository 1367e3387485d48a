package sqlx_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "leaderbot/adapters/sqlx"
	"leaderbot/core/coretest"
)

func newSQLiteStore(t *testing.T) *storage.Store {
	t.Helper()
	cfg := storage.DefaultConfig(storage.DriverSQLite)
	cfg.DSN = filepath.Join(t.TempDir(), "leaderbot.db")
	store, err := storage.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLite_RoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	lb, err := store.Load(ctx, coretest.LeaderboardID, coretest.Year)
	require.NoError(t, err)
	assert.Nil(t, lb)

	// an error recorded before the first save leaves no snapshot behind
	require.NoError(t, store.RecordError(ctx, coretest.LeaderboardID, coretest.Year, "fetch.transient"))
	lb, err = store.Load(ctx, coretest.LeaderboardID, coretest.Year)
	require.NoError(t, err)
	assert.Nil(t, lb)

	first := coretest.Leaderboard(coretest.Member(1, "alice", coretest.P(1, 1)))
	require.NoError(t, store.Save(ctx, coretest.LeaderboardID, coretest.Year, first))
	kind, err := store.LastError(ctx, coretest.LeaderboardID, coretest.Year)
	require.NoError(t, err)
	assert.Empty(t, kind, "save clears the last error")

	second := coretest.Leaderboard(
		coretest.Member(1, "alice", coretest.Days(2)...),
		coretest.Member(2, ""),
	)
	require.NoError(t, store.Save(ctx, coretest.LeaderboardID, coretest.Year, second))
	require.NoError(t, store.Save(ctx, coretest.LeaderboardID, coretest.Year, second))

	got, err := store.Load(ctx, coretest.LeaderboardID, coretest.Year)
	require.NoError(t, err)
	assert.True(t, got.Equal(second))

	require.NoError(t, store.RecordError(ctx, coretest.LeaderboardID, coretest.Year, "storage.unavailable"))
	got, err = store.Load(ctx, coretest.LeaderboardID, coretest.Year)
	require.NoError(t, err)
	assert.True(t, got.Equal(second), "recording an error keeps the snapshot")

	require.NoError(t, store.Migrate(ctx), "migrate is idempotent")
	require.NoError(t, store.Ping(ctx))
}
