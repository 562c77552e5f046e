package painpointcache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/goliatone/go-painpoint/painpoint"
	"github.com/goliatone/go-painpoint/painpointcache"
	"github.com/goliatone/go-painpoint/pkg/testsupport"
	"github.com/goliatone/go-painpoint/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, dsn string) (*store.Repository, *store.Provider) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := store.Open(store.Config{Driver: store.DriverSQLite, DSN: dsn, MaxOpenConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	provider := store.NewProvider(db, store.WithLogger(logger), store.WithRetryBudget(2))
	_ = store.NewSchema(provider, logger).EnsureTable(context.Background())
	return store.NewRepository(provider, logger), provider
}

func seedFixture(t *testing.T, repo *store.Repository) []painpoint.Record {
	t.Helper()
	var records []painpoint.Record
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("records.json"), &records)
	for _, rec := range records {
		require.NoError(t, repo.Insert(context.Background(), rec))
	}
	return records
}

func TestIntegration_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupStore(t, testsupport.SQLiteDSN(t))
	seeded := seedFixture(t, repo)
	svc := painpointcache.New(repo, painpointcache.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	all := svc.ListAll(ctx, false)
	require.Len(t, all, len(seeded))
	assert.Equal(t, "Alice", all[101].UserName)

	class7 := svc.ListByClassID(ctx, false, 7)
	require.Len(t, class7, 2)
	assert.Equal(t, int32(101), class7[0].ID)

	// Fixture rows use legacy ids; the update must address the stored row.
	require.True(t, svc.AddOrUpdate(ctx, 7, "alice", false))
	rec, ok := svc.GetByID(ctx, true, 101)
	require.True(t, ok)
	assert.False(t, rec.Flagged)

	require.True(t, svc.AddOrUpdate(ctx, 9, "dave", true))
	id := painpoint.DeriveRecordID(9, "dave")
	rec, ok = svc.GetByID(ctx, true, id)
	require.True(t, ok)
	assert.True(t, rec.Flagged)
	assert.Len(t, svc.ListAll(ctx, true), 4)

	assert.Equal(t, 2, svc.CountByClassID(ctx, true, 9))
	assert.True(t, svc.HasPainPoint(ctx, 9, "Dave"))
}

func TestIntegration_UnreachableStoreDegrades(t *testing.T) {
	ctx := context.Background()
	repo, provider := setupStore(t, testsupport.UnreachableSQLiteDSN(t))
	svc := painpointcache.New(repo, painpointcache.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	assert.Empty(t, svc.ListAll(ctx, false))
	assert.False(t, svc.AddOrUpdate(ctx, 7, "alice", true))
	_, ok := svc.GetByID(ctx, true, 1)
	assert.False(t, ok)
	assert.Empty(t, svc.ListByClassID(ctx, true, 7))
	assert.True(t, provider.Stats().Unreachable)
}
