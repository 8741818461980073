package shared_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cserv-ai/cserv/internal/shared"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := shared.NewMemoryIdempotencyStore(func() time.Time { return now })

	require.NoError(t, store.CheckAndInsert(ctx, "k1", "leave"))
	err := store.CheckAndInsert(ctx, "k1", "leave")
	require.ErrorIs(t, err, shared.ErrIdempotencyReplay)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "roster"))

	require.NoError(t, store.Delete(ctx, "k1", "leave"))
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "leave"))

	now = now.Add(48 * time.Hour)
	require.NoError(t, store.CheckAndInsert(ctx, "fresh", "leave"))
	purged, err := store.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(2), purged)
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "leave"))
	require.ErrorIs(t, store.CheckAndInsert(ctx, "fresh", "leave"), shared.ErrIdempotencyReplay)
}

func TestErrorTaxonomy(t *testing.T) {
	err := shared.NewInvalidState("leave", "approve", "Cancelled")
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.True(t, shared.IsDomainError(err))

	wrapped := shared.Storage("insert", context.DeadlineExceeded)
	require.ErrorIs(t, wrapped, shared.ErrStorage)
	require.ErrorIs(t, shared.Storage("insert", shared.ErrNotFound), shared.ErrNotFound)
	require.NoError(t, shared.Storage("insert", nil))
}
