package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/speedwatch/internal/store"
	"github.com/kiranshivaraju/speedwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresExchange_WriteThenReadAll(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newMemStore()
	ex := NewPostgresExchange(s, 10*time.Minute)
	ex.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, ex.Write(ctx, models.Snapshot{User: "alice", Unit: models.UnitSecondsPerIter, Nodes: models.NodeSamples{"dgx-a": {1, 2}}, WrittenAt: now}))
	require.NoError(t, ex.Write(ctx, models.Snapshot{User: "bob", Unit: models.UnitItersPerSecond, WrittenAt: now.Add(-time.Minute)}))
	require.NoError(t, ex.Write(ctx, models.Snapshot{User: "old", Unit: models.UnitSecondsPerIter, WrittenAt: now.Add(-time.Hour)}))

	row, ok := s.row("bob")
	require.True(t, ok)
	assert.JSONEq(t, `{}`, string(row.Nodes))
	assert.Equal(t, "it/s", row.LoggingMode)

	snaps, skipped, err := ex.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, snaps, 2)
	assert.Equal(t, "alice", snaps[0].User)
	assert.Equal(t, []float64{1, 2}, snaps[0].Nodes["dgx-a"])
	assert.Equal(t, "bob", snaps[1].User)
}

func TestPostgresExchange_PrunesOnWrite(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newMemStore()
	ex := NewPostgresExchange(s, 10*time.Minute)
	ex.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.UpsertSnapshot(ctx, &store.SnapshotRow{Username: "gone", LoggingMode: "s/it", Nodes: []byte(`{}`), WrittenAt: now.Add(-7 * 24 * time.Hour)}))
	require.NoError(t, ex.Write(ctx, models.Snapshot{User: "alice", Unit: models.UnitSecondsPerIter, WrittenAt: now}))

	_, ok := s.row("gone")
	assert.False(t, ok)
	require.Len(t, s.pruned, 1)
	assert.Equal(t, now.Add(-4*time.Hour), s.pruned[0])
}

func TestPostgresExchange_SkipsMalformedRows(t *testing.T) {
	now := time.Now()
	s := newMemStore()
	ex := NewPostgresExchange(s, 10*time.Minute)
	ctx := context.Background()

	require.NoError(t, s.UpsertSnapshot(ctx, &store.SnapshotRow{Username: "bad", LoggingMode: "s/it", Nodes: []byte(`[1,2]`), WrittenAt: now}))
	require.NoError(t, s.UpsertSnapshot(ctx, &store.SnapshotRow{Username: "weird", LoggingMode: "rpm", Nodes: []byte(`{}`), WrittenAt: now}))

	snaps, skipped, err := ex.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snaps)
	require.Len(t, skipped, 2)
	for _, s := range skipped {
		assert.ErrorIs(t, s.Err, ErrMalformed)
	}
}

func TestPostgresExchange_ListFailure(t *testing.T) {
	s := newMemStore()
	s.listErr = errors.New("connection refused")
	ex := NewPostgresExchange(s, 10*time.Minute)

	_, _, err := ex.ReadAll(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}
