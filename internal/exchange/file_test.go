package exchange

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiranshivaraju/speedwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileExchange(t *testing.T, now time.Time) *FileExchange {
	t.Helper()
	ex, err := NewFileExchange(t.TempDir(), 10*time.Minute)
	require.NoError(t, err)
	ex.now = func() time.Time { return now }
	return ex
}

func TestFileExchange_WriteThenReadAll(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ex := newTestFileExchange(t, now)
	ctx := context.Background()

	alice := models.Snapshot{User: "alice", Unit: models.UnitSecondsPerIter, Nodes: models.NodeSamples{"dgx-a": {1, 2}}, WrittenAt: now}
	bob := models.Snapshot{User: "bob", Unit: models.UnitItersPerSecond, Nodes: models.NodeSamples{"dgx-a": {0.5}}, WrittenAt: now.Add(-time.Minute)}
	require.NoError(t, ex.Write(ctx, bob))
	require.NoError(t, ex.Write(ctx, alice))

	snaps, skipped, err := ex.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, snaps, 2)
	assert.Equal(t, "alice", snaps[0].User)
	assert.Equal(t, "bob", snaps[1].User)
	assert.Equal(t, []float64{0.5}, snaps[1].Nodes["dgx-a"])

	_, err = os.Stat(filepath.Join(ex.dir, "alice_node_info.json"))
	assert.NoError(t, err)
}

func TestFileExchange_WriteReplaces(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ex := newTestFileExchange(t, now)
	ctx := context.Background()

	require.NoError(t, ex.Write(ctx, models.Snapshot{User: "alice", Unit: models.UnitSecondsPerIter, Nodes: models.NodeSamples{"dgx-a": {1}}, WrittenAt: now}))
	require.NoError(t, ex.Write(ctx, models.Snapshot{User: "alice", Unit: models.UnitSecondsPerIter, Nodes: models.NodeSamples{"dgx-b": {2}}, WrittenAt: now}))

	snaps, _, err := ex.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, models.NodeSamples{"dgx-b": {2}}, snaps[0].Nodes)

	entries, err := os.ReadDir(ex.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileExchange_SkipsMalformedAndStale(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ex := newTestFileExchange(t, now)
	ctx := context.Background()

	require.NoError(t, ex.Write(ctx, models.Snapshot{User: "alice", Unit: models.UnitSecondsPerIter, Nodes: models.NodeSamples{"dgx-a": {1}}, WrittenAt: now}))
	require.NoError(t, ex.Write(ctx, models.Snapshot{User: "carol", Unit: models.UnitSecondsPerIter, Nodes: models.NodeSamples{"dgx-a": {9}}, WrittenAt: now.Add(-time.Hour)}))
	require.NoError(t, os.WriteFile(filepath.Join(ex.dir, "bob_node_info.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ex.dir, "notes.txt"), []byte("ignored"), 0o644))

	snaps, skipped, err := ex.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "alice", snaps[0].User)

	require.Len(t, skipped, 2)
	bySource := map[string]error{}
	for _, s := range skipped {
		bySource[s.Source] = s.Err
	}
	assert.ErrorIs(t, bySource["bob_node_info.json"], ErrMalformed)
	assert.ErrorIs(t, bySource["carol_node_info.json"], ErrStale)
}

func TestFileExchange_FillsUserAndTimeFromFile(t *testing.T) {
	ex, err := NewFileExchange(t.TempDir(), 10*time.Minute)
	require.NoError(t, err)

	raw := `{"logging_mode":"s/it","nodes":{"dgx-c":[4.5]}}`
	require.NoError(t, os.WriteFile(filepath.Join(ex.dir, "dave_node_info.json"), []byte(raw), 0o644))

	snaps, skipped, err := ex.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, snaps, 1)
	assert.Equal(t, "dave", snaps[0].User)
	assert.False(t, snaps[0].WrittenAt.IsZero())
}

func TestFileExchange_RejectsPathInUser(t *testing.T) {
	ex := newTestFileExchange(t, time.Now())
	err := ex.Write(context.Background(), models.Snapshot{User: "../evil", Unit: models.UnitSecondsPerIter})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFileExchange_MissingDir(t *testing.T) {
	ex := newTestFileExchange(t, time.Now())
	require.NoError(t, os.RemoveAll(ex.dir))

	_, _, err := ex.ReadAll(context.Background())
	assert.Error(t, err)
}
