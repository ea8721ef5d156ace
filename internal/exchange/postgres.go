package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/speedwatch/internal/store"
	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

// rows older than retention * maxAge are deleted on write
const retention = 24

// PostgresExchange keeps one row per user in node_snapshots.
type PostgresExchange struct {
	store store.Store
	freshness
}

var _ Exchange = (*PostgresExchange)(nil)

func NewPostgresExchange(s store.Store, maxAge time.Duration) *PostgresExchange {
	return &PostgresExchange{
		store:     s,
		freshness: freshness{maxAge: maxAge, now: time.Now},
	}
}

func (e *PostgresExchange) Write(ctx context.Context, snap models.Snapshot) error {
	if snap.User == "" {
		return fmt.Errorf("%w: empty user", ErrMalformed)
	}
	if err := Validate(snap); err != nil {
		return err
	}
	nodes := snap.Nodes
	if nodes == nil {
		nodes = models.NodeSamples{}
	}
	data, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("encode nodes: %w", err)
	}

	err = e.store.UpsertSnapshot(ctx, &store.SnapshotRow{
		Username:    snap.User,
		LoggingMode: string(snap.Unit),
		Nodes:       data,
		WrittenAt:   snap.WrittenAt,
	})
	if err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	if e.maxAge > 0 {
		cutoff := e.now().Add(-retention * e.maxAge)
		if n, err := e.store.DeleteSnapshotsBefore(ctx, cutoff); err != nil {
			slog.Warn("prune snapshots failed", "error", err)
		} else if n > 0 {
			slog.Debug("pruned snapshots", "count", n)
		}
	}
	return nil
}

// ReadAll only loads rows inside the freshness window; older rows are not
// reported as skipped.
func (e *PostgresExchange) ReadAll(ctx context.Context) ([]models.Snapshot, []SourceError, error) {
	var since time.Time
	if e.maxAge > 0 {
		since = e.cutoff()
	}
	rows, err := e.store.ListSnapshots(ctx, since)
	if err != nil {
		return nil, nil, fmt.Errorf("list snapshots: %w", err)
	}

	var (
		snaps   []models.Snapshot
		skipped []SourceError
	)
	for _, row := range rows {
		snap, err := fromRow(row)
		if err != nil {
			skipped = append(skipped, SourceError{Source: row.Username, Err: err})
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, skipped, nil
}

func fromRow(row *store.SnapshotRow) (models.Snapshot, error) {
	snap := models.Snapshot{
		User:      row.Username,
		Unit:      models.Unit(row.LoggingMode),
		WrittenAt: row.WrittenAt,
	}
	if err := json.Unmarshal(row.Nodes, &snap.Nodes); err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := Validate(snap); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// Close is a no-op; the store is owned by the caller.
func (e *PostgresExchange) Close() error { return nil }
