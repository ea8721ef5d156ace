package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertSnapshot replaces the user's snapshot in a single statement, so
// readers see either the previous snapshot or the new one.
func (s *PostgresStore) UpsertSnapshot(ctx context.Context, row *SnapshotRow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO node_snapshots (username, logging_mode, nodes, written_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (username) DO UPDATE SET
		   logging_mode = EXCLUDED.logging_mode,
		   nodes = EXCLUDED.nodes,
		   written_at = EXCLUDED.written_at,
		   updated_at = NOW()`,
		row.Username, row.LoggingMode, row.Nodes, row.WrittenAt)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns snapshots written at or after since, newest first.
// A zero since returns all of them.
func (s *PostgresStore) ListSnapshots(ctx context.Context, since time.Time) ([]*SnapshotRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT username, logging_mode, nodes, written_at, updated_at
		 FROM node_snapshots WHERE written_at >= $1 ORDER BY written_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		if err := rows.Scan(&r.Username, &r.LoggingMode, &r.Nodes, &r.WrittenAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// DeleteSnapshotsBefore prunes snapshots older than cutoff.
func (s *PostgresStore) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM node_snapshots WHERE written_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
