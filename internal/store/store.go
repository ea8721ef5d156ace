package store

import (
	"context"
	"time"
)

// SnapshotRow is one user's published node observations as stored.
// Nodes holds the raw JSON object of node -> samples.
type SnapshotRow struct {
	Username    string
	LoggingMode string
	Nodes       []byte
	WrittenAt   time.Time
	UpdatedAt   time.Time
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	UpsertSnapshot(ctx context.Context, row *SnapshotRow) error
	ListSnapshots(ctx context.Context, since time.Time) ([]*SnapshotRow, error)
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
