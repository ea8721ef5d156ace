// Package exchange publishes each user's node observations to a shared
// location and reads back everyone else's, so that node health can be judged
// from every user's jobs rather than only the local ones.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

var (
	// ErrMalformed marks a published snapshot that could not be decoded or
	// failed validation.
	ErrMalformed = errors.New("malformed snapshot")
	// ErrStale marks a snapshot older than the configured maximum age.
	ErrStale = errors.New("stale snapshot")
)

// SourceError records one unreadable snapshot. The merge continues without it.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("snapshot source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Exchange is a shared store of per-user snapshots. Write replaces the
// writer's own snapshot atomically; ReadAll returns every fresh, well-formed
// snapshot (including the writer's own) and a SourceError per skipped one.
// The returned error is reserved for failures of the exchange itself.
type Exchange interface {
	Write(ctx context.Context, snap models.Snapshot) error
	ReadAll(ctx context.Context) ([]models.Snapshot, []SourceError, error)
	Close() error
}

// freshness decides whether a snapshot is recent enough to merge.
type freshness struct {
	maxAge time.Duration
	now    func() time.Time
}

func (f freshness) cutoff() time.Time {
	return f.now().Add(-f.maxAge)
}

func (f freshness) check(snap models.Snapshot) error {
	if f.maxAge <= 0 {
		return nil
	}
	if snap.WrittenAt.Before(f.cutoff()) {
		return fmt.Errorf("%w: written %s ago", ErrStale, f.now().Sub(snap.WrittenAt).Round(time.Second))
	}
	return nil
}
