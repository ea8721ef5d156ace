package exchange

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kiranshivaraju/speedwatch/internal/cache"
	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

// RedisExchange stores each snapshot under its own key with a TTL of the
// maximum snapshot age, so abandoned snapshots expire on their own.
type RedisExchange struct {
	cache cache.Cache
	freshness
}

var _ Exchange = (*RedisExchange)(nil)

func NewRedisExchange(c cache.Cache, maxAge time.Duration) *RedisExchange {
	return &RedisExchange{
		cache:     c,
		freshness: freshness{maxAge: maxAge, now: time.Now},
	}
}

func (e *RedisExchange) Write(ctx context.Context, snap models.Snapshot) error {
	if snap.User == "" {
		return fmt.Errorf("%w: empty user", ErrMalformed)
	}
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := e.cache.Set(ctx, cache.SnapshotKey(snap.User), data, e.maxAge); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

func (e *RedisExchange) ReadAll(ctx context.Context) ([]models.Snapshot, []SourceError, error) {
	keys, err := e.cache.Keys(ctx, cache.SnapshotKeyPattern())
	if err != nil {
		return nil, nil, fmt.Errorf("list snapshots: %w", err)
	}
	sort.Strings(keys)

	var (
		snaps   []models.Snapshot
		skipped []SourceError
	)
	for _, key := range keys {
		user, ok := cache.UserFromSnapshotKey(key)
		if !ok {
			continue
		}
		data, found, err := e.cache.Get(ctx, key)
		if err != nil {
			skipped = append(skipped, SourceError{Source: key, Err: err})
			continue
		}
		if !found {
			// expired between SCAN and GET
			continue
		}
		snap, err := Decode(data)
		if err == nil {
			if snap.User == "" {
				snap.User = user
			}
			err = e.check(snap)
		}
		if err != nil {
			skipped = append(skipped, SourceError{Source: key, Err: err})
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, skipped, nil
}

// Close is a no-op; the cache is owned by the caller.
func (e *RedisExchange) Close() error { return nil }
