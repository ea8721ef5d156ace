package exchange

import (
	"context"
	"errors"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/kiranshivaraju/speedwatch/internal/store"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Keys(_ context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for k := range c.data {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (c *memCache) Ping(context.Context) error { return nil }

func (c *memCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("not implemented")
}

func (c *memCache) Close() error { return nil }

type memStore struct {
	mu      sync.Mutex
	rows    map[string]*store.SnapshotRow
	pruned  []time.Time
	listErr error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*store.SnapshotRow{}}
}

func (s *memStore) Ping(context.Context) error { return nil }

func (s *memStore) UpsertSnapshot(_ context.Context, row *store.SnapshotRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *row
	s.rows[row.Username] = &cp
	return nil
}

func (s *memStore) row(username string) (*store.SnapshotRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[username]
	return r, ok
}

func (s *memStore) ListSnapshots(_ context.Context, since time.Time) ([]*store.SnapshotRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*store.SnapshotRow
	for _, r := range s.rows {
		if !r.WrittenAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *memStore) DeleteSnapshotsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned = append(s.pruned, cutoff)
	var n int64
	for k, r := range s.rows {
		if r.WrittenAt.Before(cutoff) {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}
