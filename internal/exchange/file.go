package exchange

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

const fileSuffix = "_node_info.json"

// FileExchange keeps one <user>_node_info.json per user in a directory
// shared by every user, typically an NFS mount.
type FileExchange struct {
	dir string
	freshness
}

var _ Exchange = (*FileExchange)(nil)

// NewFileExchange creates dir if needed.
func NewFileExchange(dir string, maxAge time.Duration) (*FileExchange, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create exchange dir: %w", err)
	}
	return &FileExchange{
		dir:       dir,
		freshness: freshness{maxAge: maxAge, now: time.Now},
	}, nil
}

func (e *FileExchange) path(user string) string {
	return filepath.Join(e.dir, user+fileSuffix)
}

// Write stages the snapshot in a temp file in the same directory and renames
// it into place, so readers never observe a partial file.
func (e *FileExchange) Write(ctx context.Context, snap models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.User == "" || strings.ContainsAny(snap.User, `/\`) {
		return fmt.Errorf("%w: invalid user %q", ErrMalformed, snap.User)
	}
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(e.dir, "."+snap.User+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, e.path(snap.User)); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// ReadAll returns snapshots sorted by user. A file without a user or a write
// time takes them from its name and modification time.
func (e *FileExchange) ReadAll(ctx context.Context) ([]models.Snapshot, []SourceError, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("list exchange dir: %w", err)
	}

	var (
		snaps   []models.Snapshot
		skipped []SourceError
	)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) || strings.HasPrefix(name, ".") {
			continue
		}

		snap, err := e.readOne(name)
		if err != nil {
			skipped = append(skipped, SourceError{Source: name, Err: err})
			continue
		}
		snaps = append(snaps, snap)
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].User < snaps[j].User })
	return snaps, skipped, nil
}

func (e *FileExchange) readOne(name string) (models.Snapshot, error) {
	path := filepath.Join(e.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return models.Snapshot{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Snapshot{}, err
	}
	snap, err := Decode(data)
	if err != nil {
		return models.Snapshot{}, err
	}
	if snap.User == "" {
		snap.User = strings.TrimSuffix(name, fileSuffix)
	}
	if snap.WrittenAt.IsZero() {
		snap.WrittenAt = info.ModTime()
	}
	if err := e.check(snap); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

func (e *FileExchange) Close() error { return nil }
