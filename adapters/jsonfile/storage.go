package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"leaderbot/core"
)

// Store persists one JSON file per leaderboard and year under a directory:
// <dir>/<id>_<year>.json holds the snapshot in the Advent of Code API shape and
// <dir>/<id>_<year>.last_error holds the kind of the last failed cycle.
// Suitable for single host deployments.
type Store struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("jsonfile: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the snapshot file of a key.
func (s *Store) Path(id core.LeaderboardID, year int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d_%d.json", id, year))
}

func (s *Store) errorPath(id core.LeaderboardID, year int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d_%d.last_error", id, year))
}

func (s *Store) Load(ctx context.Context, id core.LeaderboardID, year int) (*core.Leaderboard, error) {
	path := s.Path(id, year)
	if err := ctx.Err(); err != nil {
		return nil, core.Unavailable("load", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, core.Unavailable("load", path, err)
	}
	return core.DecodeSnapshot("load", path, b, year)
}

func (s *Store) Save(ctx context.Context, id core.LeaderboardID, year int, lb *core.Leaderboard) error {
	path := s.Path(id, year)
	if err := ctx.Err(); err != nil {
		return core.Unavailable("save", path, err)
	}
	if lb == nil {
		return &core.StorageError{Op: "save", Key: path, Err: errors.New("nil leaderboard")}
	}
	b, err := json.MarshalIndent(lb, "", "  ")
	if err != nil {
		return &core.StorageError{Op: "save", Key: path, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(path, b); err != nil {
		return core.Unavailable("save", path, err)
	}
	if err := os.Remove(s.errorPath(id, year)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return core.Unavailable("save", path, err)
	}
	return nil
}

func (s *Store) RecordError(_ context.Context, id core.LeaderboardID, year int, kind string) error {
	path := s.errorPath(id, year)
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return core.Unavailable("record_error", path, err)
		}
		return nil
	}
	if err := writeAtomic(path, []byte(kind+"\n")); err != nil {
		return core.Unavailable("record_error", path, err)
	}
	return nil
}

func (s *Store) LastError(_ context.Context, id core.LeaderboardID, year int) (string, error) {
	path := s.errorPath(id, year)
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", core.Unavailable("last_error", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Ping checks the directory is still there and writable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.dir, ".ping-*")
	if err != nil {
		return core.Unavailable("ping", s.dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// writeAtomic replaces path with data. Readers see either the old or the new
// content, never a partial write.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

var _ interface {
	Load(context.Context, core.LeaderboardID, int) (*core.Leaderboard, error)
	Save(context.Context, core.LeaderboardID, int, *core.Leaderboard) error
	RecordError(context.Context, core.LeaderboardID, int, string) error
	LastError(context.Context, core.LeaderboardID, int) (string, error)
} = (*Store)(nil)
