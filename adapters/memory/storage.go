package memory

import (
	"context"
	"sync"
	"time"

	"leaderbot/core"
)

// Store is a concurrent in-memory Storage implementation. Snapshots are
// deep-copied on the way in and out.
type Store struct {
	records sync.Map // map[key]*record
}

type key struct {
	id   core.LeaderboardID
	year int
}

type record struct {
	mu        sync.Mutex
	lb        *core.Leaderboard
	lastError string
	updated   time.Time
}

func New() *Store { return &Store{} }

func (s *Store) get(k key) *record {
	if v, ok := s.records.Load(k); ok {
		return v.(*record)
	}
	actual, _ := s.records.LoadOrStore(k, &record{})
	return actual.(*record)
}

func (s *Store) Load(ctx context.Context, id core.LeaderboardID, year int) (*core.Leaderboard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := s.records.Load(key{id, year})
	if !ok {
		return nil, nil
	}
	rec := v.(*record)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.lb.Clone(), nil
}

func (s *Store) Save(ctx context.Context, id core.LeaderboardID, year int, lb *core.Leaderboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := s.get(key{id, year})
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.lb = lb.Clone()
	rec.lastError = ""
	rec.updated = time.Now().UTC()
	return nil
}

func (s *Store) RecordError(_ context.Context, id core.LeaderboardID, year int, kind string) error {
	rec := s.get(key{id, year})
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.lastError = kind
	return nil
}

func (s *Store) LastError(_ context.Context, id core.LeaderboardID, year int) (string, error) {
	v, ok := s.records.Load(key{id, year})
	if !ok {
		return "", nil
	}
	rec := v.(*record)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.lastError, nil
}

// UpdatedAt returns when the snapshot for the key was last saved.
func (s *Store) UpdatedAt(id core.LeaderboardID, year int) (time.Time, bool) {
	v, ok := s.records.Load(key{id, year})
	if !ok {
		return time.Time{}, false
	}
	rec := v.(*record)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.updated, rec.lb != nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

var _ interface {
	Load(context.Context, core.LeaderboardID, int) (*core.Leaderboard, error)
	Save(context.Context, core.LeaderboardID, int, *core.Leaderboard) error
	RecordError(context.Context, core.LeaderboardID, int, string) error
	LastError(context.Context, core.LeaderboardID, int) (string, error)
} = (*Store)(nil)
