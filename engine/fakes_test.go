package engine

import (
	"context"
	"errors"
	"sync"

	"leaderbot/core"
)

type fakeFetcher struct {
	lb    *core.Leaderboard
	err   error
	calls int
	// hook runs before returning, for cancellation tests
	hook func(ctx context.Context) error
}

func (f *fakeFetcher) Fetch(ctx context.Context, year int, id core.LeaderboardID, creds core.Credentials) (*core.Leaderboard, error) {
	f.calls++
	if f.hook != nil {
		if err := f.hook(ctx); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.lb.Clone(), nil
}

type fakeStorage struct {
	mu        sync.Mutex
	stored    *core.Leaderboard
	loadErr   error
	saveErr   error
	loads     int
	saves     []*core.Leaderboard
	lastError string
	recorded  []string
	afterSave func()
}

func (s *fakeStorage) Load(ctx context.Context, id core.LeaderboardID, year int) (*core.Leaderboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.stored.Clone(), nil
}

func (s *fakeStorage) Save(ctx context.Context, id core.LeaderboardID, year int, lb *core.Leaderboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, lb.Clone())
	if s.saveErr != nil {
		return s.saveErr
	}
	s.stored = lb.Clone()
	s.lastError = ""
	if s.afterSave != nil {
		s.afterSave()
	}
	return nil
}

func (s *fakeStorage) RecordError(ctx context.Context, id core.LeaderboardID, year int, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, kind)
	s.lastError = kind
	return nil
}

func (s *fakeStorage) LastError(ctx context.Context, id core.LeaderboardID, year int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError, nil
}

type fakeReporter struct {
	mu           sync.Mutex
	changes      []core.Report
	errors       []core.ErrorReport
	changesErr   error
	reportErrErr error
}

func (r *fakeReporter) ReportChanges(ctx context.Context, report core.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, report)
	return r.changesErr
}

func (r *fakeReporter) ReportError(ctx context.Context, report core.ErrorReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, report)
	return r.reportErrErr
}

var errBoom = errors.New("boom")
