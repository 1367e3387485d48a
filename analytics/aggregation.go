package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"leaderbot/core"
)

// LeaderboardStats aggregates the cycles of one leaderboard and year.
type LeaderboardStats struct {
	LeaderboardID  core.LeaderboardID `json:"leaderboard_id"`
	Year           int                `json:"year"`
	Runs           int64              `json:"runs"`
	Successes      int64              `json:"successes"`
	Failures       int64              `json:"failures"`
	FailuresByKind map[string]int64   `json:"failures_by_kind"`
	StarsGained    int64              `json:"stars_gained"`
	NewMembers     int64              `json:"new_members"`
	Regressions    int64              `json:"regressions"`
	// StarsByDay counts stars gained per UTC day ("2006-01-02").
	StarsByDay  map[string]int64 `json:"stars_by_day"`
	LastSuccess time.Time        `json:"last_success,omitempty"`
	LastFailure time.Time        `json:"last_failure,omitempty"`
	LastError   string           `json:"last_error,omitempty"`
}

func (s *LeaderboardStats) clone() LeaderboardStats {
	cp := *s
	cp.FailuresByKind = make(map[string]int64, len(s.FailuresByKind))
	for k, v := range s.FailuresByKind {
		cp.FailuresByKind[k] = v
	}
	cp.StarsByDay = make(map[string]int64, len(s.StarsByDay))
	for k, v := range s.StarsByDay {
		cp.StarsByDay[k] = v
	}
	return cp
}

type statsKey struct {
	id   core.LeaderboardID
	year int
}

// Stats keeps in-memory aggregates per leaderboard. Reset on restart.
type Stats struct {
	mu    sync.RWMutex
	items map[statsKey]*LeaderboardStats
}

func NewStats() *Stats { return &Stats{items: map[statsKey]*LeaderboardStats{}} }

func (s *Stats) entry(id core.LeaderboardID, year int) *LeaderboardStats {
	k := statsKey{id, year}
	st, ok := s.items[k]
	if !ok {
		st = &LeaderboardStats{
			LeaderboardID:  id,
			Year:           year,
			FailuresByKind: map[string]int64{},
			StarsByDay:     map[string]int64{},
		}
		s.items[k] = st
	}
	return st
}

func (s *Stats) OnEvent(_ context.Context, e core.Event) {
	if e.LeaderboardID == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(e.LeaderboardID, e.Year)
	switch e.Type {
	case core.EventCycleStarted:
		st.Runs++
	case core.EventCycleSucceeded:
		st.Successes++
		st.LastSuccess = e.Time
	case core.EventCycleFailed:
		st.Failures++
		st.FailuresByKind[e.ErrorKind]++
		st.LastFailure = e.Time
		st.LastError = e.Error
	case core.EventChangesDetected:
		if e.Changes == nil {
			return
		}
		gained := int64(e.Changes.StarsGained())
		st.StarsGained += gained
		st.NewMembers += int64(len(e.Changes.NewMembers))
		if gained > 0 {
			st.StarsByDay[e.Time.UTC().Format("2006-01-02")] += gained
		}
	case core.EventStarRegression:
		if e.Changes != nil {
			st.Regressions += int64(len(e.Changes.Regressions))
		}
	}
}

// Get returns a copy of the aggregate for a leaderboard.
func (s *Stats) Get(id core.LeaderboardID, year int) (LeaderboardStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.items[statsKey{id, year}]
	if !ok {
		return LeaderboardStats{}, false
	}
	return st.clone(), true
}

// All returns every aggregate ordered by leaderboard then year.
func (s *Stats) All() []LeaderboardStats {
	s.mu.RLock()
	out := make([]LeaderboardStats, 0, len(s.items))
	for _, st := range s.items {
		out = append(out, st.clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].LeaderboardID == out[j].LeaderboardID {
			return out[i].Year < out[j].Year
		}
		return out[i].LeaderboardID < out[j].LeaderboardID
	})
	return out
}
