package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// LeaderboardID identifies an Advent of Code private leaderboard.
type LeaderboardID int64

// MemberID identifies an Advent of Code user. Member IDs are stable across
// leaderboards and events.
type MemberID int64

// Leaderboard is a snapshot of a private leaderboard for one event year.
// The JSON shape matches the Advent of Code API: the year is serialized as a
// string under "event" and member/day keys are decimal strings.
type Leaderboard struct {
	Year    int                 `json:"event,string"`
	OwnerID MemberID            `json:"owner_id"`
	Day1TS  int64               `json:"day1_ts"`
	Members map[MemberID]Member `json:"members"`
}

// Member is one participant of a Leaderboard.
type Member struct {
	ID          MemberID                   `json:"id"`
	Name        *string                    `json:"name"`
	Stars       int                        `json:"stars"`
	LocalScore  int64                      `json:"local_score"`
	GlobalScore int64                      `json:"global_score"`
	LastStarTS  int64                      `json:"last_star_ts"`
	Completions map[int]CompletionDayLevel `json:"completion_day_level"`
}

// CompletionDayLevel holds completion info for both parts of a day's puzzle.
// Part 2 is nil until the member solves it.
type CompletionDayLevel struct {
	Part1 PuzzleCompletion  `json:"1"`
	Part2 *PuzzleCompletion `json:"2,omitempty"`
}

// PuzzleCompletion records when a star was obtained.
type PuzzleCompletion struct {
	GetStarTS int64 `json:"get_star_ts"`
	StarIndex int64 `json:"star_index"`
}

// Puzzle names one half of a day's puzzle.
type Puzzle struct {
	Day  int `json:"day"`
	Part int `json:"part"`
}

func (p Puzzle) String() string { return fmt.Sprintf("day%d/part%d", p.Day, p.Part) }

// NewLeaderboard returns an empty leaderboard ready to receive members.
func NewLeaderboard(year int, owner MemberID) *Leaderboard {
	return &Leaderboard{Year: year, OwnerID: owner, Members: map[MemberID]Member{}}
}

// DisplayName returns the member's name, or a placeholder for anonymous users.
func (m Member) DisplayName() string {
	if m.Name == nil || strings.TrimSpace(*m.Name) == "" {
		return fmt.Sprintf("(anonymous user #%d)", m.ID)
	}
	return *m.Name
}

// CompletedAt returns the completion info for a puzzle, if solved.
func (m Member) CompletedAt(p Puzzle) (PuzzleCompletion, bool) {
	day, ok := m.Completions[p.Day]
	if !ok {
		return PuzzleCompletion{}, false
	}
	switch p.Part {
	case 1:
		if day.Part1.GetStarTS == 0 {
			return PuzzleCompletion{}, false
		}
		return day.Part1, true
	case 2:
		if day.Part2 == nil {
			return PuzzleCompletion{}, false
		}
		return *day.Part2, true
	}
	return PuzzleCompletion{}, false
}

// Completed lists every solved puzzle ordered by day then part. A part 1
// entry without a star timestamp is not solved.
func (m Member) Completed() []Puzzle {
	out := make([]Puzzle, 0, len(m.Completions)*2)
	for day, lvl := range m.Completions {
		if lvl.Part1.GetStarTS != 0 {
			out = append(out, Puzzle{Day: day, Part: 1})
		}
		if lvl.Part2 != nil {
			out = append(out, Puzzle{Day: day, Part: 2})
		}
	}
	sortPuzzles(out)
	return out
}

// Clone returns a deep copy of the member.
func (m Member) Clone() Member {
	cp := m
	if m.Name != nil {
		name := *m.Name
		cp.Name = &name
	}
	if m.Completions != nil {
		cp.Completions = make(map[int]CompletionDayLevel, len(m.Completions))
		for day, lvl := range m.Completions {
			if lvl.Part2 != nil {
				p2 := *lvl.Part2
				lvl.Part2 = &p2
			}
			cp.Completions[day] = lvl
		}
	}
	return cp
}

// Clone returns a deep copy of the leaderboard.
func (l *Leaderboard) Clone() *Leaderboard {
	if l == nil {
		return nil
	}
	cp := &Leaderboard{
		Year:    l.Year,
		OwnerID: l.OwnerID,
		Day1TS:  l.Day1TS,
		Members: make(map[MemberID]Member, len(l.Members)),
	}
	for id, m := range l.Members {
		cp.Members[id] = m.Clone()
	}
	return cp
}

// Equal reports whether two snapshots describe the same state.
func (l *Leaderboard) Equal(other *Leaderboard) bool {
	if l == nil || other == nil {
		return l == other
	}
	if l.Year != other.Year || l.OwnerID != other.OwnerID || l.Day1TS != other.Day1TS {
		return false
	}
	if len(l.Members) != len(other.Members) {
		return false
	}
	for id, m := range l.Members {
		o, ok := other.Members[id]
		if !ok || !m.Equal(o) {
			return false
		}
	}
	return true
}

// Equal compares two members field by field.
func (m Member) Equal(o Member) bool {
	if m.ID != o.ID || m.Stars != o.Stars || m.LocalScore != o.LocalScore ||
		m.GlobalScore != o.GlobalScore || m.LastStarTS != o.LastStarTS {
		return false
	}
	if (m.Name == nil) != (o.Name == nil) || (m.Name != nil && *m.Name != *o.Name) {
		return false
	}
	if len(m.Completions) != len(o.Completions) {
		return false
	}
	for day, lvl := range m.Completions {
		olvl, ok := o.Completions[day]
		if !ok || lvl.Part1 != olvl.Part1 {
			return false
		}
		if (lvl.Part2 == nil) != (olvl.Part2 == nil) || (lvl.Part2 != nil && *lvl.Part2 != *olvl.Part2) {
			return false
		}
	}
	return true
}

// Validate checks the invariants a fetched or loaded snapshot must hold.
func (l *Leaderboard) Validate() error {
	if l == nil {
		return errors.New("nil leaderboard")
	}
	var errs []string
	for id, m := range l.Members {
		if m.ID != id {
			errs = append(errs, fmt.Sprintf("member key %d does not match id %d", id, m.ID))
		}
		if m.Stars < 0 {
			errs = append(errs, fmt.Sprintf("member %d has negative stars", id))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// DecodeSnapshot decodes a stored snapshot of year. A record that decodes but
// is not a valid snapshot of that year, including a JSON null, is corrupted.
func DecodeSnapshot(op, key string, data []byte, year int) (*Leaderboard, error) {
	var lb *Leaderboard
	if err := json.Unmarshal(data, &lb); err != nil {
		return nil, Corrupted(op, key, err)
	}
	if lb == nil {
		return nil, Corrupted(op, key, errors.New("null record"))
	}
	if lb.Year != year {
		return nil, Corrupted(op, key, fmt.Errorf("record holds event %d, want %d", lb.Year, year))
	}
	if lb.Members == nil {
		lb.Members = map[MemberID]Member{}
	}
	if err := lb.Validate(); err != nil {
		return nil, Corrupted(op, key, err)
	}
	return lb, nil
}

// MemberIDs returns the member ids in ascending order.
func (l *Leaderboard) MemberIDs() []MemberID {
	if l == nil {
		return nil
	}
	ids := make([]MemberID, 0, len(l.Members))
	for id := range l.Members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortPuzzles(p []Puzzle) {
	sort.Slice(p, func(i, j int) bool {
		if p[i].Day == p[j].Day {
			return p[i].Part < p[j].Part
		}
		return p[i].Day < p[j].Day
	})
}
