// Package coretest builds leaderboard fixtures for tests.
package coretest

import (
	"github.com/brianvoe/gofakeit/v7"

	"leaderbot/core"
)

// Year used by fixtures.
const Year = 2024

// LeaderboardID used by fixtures.
const LeaderboardID core.LeaderboardID = 424242

// Member builds a member whose star count matches the given puzzles.
// Completion timestamps are derived from day and part so fixtures are stable.
func Member(id core.MemberID, name string, puzzles ...core.Puzzle) core.Member {
	m := core.Member{ID: id, Completions: map[int]core.CompletionDayLevel{}}
	if name != "" {
		n := name
		m.Name = &n
	}
	for _, p := range puzzles {
		Solve(&m, p)
	}
	return m
}

// Solve marks a puzzle solved and bumps the star count and score.
func Solve(m *core.Member, p core.Puzzle) {
	if m.Completions == nil {
		m.Completions = map[int]core.CompletionDayLevel{}
	}
	ts := int64(1700000000 + p.Day*86400 + p.Part*600)
	lvl := m.Completions[p.Day]
	switch p.Part {
	case 1:
		lvl.Part1 = core.PuzzleCompletion{GetStarTS: ts, StarIndex: int64(p.Day * 10)}
	case 2:
		lvl.Part2 = &core.PuzzleCompletion{GetStarTS: ts, StarIndex: int64(p.Day*10 + 1)}
	}
	m.Completions[p.Day] = lvl
	m.Stars++
	m.LocalScore += int64(10 * p.Part)
	if ts > m.LastStarTS {
		m.LastStarTS = ts
	}
}

// P is shorthand for a puzzle.
func P(day, part int) core.Puzzle { return core.Puzzle{Day: day, Part: part} }

// Days returns both parts of days 1..n.
func Days(n int) []core.Puzzle {
	out := make([]core.Puzzle, 0, n*2)
	for d := 1; d <= n; d++ {
		out = append(out, P(d, 1), P(d, 2))
	}
	return out
}

// Leaderboard assembles a snapshot from members.
func Leaderboard(members ...core.Member) *core.Leaderboard {
	lb := core.NewLeaderboard(Year, 1)
	for _, m := range members {
		lb.Members[m.ID] = m
	}
	return lb
}

// Generator produces random but valid leaderboards.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator returns a generator seeded for reproducible runs.
func NewGenerator(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Leaderboard returns a random snapshot with up to n members.
func (g *Generator) Leaderboard(n int) *core.Leaderboard {
	lb := core.NewLeaderboard(Year, 1)
	count := g.faker.IntRange(0, n)
	for i := 0; i < count; i++ {
		id := core.MemberID(g.faker.IntRange(1, 5000))
		name := ""
		if g.faker.Bool() {
			name = g.faker.Username()
		}
		lb.Members[id] = Member(id, name, g.Puzzles(g.faker.IntRange(0, 12))...)
	}
	return lb
}

// Puzzles returns a prefix of the event's puzzles: day 1 part 1, day 1 part 2, ...
func (g *Generator) Puzzles(n int) []core.Puzzle {
	all := Days(25)
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// Progress returns a copy of lb where some members solved more puzzles, some
// members joined and some left.
func (g *Generator) Progress(lb *core.Leaderboard) *core.Leaderboard {
	next := lb.Clone()
	for id, m := range next.Members {
		switch g.faker.IntRange(0, 4) {
		case 0:
			delete(next.Members, id)
		case 1, 2:
			solved := len(m.Completed())
			for _, p := range g.Puzzles(solved + g.faker.IntRange(1, 3))[solved:] {
				Solve(&m, p)
			}
			next.Members[id] = m
		}
	}
	for i := g.faker.IntRange(0, 3); i > 0; i-- {
		id := core.MemberID(g.faker.IntRange(5001, 9000))
		next.Members[id] = Member(id, g.faker.Username(), g.Puzzles(g.faker.IntRange(0, 4))...)
	}
	return next
}
