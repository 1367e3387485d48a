package core_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderbot/core"
	"leaderbot/core/coretest"
)

func TestDiff_NewAndUpdatedMembers(t *testing.T) {
	p := coretest.P
	previous := coretest.Leaderboard(coretest.Member(1, "alice", p(1, 1), p(5, 1)))
	current := coretest.Leaderboard(
		coretest.Member(1, "alice", p(1, 1), p(2, 1), p(5, 1), p(5, 2)),
		coretest.Member(2, "bob", p(1, 1)),
	)

	cs := core.Diff(previous, current)

	require.Len(t, cs.NewMembers, 1)
	assert.Equal(t, core.MemberID(2), cs.NewMembers[0].ID)
	require.Len(t, cs.UpdatedMembers, 1)
	u := cs.UpdatedMembers[0]
	assert.Equal(t, core.MemberID(1), u.Member.ID)
	assert.Equal(t, 2, u.PreviousStars)
	assert.Equal(t, 4, u.CurrentStars)
	assert.Equal(t, []core.Puzzle{p(2, 1), p(5, 2)}, u.NewPuzzles)
	assert.Empty(t, cs.Regressions)
	assert.False(t, cs.IsEmpty())
	assert.True(t, cs.IsNew(2))
	assert.False(t, cs.IsNew(1))
	assert.Equal(t, 2, cs.StarsGained())
}

func TestDiff_IdenticalSnapshotsAreEmpty(t *testing.T) {
	lb := coretest.Leaderboard(
		coretest.Member(1, "alice", coretest.Days(3)...),
		coretest.Member(2, ""),
	)
	cs := core.Diff(lb, lb.Clone())
	assert.True(t, cs.IsEmpty())
	assert.Empty(t, cs.Regressions)
}

func TestDiff_NilPreviousMakesEveryoneNew(t *testing.T) {
	current := coretest.Leaderboard(coretest.Member(3, "c"), coretest.Member(1, "a", coretest.P(1, 1)))
	cs := core.Diff(nil, current)
	require.Len(t, cs.NewMembers, 2)
	assert.Equal(t, core.MemberID(1), cs.NewMembers[0].ID)
	assert.Equal(t, core.MemberID(3), cs.NewMembers[1].ID)
	assert.Empty(t, cs.UpdatedMembers)
}

func TestDiff_RemovedMembersAreIgnored(t *testing.T) {
	previous := coretest.Leaderboard(coretest.Member(1, "a", coretest.P(1, 1)), coretest.Member(2, "b"))
	current := coretest.Leaderboard(coretest.Member(1, "a", coretest.P(1, 1)))
	assert.True(t, core.Diff(previous, current).IsEmpty())
}

func TestDiff_RenameWithoutStarsIsNotAChange(t *testing.T) {
	previous := coretest.Leaderboard(coretest.Member(1, "old", coretest.P(1, 1)))
	current := coretest.Leaderboard(coretest.Member(1, "new", coretest.P(1, 1)))
	assert.True(t, core.Diff(previous, current).IsEmpty())
}

func TestDiff_StarDecreaseIsRegression(t *testing.T) {
	previous := coretest.Leaderboard(coretest.Member(1, "a", coretest.Days(2)...))
	current := coretest.Leaderboard(coretest.Member(1, "a", coretest.P(1, 1)))

	cs := core.Diff(previous, current)
	assert.True(t, cs.IsEmpty())
	require.Len(t, cs.Regressions, 1)
	assert.Equal(t, core.StarRegression{MemberID: 1, PreviousStars: 4, CurrentStars: 1}, cs.Regressions[0])
}

func TestDiff_ResultDoesNotAliasInput(t *testing.T) {
	current := coretest.Leaderboard(coretest.Member(1, "a", coretest.P(1, 1)))
	cs := core.Diff(nil, current)
	*cs.NewMembers[0].Name = "mutated"
	assert.Equal(t, "a", *current.Members[1].Name)
}

func TestSortUpdatesByGain(t *testing.T) {
	updates := []core.MemberUpdate{
		{Member: core.Member{ID: 3}, PreviousStars: 0, CurrentStars: 1},
		{Member: core.Member{ID: 2}, PreviousStars: 0, CurrentStars: 3},
		{Member: core.Member{ID: 1}, PreviousStars: 2, CurrentStars: 3},
	}
	core.SortUpdatesByGain(updates)
	ids := []core.MemberID{updates[0].Member.ID, updates[1].Member.ID, updates[2].Member.ID}
	assert.Equal(t, []core.MemberID{2, 1, 3}, ids)
}

// Randomized checks over generated snapshots.
func TestDiff_Properties(t *testing.T) {
	gen := coretest.NewGenerator(20241201)
	for i := 0; i < 200; i++ {
		prev := gen.Leaderboard(30)
		cur := gen.Progress(prev)

		if cs := core.Diff(prev, prev); !cs.IsEmpty() {
			t.Fatalf("iteration %d: diff of identical snapshots not empty: %+v", i, cs)
		}

		cs := core.Diff(prev, cur)
		seen := map[core.MemberID]bool{}
		for _, m := range cs.NewMembers {
			_, existed := prev.Members[m.ID]
			require.False(t, existed, "iteration %d: member %d reported new but existed", i, m.ID)
			require.False(t, seen[m.ID])
			seen[m.ID] = true
		}
		for _, u := range cs.UpdatedMembers {
			before, existed := prev.Members[u.Member.ID]
			require.True(t, existed)
			require.False(t, seen[u.Member.ID], "iteration %d: member %d in both sets", i, u.Member.ID)
			seen[u.Member.ID] = true
			require.Greater(t, u.CurrentStars, before.Stars)
			require.Len(t, u.NewPuzzles, u.CurrentStars-u.PreviousStars)
		}
		for id, m := range cur.Members {
			before, existed := prev.Members[id]
			if !existed || m.Stars > before.Stars {
				require.True(t, seen[id], "iteration %d: member %d missing from change set", i, id)
			}
		}

		again := core.Diff(prev, cur)
		if diff := cmp.Diff(cs, again); diff != "" {
			t.Fatalf("iteration %d: diff not deterministic (-first +second):\n%s", i, diff)
		}
	}
}
