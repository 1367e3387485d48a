package core

import "sort"

// ChangeSet is the result of comparing two snapshots of the same leaderboard.
// A member appears in at most one of NewMembers and UpdatedMembers.
type ChangeSet struct {
	NewMembers     []Member         `json:"new_members"`
	UpdatedMembers []MemberUpdate   `json:"updated_members"`
	Regressions    []StarRegression `json:"regressions,omitempty"`
}

// MemberUpdate describes a member whose star count went up.
type MemberUpdate struct {
	Member        Member   `json:"member"`
	PreviousStars int      `json:"previous_stars"`
	CurrentStars  int      `json:"current_stars"`
	NewPuzzles    []Puzzle `json:"new_puzzles"`
}

// StarRegression describes a member whose star count went down. This only
// happens when upstream data is inconsistent and is never a reportable change.
type StarRegression struct {
	MemberID      MemberID `json:"member_id"`
	PreviousStars int      `json:"previous_stars"`
	CurrentStars  int      `json:"current_stars"`
}

// IsEmpty reports whether there is nothing to announce. Regressions do not count.
func (c ChangeSet) IsEmpty() bool {
	return len(c.NewMembers) == 0 && len(c.UpdatedMembers) == 0
}

// IsNew reports whether the member joined since the previous snapshot.
func (c ChangeSet) IsNew(id MemberID) bool {
	for _, m := range c.NewMembers {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Update returns the update record of a member, if any.
func (c ChangeSet) Update(id MemberID) (MemberUpdate, bool) {
	for _, u := range c.UpdatedMembers {
		if u.Member.ID == id {
			return u, true
		}
	}
	return MemberUpdate{}, false
}

// StarsGained sums the stars obtained by updated members.
func (c ChangeSet) StarsGained() int {
	total := 0
	for _, u := range c.UpdatedMembers {
		total += u.CurrentStars - u.PreviousStars
	}
	return total
}

// Diff computes the changes from previous to current. A nil previous is
// treated as an empty leaderboard. Members missing from current are ignored.
// Results are ordered by member id.
func Diff(previous, current *Leaderboard) ChangeSet {
	var cs ChangeSet
	if current == nil {
		return cs
	}
	var prevMembers map[MemberID]Member
	if previous != nil {
		prevMembers = previous.Members
	}

	for _, id := range current.MemberIDs() {
		cur := current.Members[id]
		prev, existed := prevMembers[id]
		switch {
		case !existed:
			cs.NewMembers = append(cs.NewMembers, cur.Clone())
		case cur.Stars > prev.Stars:
			cs.UpdatedMembers = append(cs.UpdatedMembers, MemberUpdate{
				Member:        cur.Clone(),
				PreviousStars: prev.Stars,
				CurrentStars:  cur.Stars,
				NewPuzzles:    newPuzzles(prev, cur),
			})
		case cur.Stars < prev.Stars:
			cs.Regressions = append(cs.Regressions, StarRegression{
				MemberID:      id,
				PreviousStars: prev.Stars,
				CurrentStars:  cur.Stars,
			})
		}
	}
	return cs
}

// newPuzzles lists puzzles solved in cur but not in prev.
func newPuzzles(prev, cur Member) []Puzzle {
	var out []Puzzle
	for _, p := range cur.Completed() {
		if _, ok := prev.CompletedAt(p); !ok {
			out = append(out, p)
		}
	}
	sortPuzzles(out)
	return out
}

// SortUpdatesByGain orders updates by stars gained, most first, then by id.
func SortUpdatesByGain(updates []MemberUpdate) {
	sort.SliceStable(updates, func(i, j int) bool {
		gi := updates[i].CurrentStars - updates[i].PreviousStars
		gj := updates[j].CurrentStars - updates[j].PreviousStars
		if gi == gj {
			return updates[i].Member.ID < updates[j].Member.ID
		}
		return gi > gj
	})
}
