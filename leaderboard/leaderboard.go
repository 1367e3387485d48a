// Package leaderboard ranks the members of a snapshot.
package leaderboard

import (
	"fmt"
	"strings"

	"leaderbot/core"
)

// SortOrder selects the primary ranking key.
type SortOrder string

const (
	// SortByStars ranks by stars, then local score.
	SortByStars SortOrder = "stars"
	// SortByScore ranks by local score, then stars.
	SortByScore SortOrder = "score"
)

// ParseSortOrder accepts "stars", "score" or an empty string (stars).
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortByStars:
		return SortByStars, nil
	case SortByScore, "local_score":
		return SortByScore, nil
	}
	return "", fmt.Errorf("unknown sort order %q (want stars or score)", s)
}

// Entry is one ranked member.
type Entry struct {
	Rank       int           `json:"rank"`
	MemberID   core.MemberID `json:"member_id"`
	Name       string        `json:"name"`
	Stars      int           `json:"stars"`
	LocalScore int64         `json:"local_score"`
	LastStarTS int64         `json:"last_star_ts"`
}

// EntryFor builds an unranked entry from a member.
func EntryFor(m core.Member) Entry {
	return Entry{
		MemberID:   m.ID,
		Name:       m.DisplayName(),
		Stars:      m.Stars,
		LocalScore: m.LocalScore,
		LastStarTS: m.LastStarTS,
	}
}

// Board abstracts ranking operations.
type Board interface {
	Update(e Entry)
	Remove(id core.MemberID)
	TopN(n int) []Entry
	Get(id core.MemberID) (Entry, bool)
	Len() int
}

// Standings ranks every member of lb. Ranks start at 1.
func Standings(lb *core.Leaderboard, order SortOrder) []Entry {
	if lb == nil {
		return nil
	}
	b := NewSkipList(order)
	for _, m := range lb.Members {
		b.Update(EntryFor(m))
	}
	return b.TopN(b.Len())
}
