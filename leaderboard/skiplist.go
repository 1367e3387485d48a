package leaderboard

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"leaderbot/core"
)

// A skip list ordered by the board's sort order, ties broken by earliest last
// star then member id.

const maxLevel = 16
const pFactor = 0.25

type node struct {
	e    Entry
	next [maxLevel]*node
}

type SkipList struct {
	mu       sync.RWMutex
	head     *node
	lvl      int
	byMember map[core.MemberID]*node
	less     func(a, b Entry) bool
	rng      *rand.Rand
}

func NewSkipList(order SortOrder) *SkipList {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		seed = [16]byte{}
	}
	seed1 := binary.BigEndian.Uint64(seed[:8])
	seed2 := binary.BigEndian.Uint64(seed[8:])

	less := byStars
	if order == SortByScore {
		less = byScore
	}
	return &SkipList{
		head:     &node{},
		lvl:      1,
		byMember: map[core.MemberID]*node{},
		less:     less,
		rng:      rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

func byStars(a, b Entry) bool {
	if a.Stars != b.Stars {
		return a.Stars > b.Stars
	}
	if a.LocalScore != b.LocalScore {
		return a.LocalScore > b.LocalScore
	}
	return tieBreak(a, b)
}

func byScore(a, b Entry) bool {
	if a.LocalScore != b.LocalScore {
		return a.LocalScore > b.LocalScore
	}
	if a.Stars != b.Stars {
		return a.Stars > b.Stars
	}
	return tieBreak(a, b)
}

// tieBreak puts whoever got their latest star first ahead.
func tieBreak(a, b Entry) bool {
	if a.LastStarTS != b.LastStarTS {
		return a.LastStarTS < b.LastStarTS
	}
	return a.MemberID < b.MemberID
}

// Update inserts the entry or moves an existing member to its new position.
func (s *SkipList) Update(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byMember[e.MemberID]; ok {
		s.removeLocked(old.e)
	}
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && s.less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	lvl := s.randomLevel()
	if lvl > s.lvl {
		for i := s.lvl; i < lvl; i++ {
			update[i] = s.head
		}
		s.lvl = lvl
	}
	n := &node{e: e}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
	}
	s.byMember[e.MemberID] = n
}

func (s *SkipList) removeLocked(e Entry) {
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && s.less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	target := update[0].next[0]
	if target == nil || target.e.MemberID != e.MemberID {
		return
	}
	for i := 0; i < s.lvl; i++ {
		if update[i].next[i] == target {
			update[i].next[i] = target.next[i]
		}
	}
	delete(s.byMember, e.MemberID)
	for s.lvl > 1 && s.head.next[s.lvl-1] == nil {
		s.lvl--
	}
}

func (s *SkipList) Remove(id core.MemberID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byMember[id]; ok {
		s.removeLocked(n.e)
	}
}

// TopN returns the first n entries with their rank set.
func (s *SkipList) TopN(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	out := make([]Entry, 0, min(n, len(s.byMember)))
	cur := s.head.next[0]
	for cur != nil && len(out) < n {
		e := cur.e
		e.Rank = len(out) + 1
		out = append(out, e)
		cur = cur.next[0]
	}
	return out
}

// Get returns a member's entry with its current rank.
func (s *SkipList) Get(id core.MemberID) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byMember[id]
	if !ok {
		return Entry{}, false
	}
	rank := 1
	for cur := s.head.next[0]; cur != nil && cur != n; cur = cur.next[0] {
		rank++
	}
	e := n.e
	e.Rank = rank
	return e, true
}

func (s *SkipList) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byMember)
}

var _ Board = (*SkipList)(nil)
