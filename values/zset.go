/*
Copyright (C) 2026  Ferrite Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package values

import (
	"math"

	"github.com/google/btree"
)

// zsetItem is one (score,member) pair as stored in the ordered index;
// Less orders by score first, then lexicographically by member so
// ZRANGEBYLEX has a well-defined tie-break without a second tree.
type zsetItem struct {
	score  float64
	member string
}

func (a zsetItem) Less(than btree.Item) bool {
	b := than.(zsetItem)
	if a.score != b.score {
		return a.score < b.score
	}
	return a.member < b.member
}

// ZSet is a member->score map plus a btree.BTree ordered index over
// (score,member), the same structural idiom memcp's storage/index.go
// uses a google/btree for its delta index — here keyed by the sorted-
// set's own score ordering instead of a column's row values.
type ZSet struct {
	scores map[string]float64
	index  *btree.BTree
}

func (*ZSet) Kind() Kind { return KindZSet }

// NewZSet returns an empty ZSet.
func NewZSet() *ZSet {
	return &ZSet{scores: make(map[string]float64), index: btree.New(32)}
}

// AddResult flags returned by Add per member, mirroring ZADD's
// NX/XX/GT/LT/CH semantics.
type AddResult int

const (
	AddedNew AddResult = iota
	AddedUpdated
	AddedSkipped
)

// AddOptions mirrors ZADD's flag set.
type AddOptions struct {
	NX, XX, GT, LT, CH bool
}

// Add inserts or updates member with score according to opts,
// returning what happened. NaN scores must be rejected by the caller
// before reaching here (spec's boundary-check invariant).
func (z *ZSet) Add(member string, score float64, opts AddOptions) AddResult {
	old, existed := z.scores[member]
	if existed && opts.NX {
		return AddedSkipped
	}
	if !existed && opts.XX {
		return AddedSkipped
	}
	if existed {
		if opts.GT && score <= old {
			return AddedSkipped
		}
		if opts.LT && score >= old {
			return AddedSkipped
		}
		if score == old {
			return AddedUpdated
		}
		z.index.Delete(zsetItem{score: old, member: member})
	}
	z.scores[member] = score
	z.index.ReplaceOrInsert(zsetItem{score: score, member: member})
	if existed {
		return AddedUpdated
	}
	return AddedNew
}

// Score returns member's score.
func (z *ZSet) Score(member string) (float64, bool) {
	s, ok := z.scores[member]
	return s, ok
}

// Rem removes members, returning the count actually removed.
func (z *ZSet) Rem(members ...string) int {
	n := 0
	for _, m := range members {
		score, ok := z.scores[m]
		if !ok {
			continue
		}
		delete(z.scores, m)
		z.index.Delete(zsetItem{score: score, member: m})
		n++
	}
	return n
}

// IncrBy adds delta to member's score (defaulting to 0 if new) and
// returns the new score.
func (z *ZSet) IncrBy(member string, delta float64) float64 {
	old, existed := z.scores[member]
	newScore := delta
	if existed {
		newScore = old + delta
		z.index.Delete(zsetItem{score: old, member: member})
	}
	z.scores[member] = newScore
	z.index.ReplaceOrInsert(zsetItem{score: newScore, member: member})
	return newScore
}

// Card returns the member count.
func (z *ZSet) Card() int { return len(z.scores) }

// Count returns the number of members with min <= score <= max.
func (z *ZSet) Count(min, max float64) int {
	n := 0
	z.index.AscendRange(zsetItem{score: min, member: ""}, zsetItem{score: math.Nextafter(max, math.Inf(1)), member: ""}, func(it btree.Item) bool {
		if it.(zsetItem).score > max {
			return false
		}
		n++
		return true
	})
	return n
}

// RangeByRank returns members (with scores) at inclusive ranks
// [start,end], negative indices counting from the end, in ascending
// score order unless rev is set.
func (z *ZSet) RangeByRank(start, end int, rev bool) []ZMember {
	all := z.ascending()
	if rev {
		reverseMembers(all)
	}
	n := len(all)
	start = clampIndex(start, n)
	end = clampIndex(end, n)
	if end >= n {
		end = n - 1
	}
	if start > end || n == 0 {
		return nil
	}
	return append([]ZMember{}, all[start:end+1]...)
}

// ZMember pairs a member with its score for range replies.
type ZMember struct {
	Member string
	Score  float64
}

func (z *ZSet) ascending() []ZMember {
	out := make([]ZMember, 0, len(z.scores))
	z.index.Ascend(func(it btree.Item) bool {
		zi := it.(zsetItem)
		out = append(out, ZMember{Member: zi.member, Score: zi.score})
		return true
	})
	return out
}

func reverseMembers(m []ZMember) {
	for i, j := 0, len(m)-1; i < j; i, j = i+1, j-1 {
		m[i], m[j] = m[j], m[i]
	}
}

// RangeByScore returns members with min <= score <= max, ascending
// unless rev is set, with an optional offset/count like LIMIT.
func (z *ZSet) RangeByScore(min, max float64, rev bool, offset, count int) []ZMember {
	var out []ZMember
	z.index.AscendRange(zsetItem{score: min, member: ""}, zsetItem{score: math.Nextafter(max, math.Inf(1)), member: ""}, func(it btree.Item) bool {
		zi := it.(zsetItem)
		if zi.score > max {
			return false
		}
		out = append(out, ZMember{Member: zi.member, Score: zi.score})
		return true
	})
	if rev {
		reverseMembers(out)
	}
	return applyLimit(out, offset, count)
}

func applyLimit(in []ZMember, offset, count int) []ZMember {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if count >= 0 && count < len(in) {
		in = in[:count]
	}
	return in
}

// RangeByLex returns members in [min,max] lexicographic range among
// members sharing equal score (ZRANGEBYLEX's precondition), ascending
// unless rev is set. min/max use Redis's `[`/`(`/`-`/`+` prefixes,
// already decoded by the caller into (value, inclusive, unbounded).
func (z *ZSet) RangeByLex(minVal string, minInclusive, minUnbounded bool, maxVal string, maxInclusive, maxUnbounded bool, rev bool) []ZMember {
	all := z.ascending()
	var out []ZMember
	for _, m := range all {
		if !minUnbounded {
			if minInclusive && m.Member < minVal {
				continue
			}
			if !minInclusive && m.Member <= minVal {
				continue
			}
		}
		if !maxUnbounded {
			if maxInclusive && m.Member > maxVal {
				continue
			}
			if !maxInclusive && m.Member >= maxVal {
				continue
			}
		}
		out = append(out, m)
	}
	if rev {
		reverseMembers(out)
	}
	return out
}

// Rank returns member's 0-based ascending rank, or -1 if absent.
func (z *ZSet) Rank(member string, rev bool) int {
	score, ok := z.scores[member]
	if !ok {
		return -1
	}
	rank := 0
	found := false
	z.index.Ascend(func(it btree.Item) bool {
		zi := it.(zsetItem)
		if zi.member == member && zi.score == score {
			found = true
			return false
		}
		rank++
		return true
	})
	if !found {
		return -1
	}
	if rev {
		return z.Card() - 1 - rank
	}
	return rank
}

// PopMin removes and returns up to count lowest-scoring members.
func (z *ZSet) PopMin(count int) []ZMember {
	var out []ZMember
	for i := 0; i < count; i++ {
		it := z.index.DeleteMin()
		if it == nil {
			break
		}
		zi := it.(zsetItem)
		delete(z.scores, zi.member)
		out = append(out, ZMember{Member: zi.member, Score: zi.score})
	}
	return out
}

// PopMax removes and returns up to count highest-scoring members.
func (z *ZSet) PopMax(count int) []ZMember {
	var out []ZMember
	for i := 0; i < count; i++ {
		it := z.index.DeleteMax()
		if it == nil {
			break
		}
		zi := it.(zsetItem)
		delete(z.scores, zi.member)
		out = append(out, ZMember{Member: zi.member, Score: zi.score})
	}
	return out
}

// ZSetAggregate selects how UnionStore/InterStore/DiffStore combine
// scores of members present in multiple inputs.
type ZSetAggregate int

const (
	AggregateSum ZSetAggregate = iota
	AggregateMin
	AggregateMax
)

func combine(agg ZSetAggregate, a, b float64) float64 {
	switch agg {
	case AggregateMin:
		if b < a {
			return b
		}
		return a
	case AggregateMax:
		if b > a {
			return b
		}
		return a
	default:
		return a + b
	}
}

// UnionStore builds a fresh ZSet from the weighted, aggregated union
// of srcs.
func UnionStore(agg ZSetAggregate, srcs []*ZSet, weights []float64) *ZSet {
	out := NewZSet()
	for i, s := range srcs {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		for m, sc := range s.scores {
			weighted := sc * w
			if cur, ok := out.scores[m]; ok {
				out.Add(m, combine(agg, cur, weighted), AddOptions{})
			} else {
				out.Add(m, weighted, AddOptions{})
			}
		}
	}
	return out
}

// InterStore builds a fresh ZSet from members present in every src,
// aggregating weighted scores.
func InterStore(agg ZSetAggregate, srcs []*ZSet, weights []float64) *ZSet {
	out := NewZSet()
	if len(srcs) == 0 {
		return out
	}
	for m, sc := range srcs[0].scores {
		w0 := 1.0
		if len(weights) > 0 {
			w0 = weights[0]
		}
		acc := sc * w0
		inAll := true
		for i, s := range srcs[1:] {
			other, ok := s.scores[m]
			if !ok {
				inAll = false
				break
			}
			w := 1.0
			if i+1 < len(weights) {
				w = weights[i+1]
			}
			acc = combine(agg, acc, other*w)
		}
		if inAll {
			out.Add(m, acc, AddOptions{})
		}
	}
	return out
}

// DiffStore builds a fresh ZSet from members of srcs[0] absent from
// every other input, keeping srcs[0]'s scores.
func DiffStore(srcs []*ZSet) *ZSet {
	out := NewZSet()
	if len(srcs) == 0 {
		return out
	}
	for m, sc := range srcs[0].scores {
		present := false
		for _, s := range srcs[1:] {
			if _, ok := s.scores[m]; ok {
				present = true
				break
			}
		}
		if !present {
			out.Add(m, sc, AddOptions{})
		}
	}
	return out
}

// Scan returns up to count members starting at cursor, plus the next
// cursor (0 once exhausted), over the ascending score order.
func (z *ZSet) Scan(cursor Cursor, count int) ([]ZMember, Cursor) {
	all := z.ascending()
	start := int(cursor)
	if start >= len(all) {
		return nil, 0
	}
	end := start + count
	if end > len(all) {
		end = len(all)
	}
	next := Cursor(end)
	if end >= len(all) {
		next = 0
	}
	return all[start:end], next
}
