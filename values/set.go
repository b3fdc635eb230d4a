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
	"math/rand"
	"sort"
)

// Set is an unordered collection of distinct members.
type Set struct {
	members map[string]struct{}
}

func (*Set) Kind() Kind { return KindSet }

// NewSet returns an empty Set.
func NewSet() *Set { return &Set{members: make(map[string]struct{})} }

// Add inserts members, returning the count newly added.
func (s *Set) Add(members ...string) int {
	n := 0
	for _, m := range members {
		if _, ok := s.members[m]; !ok {
			s.members[m] = struct{}{}
			n++
		}
	}
	return n
}

// Rem removes members, returning the count actually removed.
func (s *Set) Rem(members ...string) int {
	n := 0
	for _, m := range members {
		if _, ok := s.members[m]; ok {
			delete(s.members, m)
			n++
		}
	}
	return n
}

// IsMember reports whether m is in the set.
func (s *Set) IsMember(m string) bool {
	_, ok := s.members[m]
	return ok
}

// Card returns the member count.
func (s *Set) Card() int { return len(s.members) }

// Members returns all members, order unspecified.
func (s *Set) Members() []string {
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	return out
}

// Pop removes and returns up to count random members.
func (s *Set) Pop(count int) []string {
	all := s.Members()
	if count > len(all) {
		count = len(all)
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	picked := all[:count]
	for _, m := range picked {
		delete(s.members, m)
	}
	return picked
}

// RandMember returns up to |count| members without removing them.
// A negative count allows duplicates (sampling with replacement), a
// positive count is capped at the set size (no duplicates).
func (s *Set) RandMember(count int) []string {
	all := s.Members()
	if len(all) == 0 {
		return nil
	}
	if count < 0 {
		n := -count
		out := make([]string, n)
		for i := range out {
			out[i] = all[rand.Intn(len(all))]
		}
		return out
	}
	if count > len(all) {
		count = len(all)
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:count]
}

// Move transfers member from src to dst, returning whether it was present.
func Move(src, dst *Set, member string) bool {
	if _, ok := src.members[member]; !ok {
		return false
	}
	delete(src.members, member)
	dst.members[member] = struct{}{}
	return true
}

// Union returns a fresh Set containing every member across sets.
func Union(sets ...*Set) *Set {
	out := NewSet()
	for _, s := range sets {
		for m := range s.members {
			out.members[m] = struct{}{}
		}
	}
	return out
}

// Inter returns a fresh Set containing members present in every set.
func Inter(sets ...*Set) *Set {
	out := NewSet()
	if len(sets) == 0 {
		return out
	}
	for m := range sets[0].members {
		inAll := true
		for _, s := range sets[1:] {
			if !s.IsMember(m) {
				inAll = false
				break
			}
		}
		if inAll {
			out.members[m] = struct{}{}
		}
	}
	return out
}

// Diff returns a fresh Set containing members of sets[0] absent from
// every other set.
func Diff(sets ...*Set) *Set {
	out := NewSet()
	if len(sets) == 0 {
		return out
	}
	for m := range sets[0].members {
		present := false
		for _, s := range sets[1:] {
			if s.IsMember(m) {
				present = true
				break
			}
		}
		if !present {
			out.members[m] = struct{}{}
		}
	}
	return out
}

// Scan returns up to count members starting at cursor, plus the next
// cursor (0 once exhausted), over a sorted snapshot of the member set.
func (s *Set) Scan(cursor Cursor, count int) ([]string, Cursor) {
	all := s.Members()
	sort.Strings(all)
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
