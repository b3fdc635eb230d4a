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

// Package expire implements TTL enforcement: a lazy check performed on
// every read/write path before a value is returned, and an active
// sampler that walks a per-database TTL index in the background so an
// idle expired key is still eventually reclaimed.
package expire

import (
	"time"

	"github.com/google/btree"

	"github.com/ferritelabs/ferrite/keyspace"
)

// ttlItem orders the TTL index by (expiresAt, key), letting the active
// sampler ascend from the earliest deadline without scanning the
// whole keyspace.
type ttlItem struct {
	expiresAtNS int64
	key         string
}

func (a ttlItem) Less(than btree.Item) bool {
	b := than.(ttlItem)
	if a.expiresAtNS != b.expiresAtNS {
		return a.expiresAtNS < b.expiresAtNS
	}
	return a.key < b.key
}

// Index is one database's TTL index: every key with a non-zero expiry
// has exactly one entry here, ordered soonest-first.
type Index struct {
	tree *btree.BTree
}

// NewIndex constructs an empty TTL index.
func NewIndex() *Index {
	return &Index{tree: btree.New(32)}
}

// Set records key's deadline, replacing any previous one.
func (idx *Index) Set(key string, expiresAtNS int64) {
	idx.tree.ReplaceOrInsert(ttlItem{expiresAtNS: expiresAtNS, key: key})
}

// Clear removes key's deadline (PERSIST, or the key itself being deleted).
func (idx *Index) Clear(key string, expiresAtNS int64) {
	idx.tree.Delete(ttlItem{expiresAtNS: expiresAtNS, key: key})
}

// Sample visits up to n keys with the earliest deadlines, in order,
// stopping early if visit returns false.
func (idx *Index) Sample(n int, visit func(key string, expiresAtNS int64) bool) {
	count := 0
	idx.tree.Ascend(func(it btree.Item) bool {
		if count >= n {
			return false
		}
		count++
		item := it.(ttlItem)
		return visit(item.key, item.expiresAtNS)
	})
}

// Len reports how many keys currently carry a TTL.
func (idx *Index) Len() int { return idx.tree.Len() }

// SetPredicate selects which of EXPIRE's NX/XX/GT/LT modifiers, if
// any, gate whether a new deadline is applied.
type SetPredicate int

const (
	PredicateNone SetPredicate = iota
	PredicateNX                // only set if the key has no existing expiry
	PredicateXX                // only set if the key already has an expiry
	PredicateGT                // only set if the new expiry is later than the current one
	PredicateLT                // only set if the new expiry is sooner than the current one
)

// ApplyExpire is EXPIRE/PEXPIRE's shared core: it
// checks pred against the entry's current ExpiresAtNS and, if it
// passes, installs newDeadlineNS on both the Entry and idx.
func ApplyExpire(idx *Index, entry *keyspace.Entry, key string, newDeadlineNS int64, pred SetPredicate) bool {
	current := entry.ExpiresAtNS
	switch pred {
	case PredicateNX:
		if current != 0 {
			return false
		}
	case PredicateXX:
		if current == 0 {
			return false
		}
	case PredicateGT:
		if current != 0 && newDeadlineNS <= current {
			return false
		}
		if current == 0 {
			// Redis treats "no TTL" as infinite: GT never fires against it.
			return false
		}
	case PredicateLT:
		if current != 0 && newDeadlineNS >= current {
			return false
		}
	}
	if current != 0 {
		idx.Clear(key, current)
	}
	entry.ExpiresAtNS = newDeadlineNS
	idx.Set(key, newDeadlineNS)
	return true
}

// Persist implements PERSIST: remove key's TTL if it has one,
// reporting whether it did.
func Persist(idx *Index, entry *keyspace.Entry, key string) bool {
	if entry.ExpiresAtNS == 0 {
		return false
	}
	idx.Clear(key, entry.ExpiresAtNS)
	entry.ExpiresAtNS = 0
	return true
}

// CheckLazy is the read/write-path lazy check: if entry has expired as
// of now, it returns true so the caller can treat the key as absent
// (spec.md's invariant 3 — an expired entry is never returned, even if
// physical reclaim is pending).
func CheckLazy(entry *keyspace.Entry, now time.Time) bool {
	return entry.Expired(now)
}
