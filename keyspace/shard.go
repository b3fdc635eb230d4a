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

package keyspace

import (
	"sync"

	nlrm "github.com/launix-de/NonLockingReadMap"
)

// slot adapts an Entry to NonLockingReadMap's KeyGetter constraint: it
// needs an orderable key to binary-search on (GetKey) and a size hint
// for callers that want to budget memory (ComputeSize).
type slot struct {
	key   string
	entry *Entry
}

func (s slot) GetKey() string    { return s.key }
func (s slot) ComputeSize() uint { return uint(len(s.key)) + 64 }

// Shard is one slice of the keyspace index: a fine-grained write lock
// guarding a NonLockingReadMap, so readers (Get, Keys) traverse a
// published immutable snapshot with no lock at all, while writers
// (Insert/Remove/CompareAndSwap) serialize behind mu to keep
// concurrent rebuilds from racing each other's CAS loop. LockOrdered
// takes the separate lockMu, so a command holding it can still call
// Insert/Remove/CompareAndSwap on the same shard.
type Shard struct {
	id uint64

	mu     sync.Mutex // serializes writers only
	lockMu sync.Mutex // held across LockOrdered critical sections
	table  nlrm.NonLockingReadMap[slot, string]
}

func newShard(id uint64) *Shard {
	return &Shard{id: id, table: nlrm.New[slot, string]()}
}

// Get performs a lock-free read of key's current entry.
func (s *Shard) Get(key string) (*Entry, bool) {
	item := s.table.Get(key)
	if item == nil {
		return nil, false
	}
	return (*item).entry, true
}

// Insert publishes e for key unconditionally, returning the entry it
// replaced, if any.
func (s *Shard) Insert(key string, e *Entry) (previous *Entry, replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.table.Set(&slot{key: key, entry: e})
	if old == nil {
		return nil, false
	}
	return (*old).entry, true
}

// Remove deletes key, returning the entry removed, if any.
func (s *Shard) Remove(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.table.Remove(key)
	if old == nil {
		return nil, false
	}
	return (*old).entry, true
}

// CompareAndSwap replaces key's entry with next only if its current
// revision equals expectedRevision (WATCH/optimistic-transaction
// semantics rely on this). A missing key is treated as revision 0.
func (s *Shard) CompareAndSwap(key string, expectedRevision uint64, next *Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.table.Get(key)
	var currentRev uint64
	if current != nil {
		currentRev = (*current).entry.Revision()
	}
	if currentRev != expectedRevision {
		return false
	}
	s.table.Set(&slot{key: key, entry: next})
	return true
}

// Keys returns a lock-free snapshot of every key currently in the
// shard, for SCAN to iterate without blocking writers.
func (s *Shard) Keys() []string {
	items := s.table.GetAll()
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, (*it).key)
	}
	return keys
}

// Len reports the shard's current key count.
func (s *Shard) Len() int { return len(s.table.GetAll()) }

// Lock/Unlock take lockMu for LockOrdered's multi-shard critical
// sections; the writer mutex mu is taken separately by each write.
func (s *Shard) Lock()   { s.lockMu.Lock() }
func (s *Shard) Unlock() { s.lockMu.Unlock() }
