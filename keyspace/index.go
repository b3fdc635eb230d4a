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
	"hash/maphash"
	"sort"
)

// DefaultShardCount is the default number of shards an Index is
// constructed with; must be a power of two.
const DefaultShardCount = 128

// hashSeed is generated once per process so every Index in it agrees
// on which shard a key belongs to, without needing a dependency for
// what hash/maphash already provides (see DESIGN.md).
var hashSeed = maphash.MakeSeed()

// Index is one database's sharded concurrent keyspace: S shards,
// selected by the low bits of a stable 64-bit hash of the key.
type Index struct {
	shards []*Shard
	mask   uint64
}

// NewIndex constructs an Index with shardCount shards, rounded up to
// the next power of two (defaulting to DefaultShardCount if zero).
func NewIndex(shardCount int) *Index {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	n := 1
	for n < shardCount {
		n <<= 1
	}
	shards := make([]*Shard, n)
	for i := range shards {
		shards[i] = newShard(uint64(i))
	}
	return &Index{shards: shards, mask: uint64(n - 1)}
}

func keyHash(key string) uint64 {
	var h maphash.Hash
	h.SetSeed(hashSeed)
	_, _ = h.WriteString(key)
	return h.Sum64()
}

func (idx *Index) shardFor(key string) *Shard {
	return idx.shards[keyHash(key)&idx.mask]
}

// ShardCount reports how many shards the index was built with.
func (idx *Index) ShardCount() int { return len(idx.shards) }

// Get returns key's current entry, if it exists, via a lock-free read.
func (idx *Index) Get(key string) (*Entry, bool) {
	return idx.shardFor(key).Get(key)
}

// Insert publishes e for key unconditionally.
func (idx *Index) Insert(key string, e *Entry) (previous *Entry, replaced bool) {
	return idx.shardFor(key).Insert(key, e)
}

// Replace atomically swaps key's value, bumping its revision, failing
// with ok=false if the key does not currently exist.
func (idx *Index) Replace(key string, apply func(old *Entry) *Entry) (next *Entry, ok bool) {
	shard := idx.shardFor(key)
	shard.Lock()
	defer shard.Unlock()
	old, exists := shard.Get(key)
	if !exists {
		return nil, false
	}
	next = apply(old)
	shard.Insert(key, next)
	return next, true
}

// Remove deletes key, returning the removed entry if present.
func (idx *Index) Remove(key string) (*Entry, bool) {
	return idx.shardFor(key).Remove(key)
}

// CompareAndSwap replaces key's entry with next iff its current
// revision equals expectedRevision; used by EXEC to validate a WATCH
// set and by optimistic single-key updates.
func (idx *Index) CompareAndSwap(key string, expectedRevision uint64, next *Entry) bool {
	return idx.shardFor(key).CompareAndSwap(key, expectedRevision, next)
}

// AllKeys returns a lock-free snapshot of every key across every
// shard, for KEYS/eviction sweeps that need the full keyspace rather
// than SCAN's incremental cursor. Expensive on a large keyspace by
// design — callers that can use Scan instead should.
func (idx *Index) AllKeys() []string {
	var keys []string
	for _, s := range idx.shards {
		keys = append(keys, s.Keys()...)
	}
	return keys
}

// Len sums every shard's key count. Callers on a hot path should
// prefer caching this rather than calling it per-command, since it
// walks every shard.
func (idx *Index) Len() int {
	total := 0
	for _, s := range idx.shards {
		total += s.Len()
	}
	return total
}

// LockOrdered locks every shard touched by keys, in ascending shard-id
// order (ties broken by key), and returns the unlock function. This is
// the deadlock-avoidance discipline multi-key commands (MSET, DEL,
// RENAME, transactions) and EXEC must use instead of locking shards in
// argument order.
func (idx *Index) LockOrdered(keys ...string) (unlock func()) {
	seen := make(map[uint64]*Shard, len(keys))
	for _, k := range keys {
		sh := idx.shardFor(k)
		seen[sh.id] = sh
	}
	ordered := make([]*Shard, 0, len(seen))
	for _, sh := range seen {
		ordered = append(ordered, sh)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })
	for _, sh := range ordered {
		sh.Lock()
	}
	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			ordered[i].Unlock()
		}
	}
}
