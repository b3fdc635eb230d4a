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

import "math/bits"

// Cursor is an opaque SCAN cursor: a shard index with its bits
// reversed across the index's shard-count width, the same trick
// Redis's own dictScan uses so that a shard split/shrink mid-scan
// still visits every bucket exactly once in the steady state, and at
// least once when the table is resized concurrently.
type Cursor uint64

// Scan returns keys starting at cursor, and the cursor to resume from
// on the next call; a returned cursor of 0 means the scan has
// completed a full pass. It takes whole shards until it holds at least
// count keys, so a call may return more than count. Because each shard is scanned to
// completion before advancing, a key present for the whole scan is
// returned at least once; a key deleted mid-scan may be missed, and a
// key inserted mid-scan may or may not appear — both allowed by
// spec.md §4.4's iteration guarantee.
func (idx *Index) Scan(cursor Cursor, count int) (keys []string, next Cursor) {
	if count <= 0 {
		count = 10
	}
	n := len(idx.shards)
	width := bits.Len(uint(n - 1))
	shardIdx := reverseBits(uint64(cursor), width)

	for len(keys) < count && shardIdx < uint64(n) {
		shard := idx.shards[shardIdx]
		keys = append(keys, shard.Keys()...)
		shardIdx++
	}
	if shardIdx >= uint64(n) {
		return keys, 0
	}
	return keys, Cursor(reverseBits(shardIdx, width))
}

func reverseBits(v uint64, width int) uint64 {
	var r uint64
	for i := 0; i < width; i++ {
		r |= ((v >> i) & 1) << (width - 1 - i)
	}
	return r
}
