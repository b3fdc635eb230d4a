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

// Package hybridlog implements the tiered log-structured store: a
// mutable in-place-writable region, an immutable read-only region
// backed by mmap'd segments, and a cold region behind a pluggable
// ColdStore. headOffset <= readonlyOffset <= tailOffset, all logical
// addresses (LA) into the same monotonically growing address space.
package hybridlog

import (
	"sync"
	"sync/atomic"
)

// Address is a 64-bit logical address into the hybrid log's single
// growing address space, spanning all three regions.
type Address uint64

// record is one value's serialized bytes plus the metadata needed to
// relocate it during compaction.
type record struct {
	addr Address
	key  string
	data []byte
	// superseded, when set, marks a read-only record that has since
	// been overwritten by a newer address; reads and eviction skip such
	// records. Nothing in this package sets it, so every read-only
	// record is treated as current.
	superseded atomic.Bool
	// seg, when non-nil, means data has been evicted from the heap and
	// must be read back from this sealed, mmap'd segment instead.
	seg *roSegment
}

// Log is one database's HybridLog instance. New sizes the mutable and
// read-only region budgets from its Config; the maintainer goroutine
// enforces them afterward.
type Log struct {
	mu sync.RWMutex

	headOffset     atomic.Uint64
	readonlyOffset atomic.Uint64
	tailOffset     atomic.Uint64

	// mutable holds append-block records below tailOffset and at or
	// above readonlyOffset: still in-place-writable.
	mutable map[Address]*record
	// readonly holds immutable records at or above headOffset and
	// below readonlyOffset.
	readonly map[Address]*record
	byKeyLatest map[string]Address

	cold ColdStore

	mutableBudget  uint64
	readonlyBudget uint64

	completedMu sync.Mutex
	completed   map[Ticket]asyncResult
	nextTicket  uint64

	// segDir holds the mmap'd read-only segment files; empty means the
	// read-only region is kept purely in memory (used by tests and by
	// configurations that size the readonly budget at zero).
	segDir      string
	segMu       sync.Mutex
	segments    []*roSegment
	activeSeg   *roSegment
	segBytes    uint64
	maxSegBytes uint64

	// archive, when set, compresses a record's bytes before it leaves
	// the read-only region for cold storage.
	archive func([]byte) ([]byte, error)
	restore func([]byte) ([]byte, error)
}

// Config bundles the budgets and cold backend a Log is constructed with.
type Config struct {
	MutableBytes  uint64
	ReadonlyBytes uint64
	Cold          ColdStore
	// SegmentDir, when non-empty, stores read-only-region segments as
	// mmap'd files under this directory instead of keeping them
	// in-process only.
	SegmentDir string
	// MaxSegmentBytes bounds one read-only segment file before it is
	// sealed and a new one started. Defaults to 64MiB.
	MaxSegmentBytes uint64
	// Archive/Restore compress and decompress a record's bytes on its
	// way from the read-only region to the cold tier and back. Nil
	// means store cold bytes uncompressed.
	Archive func([]byte) ([]byte, error)
	Restore func([]byte) ([]byte, error)
}

// New constructs an empty Log.
func New(cfg Config) *Log {
	maxSeg := cfg.MaxSegmentBytes
	if maxSeg == 0 {
		maxSeg = 64 << 20
	}
	l := &Log{
		mutable:        make(map[Address]*record),
		readonly:       make(map[Address]*record),
		byKeyLatest:    make(map[string]Address),
		cold:           cfg.Cold,
		mutableBudget:  cfg.MutableBytes,
		readonlyBudget: cfg.ReadonlyBytes,
		segDir:         cfg.SegmentDir,
		maxSegBytes:    maxSeg,
		archive:        cfg.Archive,
		restore:        cfg.Restore,
	}
	return l
}

// Append writes data for key at a freshly allocated tail address,
// returning it. This is the only way new bytes enter the mutable
// region; updates to an existing key still allocate a new address
// (the hybrid log is append-only — in-place "mutation" only applies
// to bytes already in the mutable region being overwritten by further
// in-place field updates before the entry crosses into read-only).
func (l *Log) Append(key string, data []byte) Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	addr := Address(l.tailOffset.Add(uint64(len(data))) - uint64(len(data)))
	r := &record{addr: addr, key: key, data: data}
	l.mutable[addr] = r
	l.byKeyLatest[key] = addr
	return addr
}

// Read returns the bytes at addr, consulting mutable, then read-only,
// then cold storage in turn, per spec.md §4.6's three-tier read path.
// Cold reads are synchronous here; callers on the hot path should
// prefer ReadAsync to overlap cold I/O with other work.
func (l *Log) Read(addr Address) ([]byte, error) {
	l.mu.RLock()
	if r, ok := l.mutable[addr]; ok {
		data := r.data
		l.mu.RUnlock()
		return data, nil
	}
	if r, ok := l.readonly[addr]; ok && !r.superseded.Load() {
		if r.data != nil {
			data := r.data
			l.mu.RUnlock()
			return data, nil
		}
		seg := r.seg
		l.mu.RUnlock()
		if seg != nil {
			if b, ok := seg.read(addr); ok {
				return b, nil
			}
		}
		return nil, &StorageError{Addr: addr, Err: ErrNotResident}
	}
	l.mu.RUnlock()
	return l.ReadCold(addr)
}

// LatestAddress returns the current address for key, if any key has
// ever been appended under that name and not superseded-to-nothing.
func (l *Log) LatestAddress(key string) (Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.byKeyLatest[key]
	return a, ok
}

// Bounds returns the current head/readonly/tail offsets.
func (l *Log) Bounds() (head, readonly, tail Address) {
	return Address(l.headOffset.Load()), Address(l.readonlyOffset.Load()), Address(l.tailOffset.Load())
}

// mutableBytes estimates bytes currently in the mutable region.
func (l *Log) mutableBytes() uint64 {
	return l.tailOffset.Load() - l.readonlyOffset.Load()
}

func (l *Log) readonlyBytes() uint64 {
	return l.readonlyOffset.Load() - l.headOffset.Load()
}
