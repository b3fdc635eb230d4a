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

// Package keyspace implements the sharded concurrent index mapping a
// database's keys to their Entry records: the unit every command
// handler reads, replaces or removes.
package keyspace

import (
	"sync/atomic"
	"time"

	"github.com/ferritelabs/ferrite/hybridlog"
	"github.com/ferritelabs/ferrite/values"
)

// Entry is the index record one (db, key) pair maps to. A key's value
// is either resident in memory (Value non-nil, the "hot" case) or has
// been appended to the hybridlog and is addressed by Addr (the "warm
// or cold" case) — never both, and never neither, for a live entry.
type Entry struct {
	Value values.Value
	Addr  hybridlog.Address
	hot   bool

	// ExpiresAtNS is a monotonic-wallclock deadline in UnixNano; zero
	// means no expiry.
	ExpiresAtNS int64

	accessCount  atomic.Uint64
	lastAccessNS atomic.Int64
	revision     atomic.Uint64
}

// NewEntry wraps an in-memory value as a fresh, unexpiring entry at
// revision 1.
func NewEntry(v values.Value) *Entry {
	e := &Entry{Value: v, hot: true}
	e.revision.Store(1)
	e.lastAccessNS.Store(time.Now().UnixNano())
	return e
}

// IsHot reports whether the entry's value is resident in memory
// rather than addressed into the hybridlog.
func (e *Entry) IsHot() bool { return e.hot }

// Touch records an access for LRU/LFU bookkeeping.
func (e *Entry) Touch(now time.Time) {
	e.accessCount.Add(1)
	e.lastAccessNS.Store(now.UnixNano())
}

func (e *Entry) AccessCount() uint64  { return e.accessCount.Load() }
func (e *Entry) LastAccessNS() int64  { return e.lastAccessNS.Load() }
func (e *Entry) Revision() uint64     { return e.revision.Load() }
func (e *Entry) bumpRevision() uint64 { return e.revision.Add(1) }

// Expired reports whether now is at or past ExpiresAtNS.
func (e *Entry) Expired(now time.Time) bool {
	deadline := e.ExpiresAtNS
	return deadline != 0 && now.UnixNano() >= deadline
}

// WithValue returns a shallow copy of e carrying a new value and a
// bumped revision, used by Replace/CompareAndSwap (and by command
// handlers in package dispatch) to publish an updated entry without
// mutating the one readers may still be observing.
func (e *Entry) WithValue(v values.Value) *Entry {
	next := &Entry{Value: v, hot: true, ExpiresAtNS: e.ExpiresAtNS}
	next.revision.Store(e.revision.Load() + 1)
	next.accessCount.Store(e.accessCount.Load())
	next.lastAccessNS.Store(time.Now().UnixNano())
	return next
}

// Offloaded returns a shallow copy of e pointing at a hybridlog
// address instead of an in-memory value, preserving revision/metadata.
func (e *Entry) Offloaded(addr hybridlog.Address) *Entry {
	next := &Entry{Addr: addr, hot: false, ExpiresAtNS: e.ExpiresAtNS}
	next.revision.Store(e.revision.Load())
	next.accessCount.Store(e.accessCount.Load())
	next.lastAccessNS.Store(e.lastAccessNS.Load())
	return next
}
