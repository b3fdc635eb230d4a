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

// Package epoch implements epoch-based reclamation: the global
// mechanism that lets lock-free readers (keyspace shard snapshots,
// HybridLog read-only region pages) keep dereferencing memory another
// goroutine has logically retired, until every participant has proven
// it has moved past the epoch the retirement happened in.
package epoch

import (
	"sync"
	"sync/atomic"
)

// notPinned is the sentinel a participant slot holds while not inside
// a Guard; it is larger than any real epoch so a drain scan treats an
// unpinned participant as "already past everything."
const notPinned = ^uint64(0)

type participant struct {
	epoch atomic.Uint64
	// free marks a slot whose goroutine has exited and can be reused.
	free atomic.Bool
}

// garbageItem is one retired address awaiting safe reclamation.
type garbageItem struct {
	epoch uint64
	free  func()
}

// Manager is the process-wide epoch authority: one global counter,
// one participant table, one set of per-epoch garbage lists. Callers
// obtain the shared instance via Global; constructing additional
// Managers is only useful in tests that want isolation.
type Manager struct {
	current atomic.Uint64

	mu           sync.Mutex
	participants []*participant

	garbageMu sync.Mutex
	garbage   map[uint64][]garbageItem
}

// NewManager returns a fresh, independent epoch manager.
func NewManager() *Manager {
	return &Manager{garbage: make(map[uint64][]garbageItem)}
}

// Global is the single process-wide Manager (spec's "one EpochManager"
// global-state limit).
var Global = NewManager()

// Current returns the current global epoch.
func (m *Manager) Current() uint64 { return m.current.Load() }

// Advance moves the global epoch forward by one and returns the new
// value. Called by the slow timer driven from clock.Scheduler; never
// called from a hot path.
func (m *Manager) Advance() uint64 { return m.current.Add(1) }

// Guard pins the calling goroutine at the current epoch for the
// lifetime of one lock-free read or HybridLog traversal. Unpin must be
// called exactly once, typically via defer.
type Guard struct {
	m    *Manager
	slot *participant
}

// Pin registers the caller (or reuses a free slot) and stores the
// current epoch with release semantics, per spec.md §4.7(a)-(b).
func (m *Manager) Pin() *Guard {
	slot := m.acquireSlot()
	slot.epoch.Store(m.current.Load())
	return &Guard{m: m, slot: slot}
}

func (m *Manager) acquireSlot() *participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.free.CompareAndSwap(true, false) {
			return p
		}
	}
	p := &participant{}
	m.participants = append(m.participants, p)
	return p
}

// Epoch reports the epoch this guard was pinned at.
func (g *Guard) Epoch() uint64 { return g.slot.epoch.Load() }

// Unpin publishes "not pinned" for this participant, per spec.md
// §4.7's exit invariant, and marks its slot free for reuse.
func (g *Guard) Unpin() {
	g.slot.epoch.Store(notPinned)
	g.slot.free.Store(true)
}

// Retire schedules free to run once every participant has advanced
// past the epoch the retirement was issued in. free must not be called
// more than once per address (spec.md §4.7 invariant).
func (m *Manager) Retire(atEpoch uint64, free func()) {
	m.garbageMu.Lock()
	m.garbage[atEpoch] = append(m.garbage[atEpoch], garbageItem{epoch: atEpoch, free: free})
	m.garbageMu.Unlock()
}

// MinParticipantEpoch returns the lowest stored epoch across all
// pinned participants, or the current epoch if nobody is pinned.
func (m *Manager) MinParticipantEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	min := m.current.Load()
	for _, p := range m.participants {
		e := p.epoch.Load()
		if e == notPinned {
			continue
		}
		if e < min {
			min = e
		}
	}
	return min
}

// Drain frees garbage retired at any epoch strictly less than the
// current minimum participant epoch, returning the count freed. The
// maintainer calls this periodically; it is also safe to call
// directly (e.g. from tests) since it only acts on already-safe items.
func (m *Manager) Drain() int {
	safeBefore := m.MinParticipantEpoch()
	m.garbageMu.Lock()
	var toFree []garbageItem
	for e, items := range m.garbage {
		if e < safeBefore {
			toFree = append(toFree, items...)
			delete(m.garbage, e)
		}
	}
	m.garbageMu.Unlock()
	for _, item := range toFree {
		item.free()
	}
	return len(toFree)
}

// PendingCount reports the number of not-yet-freed garbage items,
// across all epochs; used by the maintainer to decide whether to
// advance the global epoch eagerly.
func (m *Manager) PendingCount() int {
	m.garbageMu.Lock()
	defer m.garbageMu.Unlock()
	n := 0
	for _, items := range m.garbage {
		n += len(items)
	}
	return n
}
