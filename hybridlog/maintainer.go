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

package hybridlog

import (
	"log"
	"time"

	"github.com/ferritelabs/ferrite/clock"
)

// Maintainer periodically enforces a Log's mutable and read-only
// budgets in the background, the hybridlog analogue of
// storage.CacheManager's budget-triggered eviction loop: instead of
// reacting to every write, one ticking goroutine keeps nudging the
// boundaries back under budget.
type Maintainer struct {
	l      *Log
	sched  *clock.Scheduler
	cancel func()

	interval time.Duration
}

// NewMaintainer constructs a Maintainer for l, ticking every interval
// (defaulting to 100ms) using the package's default scheduler unless
// sched is non-nil.
func NewMaintainer(l *Log, interval time.Duration, sched *clock.Scheduler) *Maintainer {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if sched == nil {
		sched = &clock.Default
	}
	return &Maintainer{l: l, interval: interval, sched: sched}
}

// Start begins the periodic boundary check.
func (m *Maintainer) Start() {
	m.cancel = m.sched.ScheduleEvery(m.interval, m.tick)
}

// Stop halts the periodic boundary check.
func (m *Maintainer) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Maintainer) tick() {
	if _, err := m.l.AdvanceReadonly(); err != nil {
		log.Printf("hybridlog: advance read-only boundary: %v", err)
	}
	if _, err := m.l.Evict(); err != nil {
		log.Printf("hybridlog: evict to cold tier: %v", err)
	}
}
