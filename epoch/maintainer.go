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

package epoch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ferritelabs/ferrite/clock"
)

// Maintainer periodically advances the global epoch and drains
// reclaimable garbage. One Maintainer per Manager; the server starts
// exactly one against epoch.Global.
type Maintainer struct {
	m        *Manager
	sched    clock.Scheduler
	cancel   func()
	interval time.Duration
}

// NewMaintainer builds a Maintainer for m, ticking every interval.
func NewMaintainer(m *Manager, interval time.Duration) *Maintainer {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	return &Maintainer{m: m, interval: interval}
}

// Start begins the background advance+drain loop.
func (mt *Maintainer) Start() {
	mt.cancel = mt.sched.ScheduleEvery(mt.interval, mt.tick)
}

// Stop halts the background loop.
func (mt *Maintainer) Stop() {
	if mt.cancel != nil {
		mt.cancel()
	}
	mt.sched.Stop()
}

// tick advances the epoch and scans participants concurrently with
// draining already-safe garbage; golang.org/x/sync/errgroup lets the
// participant scan (which only reads atomics) proceed without
// serializing behind the drain's lock acquisition.
func (mt *Maintainer) tick() {
	mt.m.Advance()

	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		mt.m.Drain()
		return nil
	})
	g.Go(func() error {
		_ = mt.m.MinParticipantEpoch()
		return nil
	})
	_ = g.Wait()
}

// DrainNow forces an immediate drain pass, bypassing the scheduler.
func (mt *Maintainer) DrainNow() int { return mt.m.Drain() }
