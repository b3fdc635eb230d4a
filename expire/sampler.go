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

package expire

import (
	"time"

	"github.com/ferritelabs/ferrite/clock"
	"github.com/ferritelabs/ferrite/keyspace"
)

// sampleBatch bounds how many keys one active-expire pass inspects
// before re-checking the expired fraction, the same "sample N, check,
// repeat" shape Redis's own activeExpireCycle uses.
const sampleBatch = 20

// OnExpired is called once per key the active sampler reclaims,
// letting the owning database fire its mutation hook and append an
// AOL DEL-equivalent record.
type OnExpired func(key string)

// Sampler periodically walks one database's TTL Index, removing
// expired entries from both the TTL index and the keyspace, repeating
// until the expired fraction of the sample drops below
// targetFraction or a time budget elapses — mirrors
// storage/cache.go's CacheManager.cleanup() loop (sample, sort/filter,
// evict until under target), adapted from a memory budget to an
// expired-fraction budget.
type Sampler struct {
	ttl    *Index
	ks     *keyspace.Index
	onExp  OnExpired
	sched  *clock.Scheduler
	cancel func()

	targetFraction float64
	timeBudget     time.Duration
}

// NewSampler constructs a Sampler over ttl/ks, calling onExpired for
// every key it reclaims.
func NewSampler(ttl *Index, ks *keyspace.Index, onExpired OnExpired, sched *clock.Scheduler) *Sampler {
	if sched == nil {
		sched = &clock.Default
	}
	return &Sampler{
		ttl:            ttl,
		ks:             ks,
		onExp:          onExpired,
		sched:          sched,
		targetFraction: 0.25,
		timeBudget:     25 * time.Millisecond,
	}
}

// SetTargetFraction changes the expired-fraction threshold the
// sampler stops at, typically sourced from
// config.Snapshot.ActiveExpireCycleFraction.
func (s *Sampler) SetTargetFraction(f float64) { s.targetFraction = f }

// Start begins the periodic active-expire cycle.
func (s *Sampler) Start(period time.Duration) {
	s.cancel = s.sched.ScheduleEvery(period, s.cycle)
}

// Stop halts the periodic active-expire cycle.
func (s *Sampler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// cycle runs one active-expire pass: sample sampleBatch keys, reclaim
// the expired ones, and repeat while the expired fraction stays at or
// above targetFraction and the time budget has not elapsed.
func (s *Sampler) cycle() {
	deadline := time.Now().Add(s.timeBudget)
	for {
		if time.Now().After(deadline) {
			return
		}
		now := time.Now()
		sampled := 0
		expiredKeys := make([]string, 0, sampleBatch)
		s.ttl.Sample(sampleBatch, func(key string, expiresAtNS int64) bool {
			sampled++
			if expiresAtNS <= now.UnixNano() {
				expiredKeys = append(expiredKeys, key)
			}
			return true
		})
		for _, key := range expiredKeys {
			s.reclaim(key)
		}
		if sampled == 0 {
			return
		}
		if float64(len(expiredKeys))/float64(sampled) < s.targetFraction {
			return
		}
	}
}

func (s *Sampler) reclaim(key string) {
	entry, ok := s.ks.Get(key)
	if !ok {
		return
	}
	if entry.ExpiresAtNS != 0 {
		s.ttl.Clear(key, entry.ExpiresAtNS)
	}
	s.ks.Remove(key)
	if s.onExp != nil {
		s.onExp(key)
	}
}
