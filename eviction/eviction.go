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

// Package eviction implements maxmemory's eight documented eviction
// policies as pluggable samplers over keyspace.Entry's access
// bookkeeping, triggered when a database's estimated memory use
// crosses config.Snapshot.MaxMemoryBytes.
package eviction

import (
	"math/rand"
	"sort"

	"github.com/ferritelabs/ferrite/config"
	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/keyspace"
)

// candidate is one key considered for eviction, carrying whatever
// ordering field the active policy cares about.
type candidate struct {
	key   string
	entry *keyspace.Entry
}

// Sizer estimates the in-memory footprint of one entry's value, so
// Sweep can decide when to stop evicting without a caller having to
// track a running total itself. A
// nil Sizer makes every entry count as size 1, degrading Sweep to
// "evict until N keys are gone" which is still a valid fallback.
type Sizer func(e *keyspace.Entry) int64

// Sweep runs one eviction pass over reg according to policy, removing
// candidates (oldest/least-frequently-used/soonest-to-expire/random,
// depending on policy) until estimated usage drops to 75% of budget or
// no eligible candidate remains — the same target-fraction shape
// storage/cache.go's CacheManager.cleanup() uses for its own
// budget-triggered eviction. Returns the keys evicted, across every
// database (maxmemory is a server-wide budget, not a per-db one).
func Sweep(reg *database.Registry, policy config.EvictionPolicy, budgetBytes int64, size Sizer) []string {
	if policy == config.NoEviction || budgetBytes <= 0 {
		return nil
	}
	if size == nil {
		size = func(*keyspace.Entry) int64 { return 1 }
	}

	var pool []candidate
	var total int64
	volatileOnly := isVolatilePolicy(policy)

	for i := 0; i < reg.Count(); i++ {
		db, err := reg.Select(i)
		if err != nil {
			continue
		}
		for _, key := range db.Keys.AllKeys() {
			entry, ok := db.Keys.Get(key)
			if !ok {
				continue
			}
			total += size(entry)
			if volatileOnly && entry.ExpiresAtNS == 0 {
				continue
			}
			pool = append(pool, candidate{key: key, entry: entry})
		}
	}

	if total <= budgetBytes {
		return nil
	}
	target := budgetBytes * 75 / 100

	order(pool, policy)

	var evicted []string
	for i := 0; i < len(pool) && total > target; i++ {
		c := pool[i]
		for j := 0; j < reg.Count(); j++ {
			db, err := reg.Select(j)
			if err != nil {
				continue
			}
			if removed, ok := db.Keys.Remove(c.key); ok {
				total -= size(removed)
				evicted = append(evicted, c.key)
				reg.Fire(j, database.OpDel, c.key, removed, nil)
				break
			}
		}
	}
	return evicted
}

func isVolatilePolicy(p config.EvictionPolicy) bool {
	switch p {
	case config.VolatileLRU, config.VolatileLFU, config.VolatileTTL, config.VolatileRandom:
		return true
	default:
		return false
	}
}

// order sorts pool in the eviction order policy prescribes (candidates
// near the front go first). Random policies shuffle instead of
// sorting.
func order(pool []candidate, policy config.EvictionPolicy) {
	switch policy {
	case config.AllKeysLRU, config.VolatileLRU:
		sort.Slice(pool, func(i, j int) bool {
			return pool[i].entry.LastAccessNS() < pool[j].entry.LastAccessNS()
		})
	case config.AllKeysLFU, config.VolatileLFU:
		sort.Slice(pool, func(i, j int) bool {
			return pool[i].entry.AccessCount() < pool[j].entry.AccessCount()
		})
	case config.VolatileTTL:
		sort.Slice(pool, func(i, j int) bool {
			return pool[i].entry.ExpiresAtNS < pool[j].entry.ExpiresAtNS
		})
	case config.AllKeysRandom, config.VolatileRandom:
		rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	}
}
