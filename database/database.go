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

// Package database owns the N numbered keyspaces a server exposes
// (SELECT's address space): each Database wraps its own
// keyspace.Index, TTL index and active-expire Sampler, and every
// mutating operation fires a MutationHook so anything watching the
// server from outside dispatch (the monitor package's MONITOR feed,
// a future AOL writer) has one place to subscribe.
package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/ferritelabs/ferrite/expire"
	"github.com/ferritelabs/ferrite/keyspace"
)

// Op names the kind of mutation a MutationHook observed.
type Op int

const (
	OpSet Op = iota
	OpDel
	OpExpire
	OpFlush
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "SET"
	case OpDel:
		return "DEL"
	case OpExpire:
		return "EXPIRE"
	case OpFlush:
		return "FLUSH"
	default:
		return "UNKNOWN"
	}
}

// MutationHook is called after every committed write, across every
// Database, satisfying spec.md §9's "keyspace-mutation hook" interface
// without the database package guessing at a concrete replication/CDC
// consumer — the monitor package's MONITOR feed is the one concrete
// consumer ferrite ships.
type MutationHook func(db int, op Op, key string, before, after *keyspace.Entry)

// Database is one numbered keyspace: its own sharded index, its own
// TTL index and active-expire sampler, so FLUSHDB/expiration in one
// database never touches another's.
type Database struct {
	id      int
	Keys    *keyspace.Index
	TTL     *expire.Index
	sampler *expire.Sampler
}

func newDatabase(id, shardCount int, onExpired expire.OnExpired) *Database {
	db := &Database{
		id:   id,
		Keys: keyspace.NewIndex(shardCount),
		TTL:  expire.NewIndex(),
	}
	db.sampler = expire.NewSampler(db.TTL, db.Keys, onExpired, nil)
	return db
}

// ID reports this database's numbered index.
func (db *Database) ID() int { return db.id }

// Sampler returns the database's active-expire sampler, so a server
// can Start/Stop it and CONFIG SET can retune its target fraction.
func (db *Database) Sampler() *expire.Sampler { return db.sampler }

// Size reports the current key count (DBSIZE).
func (db *Database) Size() int { return db.Keys.Len() }

// Registry owns every numbered Database a server exposes, plus the
// MutationHook fan-out every write passes through.
type Registry struct {
	mu    sync.RWMutex
	dbs   []*Database
	hooks []MutationHook
}

// NewRegistry constructs n Databases, each with shardCount keyspace
// shards (0 defaults to keyspace.DefaultShardCount).
func NewRegistry(n, shardCount int) *Registry {
	if n <= 0 {
		n = 16
	}
	r := &Registry{dbs: make([]*Database, n)}
	for i := range r.dbs {
		idx := i
		r.dbs[i] = newDatabase(idx, shardCount, func(key string) {
			r.fire(idx, OpExpire, key, nil, nil)
		})
	}
	return r
}

// Count reports how many numbered databases exist.
func (r *Registry) Count() int { return len(r.dbs) }

// Select returns database n, erroring if it is out of range (SELECT's
// "DB index is out of range" error).
func (r *Registry) Select(n int) (*Database, error) {
	if n < 0 || n >= len(r.dbs) {
		return nil, fmt.Errorf("database: DB index %d out of range", n)
	}
	return r.dbs[n], nil
}

// AddHook registers fn to be called on every future committed write,
// across every database.
func (r *Registry) AddHook(fn MutationHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// StartAll starts every database's active-expire sampler ticking at
// period; called once at server startup.
func (r *Registry) StartAll(period time.Duration) {
	for _, db := range r.dbs {
		db.sampler.Start(period)
	}
}

// StopAll stops every database's active-expire sampler.
func (r *Registry) StopAll() {
	for _, db := range r.dbs {
		db.sampler.Stop()
	}
}

func (r *Registry) fire(db int, op Op, key string, before, after *keyspace.Entry) {
	r.mu.RLock()
	hooks := r.hooks
	r.mu.RUnlock()
	for _, h := range hooks {
		h(db, op, key, before, after)
	}
}

// Fire lets a write-path caller (dispatch's command handlers) publish
// a committed mutation through the registry's hooks.
func (r *Registry) Fire(db int, op Op, key string, before, after *keyspace.Entry) {
	r.fire(db, op, key, before, after)
}

// FlushDB clears one database's keyspace and TTL index (FLUSHDB),
// firing one OpFlush event.
func (r *Registry) FlushDB(n int) error {
	db, err := r.Select(n)
	if err != nil {
		return err
	}
	db.Keys = keyspace.NewIndex(db.Keys.ShardCount())
	db.TTL = expire.NewIndex()
	r.fire(n, OpFlush, "", nil, nil)
	return nil
}

// FlushAll clears every database (FLUSHALL).
func (r *Registry) FlushAll() {
	for i := range r.dbs {
		_ = r.FlushDB(i)
	}
}

// SwapDB exchanges two databases' contents in place (SWAPDB), so every
// existing *Database pointer a caller is holding keeps working.
func (r *Registry) SwapDB(a, b int) error {
	if a < 0 || a >= len(r.dbs) || b < 0 || b >= len(r.dbs) {
		return fmt.Errorf("database: DB index out of range")
	}
	if a == b {
		return nil
	}
	r.dbs[a].Keys, r.dbs[b].Keys = r.dbs[b].Keys, r.dbs[a].Keys
	r.dbs[a].TTL, r.dbs[b].TTL = r.dbs[b].TTL, r.dbs[a].TTL
	r.fire(a, OpFlush, "", nil, nil)
	r.fire(b, OpFlush, "", nil, nil)
	return nil
}
