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

// Package txn implements the transaction engine: MULTI/EXEC/DISCARD/
// WATCH/UNWATCH, exactly spec.md §4.8 and its explicit Redis-compatible
// resolution of "atomic vs. non-aborting" — queue-time arity/unknown
// errors poison the whole transaction, but a per-command runtime error
// discovered during EXEC only fails that one reply.
package txn

import (
	"github.com/ferritelabs/ferrite/epoch"
	"github.com/ferritelabs/ferrite/keyspace"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/session"
)

// Queue is the buffer MULTI opens on a Session; it is session.Session's
// own queue field under the hood (Session.QueueCommand/Queued), named
// here only so the transaction engine's vocabulary matches spec.md.
type Queue = []session.QueuedCommand

// WatchSet is the (key -> revision observed at WATCH time) map EXEC
// validates against; it is session.Session.Watches under the hood.
type WatchSet = map[string]uint64

// Executor runs one already-dequeued command and produces its reply
// frame. dispatch supplies this — txn never parses or routes commands
// itself, it only orders and brackets their execution.
type Executor func(cmd session.QueuedCommand) resp.Frame

// KeyExtractor reports which keys a queued command touches, so EXEC
// can lock every shard it needs up front in canonical order. dispatch
// supplies this from its own command table (arity/key-spec metadata);
// a nil KeyExtractor skips the shard-locking step entirely, leaving
// each command to take its own locks as it would outside a
// transaction — correct but loses EXEC's batch-wide atomicity
// against concurrent writers of the same keys.
type KeyExtractor func(cmd session.QueuedCommand) []string

var execAbort = resp.NewError("EXECABORT Transaction discarded because of previous errors.")

// Exec implements EXEC's five steps from spec.md §4.8:
//  1. pin an epoch
//  2. validate every watched key's revision against its WATCH-time snapshot
//  3. lock every shard the queued commands touch, in canonical order
//  4. run each queued command in order, collecting its reply
//  5. release locks, clear the watch set, reply the per-command array
//
// sess must currently be InTransaction (the dispatcher enforces this
// before calling Exec, exactly as it enforces every other state
// transition). Exec itself always returns sess to Ready.
func Exec(sess *session.Session, ks *keyspace.Index, mgr *epoch.Manager, keysOf KeyExtractor, exec Executor) resp.Frame {
	if sess.Poisoned() {
		_ = sess.EndTransaction()
		return execAbort
	}

	queued := sess.Queued()

	guard := mgr.Pin()
	defer guard.Unpin()

	watches := sess.Watches
	for key, rev0 := range watches {
		entry, ok := ks.Get(key)
		if !ok {
			if rev0 != 0 {
				_ = sess.EndTransaction()
				return resp.NewNilArray()
			}
			continue
		}
		if entry.Revision() != rev0 {
			_ = sess.EndTransaction()
			return resp.NewNilArray()
		}
	}

	if keysOf != nil {
		keySet := make(map[string]struct{})
		for key := range watches {
			keySet[key] = struct{}{}
		}
		for _, cmd := range queued {
			for _, key := range keysOf(cmd) {
				keySet[key] = struct{}{}
			}
		}
		keys := make([]string, 0, len(keySet))
		for key := range keySet {
			keys = append(keys, key)
		}
		if len(keys) > 0 {
			unlock := ks.LockOrdered(keys...)
			defer unlock()
		}
	}

	replies := make([]resp.Frame, 0, len(queued))
	ctx := &Context{Session: sess, Guard: guard}
	ctx.Bind(func() {
		for _, cmd := range queued {
			replies = append(replies, exec(cmd))
		}
	})

	_ = sess.EndTransaction()
	return resp.NewArray(replies...)
}

// Discard implements DISCARD: clear the queue and watch set, return to
// Ready, reply +OK.
func Discard(sess *session.Session) resp.Frame {
	_ = sess.EndTransaction()
	return resp.NewSimple("OK")
}
