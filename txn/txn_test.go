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

package txn

import (
	"testing"

	"github.com/ferritelabs/ferrite/epoch"
	"github.com/ferritelabs/ferrite/keyspace"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/session"
	"github.com/ferritelabs/ferrite/values"
)

func newReadySession(t *testing.T) *session.Session {
	t.Helper()
	sess := session.New(1)
	if err := sess.Authenticate(nil); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	return sess
}

func TestExecPoisonedTransactionReplaysExecAbort(t *testing.T) {
	sess := newReadySession(t)
	if err := sess.BeginTransaction(); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	if err := sess.QueueCommand(session.QueuedCommand{Name: "BOGUS"}, false); err != nil {
		t.Fatalf("QueueCommand: %v", err)
	}

	ks := keyspace.NewIndex(8)
	mgr := epoch.NewManager()
	reply := Exec(sess, ks, mgr, nil, func(cmd session.QueuedCommand) resp.Frame {
		t.Fatalf("exec should not run any command on a poisoned transaction")
		return resp.Frame{}
	})

	if reply.Type != resp.Error {
		t.Fatalf("expected an error frame, got %v", reply.Type)
	}
	if sess.CurrentState() != session.Ready {
		t.Fatalf("expected session back to Ready after EXECABORT")
	}
}

func TestExecAbortsOnWatchConflict(t *testing.T) {
	sess := newReadySession(t)
	ks := keyspace.NewIndex(8)
	ks.Insert("x", keyspace.NewEntry(values.NewString([]byte("1"))))
	entry, _ := ks.Get("x")

	// Forge a stale snapshot, standing in for a revision bump a real
	// write would have produced between WATCH and EXEC.
	if err := sess.Watch("x", entry.Revision()+1); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := sess.BeginTransaction(); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	if err := sess.QueueCommand(session.QueuedCommand{Name: "GET", Args: [][]byte{[]byte("x")}}, true); err != nil {
		t.Fatalf("QueueCommand: %v", err)
	}

	mgr := epoch.NewManager()
	ran := false
	reply := Exec(sess, ks, mgr, nil, func(cmd session.QueuedCommand) resp.Frame {
		ran = true
		return resp.NewSimple("OK")
	})

	if ran {
		t.Fatalf("expected no command to run once a watched key's revision changed")
	}
	if !reply.IsNil {
		t.Fatalf("expected a nil reply on watch conflict")
	}
}

func TestExecRunsQueuedCommandsInOrderAndClearsState(t *testing.T) {
	sess := newReadySession(t)
	ks := keyspace.NewIndex(8)

	if err := sess.BeginTransaction(); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	cmds := []session.QueuedCommand{
		{Name: "SET", Args: [][]byte{[]byte("a"), []byte("1")}},
		{Name: "SET", Args: [][]byte{[]byte("b"), []byte("2")}},
	}
	for _, c := range cmds {
		if err := sess.QueueCommand(c, true); err != nil {
			t.Fatalf("QueueCommand: %v", err)
		}
	}

	mgr := epoch.NewManager()
	var seen []string
	reply := Exec(sess, ks, mgr, func(cmd session.QueuedCommand) []string {
		return []string{string(cmd.Args[0])}
	}, func(cmd session.QueuedCommand) resp.Frame {
		seen = append(seen, cmd.Name)
		return resp.NewSimple("OK")
	})

	if len(seen) != 2 || seen[0] != "SET" || seen[1] != "SET" {
		t.Fatalf("expected both queued commands to run in order, got %v", seen)
	}
	if reply.Type != resp.Array || len(reply.Elems) != 2 {
		t.Fatalf("expected a 2-element array reply, got %+v", reply)
	}
	if sess.CurrentState() != session.Ready {
		t.Fatalf("expected session back to Ready after EXEC")
	}
	if len(sess.Queued()) != 0 {
		t.Fatalf("expected the queue cleared after EXEC")
	}
}

func TestCurrentTxVisibleInsideExecutor(t *testing.T) {
	sess := newReadySession(t)
	ks := keyspace.NewIndex(8)
	if err := sess.BeginTransaction(); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	if err := sess.QueueCommand(session.QueuedCommand{Name: "PING"}, true); err != nil {
		t.Fatalf("QueueCommand: %v", err)
	}

	mgr := epoch.NewManager()
	var sawGuard bool
	Exec(sess, ks, mgr, nil, func(cmd session.QueuedCommand) resp.Frame {
		if ctx, ok := CurrentTx(); ok {
			sawGuard = ctx.Guard != nil
		}
		return resp.NewSimple("PONG")
	})

	if !sawGuard {
		t.Fatalf("expected CurrentTx to be visible from inside the executor with a pinned guard")
	}
	if _, ok := CurrentTx(); ok {
		t.Fatalf("expected CurrentTx to no longer be visible outside Exec's Bind")
	}
}

func TestDiscardReturnsToReady(t *testing.T) {
	sess := newReadySession(t)
	if err := sess.BeginTransaction(); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	reply := Discard(sess)
	if reply.Type != resp.SimpleString {
		t.Fatalf("expected +OK, got %+v", reply)
	}
	if sess.CurrentState() != session.Ready {
		t.Fatalf("expected session back to Ready after DISCARD")
	}
}
