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

package dispatch

import (
	"testing"

	"github.com/ferritelabs/ferrite/acl"
	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/session"
)

func newReadySession(t *testing.T) *session.Session {
	t.Helper()
	sess := session.New(session.NewID())
	if err := sess.Authenticate(acl.DefaultUser()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	return sess
}

func b(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

func TestDispatchUnknownCommand(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	reply := Dispatch(reg, sess, checker, "NOSUCHCOMMAND", nil)
	if reply.Type != resp.Error {
		t.Fatalf("expected an error frame, got %v", reply.Type)
	}
}

func TestDispatchSetThenGetRoundTrips(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	if reply := Dispatch(reg, sess, checker, "SET", b("greeting", "hello")); reply.Type != resp.SimpleString {
		t.Fatalf("SET: expected +OK, got %+v", reply)
	}
	reply := Dispatch(reg, sess, checker, "GET", b("greeting"))
	if reply.Type != resp.BulkString || string(reply.Str) != "hello" {
		t.Fatalf("GET: expected bulk \"hello\", got %+v", reply)
	}
}

func TestDispatchWrongArityRepliesError(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	reply := Dispatch(reg, sess, checker, "GET", nil)
	if reply.Type != resp.Error {
		t.Fatalf("expected a wrong-arity error, got %+v", reply)
	}
}

func TestDispatchWrongArityInsideTransactionPoisons(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	if reply := Dispatch(reg, sess, checker, "MULTI", nil); reply.Type != resp.SimpleString {
		t.Fatalf("MULTI: expected +OK, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "GET", nil); reply.Type != resp.Error {
		t.Fatalf("expected GET with no args to reply an error even when queued, got %+v", reply)
	}
	reply := Dispatch(reg, sess, checker, "EXEC", nil)
	if reply.Type != resp.Error || string(reply.Str) == "" {
		t.Fatalf("expected EXECABORT after a poisoned queue, got %+v", reply)
	}
}

func TestDispatchQueuesInsideTransactionAndExecRuns(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "MULTI", nil)
	if reply := Dispatch(reg, sess, checker, "SET", b("k", "v")); string(reply.Str) != "QUEUED" {
		t.Fatalf("expected QUEUED, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "GET", b("k")); string(reply.Str) != "QUEUED" {
		t.Fatalf("expected QUEUED, got %+v", reply)
	}
	reply := Dispatch(reg, sess, checker, "EXEC", nil)
	if reply.Type != resp.Array || len(reply.Elems) != 2 {
		t.Fatalf("expected a 2-element array reply, got %+v", reply)
	}
	if reply.Elems[0].Type != resp.SimpleString {
		t.Fatalf("expected SET's queued reply to be +OK, got %+v", reply.Elems[0])
	}
	if reply.Elems[1].Type != resp.BulkString || string(reply.Elems[1].Str) != "v" {
		t.Fatalf("expected GET's queued reply to be \"v\", got %+v", reply.Elems[1])
	}
	if sess.CurrentState() != session.Ready {
		t.Fatalf("expected session back to Ready after EXEC, got %v", sess.CurrentState())
	}
}

func TestDispatchExecWithoutMultiErrors(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	reply := Dispatch(reg, sess, checker, "EXEC", nil)
	if reply.Type != resp.Error {
		t.Fatalf("expected an error, got %+v", reply)
	}
}

func TestWatchAbortsExecOnConflictingWrite(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "SET", b("k", "v1"))
	Dispatch(reg, sess, checker, "WATCH", b("k"))

	// A second, independent session writes the watched key before EXEC.
	other := newReadySession(t)
	Dispatch(reg, other, checker, "SET", b("k", "v2"))

	Dispatch(reg, sess, checker, "MULTI", nil)
	Dispatch(reg, sess, checker, "GET", b("k"))
	reply := Dispatch(reg, sess, checker, "EXEC", nil)
	if reply.Type != resp.Array || !reply.IsNil {
		t.Fatalf("expected a nil array reply on watch conflict, got %+v", reply)
	}
}

func TestDiscardReturnsToReadyWithoutRunningQueue(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "MULTI", nil)
	Dispatch(reg, sess, checker, "SET", b("k", "v"))
	reply := Dispatch(reg, sess, checker, "DISCARD", nil)
	if reply.Type != resp.SimpleString {
		t.Fatalf("expected +OK, got %+v", reply)
	}
	if _, ok := Lookup("GET"); !ok {
		t.Fatalf("sanity: GET should be registered")
	}
	get := Dispatch(reg, sess, checker, "GET", b("k"))
	if get.Type != resp.BulkString || !get.IsNil {
		t.Fatalf("expected the discarded SET to never have run, got %+v", get)
	}
}

func TestIncrByCreatesAndAccumulates(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	if reply := Dispatch(reg, sess, checker, "INCR", b("ctr")); reply.Int != 1 {
		t.Fatalf("expected 1, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "INCRBY", b("ctr", "4")); reply.Int != 5 {
		t.Fatalf("expected 5, got %+v", reply)
	}
}

func TestExpireAndTTL(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "SET", b("k", "v"))
	if reply := Dispatch(reg, sess, checker, "EXPIRE", b("k", "100")); reply.Int != 1 {
		t.Fatalf("expected EXPIRE to report 1, got %+v", reply)
	}
	ttl := Dispatch(reg, sess, checker, "TTL", b("k"))
	if ttl.Int <= 0 || ttl.Int > 100 {
		t.Fatalf("expected a TTL in (0, 100], got %+v", ttl)
	}
	if reply := Dispatch(reg, sess, checker, "PERSIST", b("k")); reply.Int != 1 {
		t.Fatalf("expected PERSIST to report 1, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "TTL", b("k")); reply.Int != -1 {
		t.Fatalf("expected -1 after PERSIST, got %+v", reply)
	}
}

func TestSelectDBSizeSwapDBFlushAll(t *testing.T) {
	reg := database.NewRegistry(2, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "SET", b("k", "v"))
	if reply := Dispatch(reg, sess, checker, "DBSIZE", nil); reply.Int != 1 {
		t.Fatalf("expected DBSIZE 1, got %+v", reply)
	}
	Dispatch(reg, sess, checker, "SELECT", b("1"))
	if reply := Dispatch(reg, sess, checker, "DBSIZE", nil); reply.Int != 0 {
		t.Fatalf("expected DBSIZE 0 on the fresh db, got %+v", reply)
	}
	Dispatch(reg, sess, checker, "SWAPDB", b("0", "1"))
	if reply := Dispatch(reg, sess, checker, "DBSIZE", nil); reply.Int != 1 {
		t.Fatalf("expected db1 to now hold the swapped key, got %+v", reply)
	}
	Dispatch(reg, sess, checker, "FLUSHALL", nil)
	if reply := Dispatch(reg, sess, checker, "DBSIZE", nil); reply.Int != 0 {
		t.Fatalf("expected FLUSHALL to have cleared every database, got %+v", reply)
	}
}

func TestCommandCount(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	reply := Dispatch(reg, sess, checker, "COMMAND", b("COUNT"))
	if reply.Type != resp.Integer || reply.Int == 0 {
		t.Fatalf("expected a nonzero command count, got %+v", reply)
	}
}

func TestClientGetNameSetName(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "CLIENT", b("SETNAME", "tester"))
	reply := Dispatch(reg, sess, checker, "CLIENT", b("GETNAME"))
	if string(reply.Str) != "tester" {
		t.Fatalf("expected \"tester\", got %+v", reply)
	}
}
