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
	"time"

	"github.com/ferritelabs/ferrite/acl"
	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/resp"
)

func TestListPushPopRoundTrips(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	if reply := Dispatch(reg, sess, checker, "RPUSH", b("L", "a", "b", "c")); reply.Int != 3 {
		t.Fatalf("RPUSH: expected 3, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "LRANGE", b("L", "0", "-1")); len(reply.Elems) != 3 {
		t.Fatalf("LRANGE: expected 3 elements, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "LPOP", b("L")); string(reply.Str) != "a" {
		t.Fatalf("LPOP: expected \"a\", got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "LLEN", b("L")); reply.Int != 2 {
		t.Fatalf("LLEN: expected 2, got %+v", reply)
	}
}

func TestListEmptiedKeyIsDeleted(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "RPUSH", b("L", "only"))
	Dispatch(reg, sess, checker, "LPOP", b("L"))
	if reply := Dispatch(reg, sess, checker, "EXISTS", b("L")); reply.Int != 0 {
		t.Fatalf("expected the emptied list to no longer exist, got %+v", reply)
	}
}

// TestListWrongTypeOnGet reproduces pushing onto a key then reading it
// back with a string command: GET must refuse with WRONGTYPE rather
// than panicking or silently coercing the list into bytes.
func TestListWrongTypeOnGet(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "LPUSH", b("L", "a"))
	reply := Dispatch(reg, sess, checker, "GET", b("L"))
	if reply.Type != resp.Error {
		t.Fatalf("expected WRONGTYPE error, got %+v", reply)
	}
}

func TestBLPopReturnsImmediatelyWhenReady(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "RPUSH", b("L", "x"))
	reply := Dispatch(reg, sess, checker, "BLPOP", b("L", "0"))
	if reply.Type != resp.Array || len(reply.Elems) != 2 || string(reply.Elems[1].Str) != "x" {
		t.Fatalf("expected [L x], got %+v", reply)
	}
}

func TestBLPopWakesOnPush(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	done := make(chan resp.Frame, 1)
	go func() {
		done <- Dispatch(reg, sess, checker, "BLPOP", b("L", "5"))
	}()

	time.Sleep(20 * time.Millisecond)
	pusher := newReadySession(t)
	Dispatch(reg, pusher, checker, "RPUSH", b("L", "woken"))

	select {
	case reply := <-done:
		if reply.Type != resp.Array || string(reply.Elems[1].Str) != "woken" {
			t.Fatalf("expected [L woken], got %+v", reply)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("BLPOP never woke after RPUSH")
	}
}
