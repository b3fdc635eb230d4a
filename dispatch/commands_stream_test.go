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
)

func TestXAddAndXLen(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	reply := Dispatch(reg, sess, checker, "XADD", b("stream", "*", "field", "value"))
	if reply.Type != resp.BulkString || len(reply.Str) == 0 {
		t.Fatalf("XADD: expected a bulk id reply, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "XLEN", b("stream")); reply.Int != 1 {
		t.Fatalf("XLEN: expected 1, got %+v", reply)
	}
}

func TestXAddExplicitIDsMustIncrease(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "XADD", b("stream", "5-5", "f", "v"))
	reply := Dispatch(reg, sess, checker, "XADD", b("stream", "5-5", "f", "v"))
	if reply.Type != resp.Error {
		t.Fatalf("expected an error for a non-increasing explicit id, got %+v", reply)
	}
}

func TestXRangeReturnsEntriesInOrder(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "XADD", b("stream", "1-1", "f", "a"))
	Dispatch(reg, sess, checker, "XADD", b("stream", "2-1", "f", "b"))
	reply := Dispatch(reg, sess, checker, "XRANGE", b("stream", "-", "+"))
	if reply.Type != resp.Array || len(reply.Elems) != 2 {
		t.Fatalf("XRANGE: expected 2 entries, got %+v", reply)
	}
	if string(reply.Elems[0].Elems[0].Str) != "1-1" {
		t.Fatalf("expected the first entry to be id 1-1, got %+v", reply.Elems[0])
	}
}

func TestXGroupCreateAndReadGroup(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "XADD", b("stream", "1-1", "f", "a"))
	if reply := Dispatch(reg, sess, checker, "XGROUP", b("CREATE", "stream", "grp", "0")); reply.Type != resp.SimpleString {
		t.Fatalf("XGROUP CREATE: expected +OK, got %+v", reply)
	}
	reply := Dispatch(reg, sess, checker, "XREADGROUP", b("GROUP", "grp", "consumer1", "STREAMS", "stream", ">"))
	if reply.Type != resp.Array || len(reply.Elems) != 1 {
		t.Fatalf("XREADGROUP: expected one stream's worth of entries, got %+v", reply)
	}
	ack := Dispatch(reg, sess, checker, "XACK", b("stream", "grp", "1-1"))
	if ack.Int != 1 {
		t.Fatalf("XACK: expected 1, got %+v", ack)
	}
}

// TestXDelNeverDeletesEmptiedKey is the stream-specific converse of the
// List/Hash/Set/SortedSet "empty container isn't a key" rule: Redis
// keeps an emptied stream around as a zero-length key.
func TestXDelNeverDeletesEmptiedKey(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "XADD", b("stream", "1-1", "f", "v"))
	Dispatch(reg, sess, checker, "XDEL", b("stream", "1-1"))
	if reply := Dispatch(reg, sess, checker, "EXISTS", b("stream")); reply.Int != 1 {
		t.Fatalf("expected the emptied stream to still exist as a key, got %+v", reply)
	}
}

func TestStreamWrongTypeOnGet(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "XADD", b("stream", "1-1", "f", "v"))
	reply := Dispatch(reg, sess, checker, "GET", b("stream"))
	if reply.Type != resp.Error {
		t.Fatalf("expected WRONGTYPE error, got %+v", reply)
	}
}
