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

func TestHashSetGetAll(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	if reply := Dispatch(reg, sess, checker, "HSET", b("H", "f1", "v1", "f2", "v2")); reply.Int != 2 {
		t.Fatalf("HSET: expected 2 new fields, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "HGET", b("H", "f1")); string(reply.Str) != "v1" {
		t.Fatalf("HGET: expected \"v1\", got %+v", reply)
	}
	all := Dispatch(reg, sess, checker, "HGETALL", b("H"))
	if all.Type != resp.Map || len(all.Elems) != 4 {
		t.Fatalf("HGETALL: expected a 4-element map reply, got %+v", all)
	}
}

func TestHashIncrByFloat(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "HSET", b("H", "f", "10.5"))
	reply := Dispatch(reg, sess, checker, "HINCRBYFLOAT", b("H", "f", "0.1"))
	if string(reply.Str) != "10.6" {
		t.Fatalf("HINCRBYFLOAT: expected \"10.6\", got %+v", reply)
	}
}

func TestHashEmptiedKeyIsDeleted(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "HSET", b("H", "f", "v"))
	Dispatch(reg, sess, checker, "HDEL", b("H", "f"))
	if reply := Dispatch(reg, sess, checker, "EXISTS", b("H")); reply.Int != 0 {
		t.Fatalf("expected the emptied hash to no longer exist, got %+v", reply)
	}
}

func TestHashWrongTypeOnGet(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "HSET", b("H", "f", "v"))
	reply := Dispatch(reg, sess, checker, "GET", b("H"))
	if reply.Type != resp.Error {
		t.Fatalf("expected WRONGTYPE error, got %+v", reply)
	}
}

func TestHScanMatchesPattern(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "HSET", b("H", "foo1", "a", "foo2", "b", "bar1", "c"))
	reply := Dispatch(reg, sess, checker, "HSCAN", b("H", "0", "MATCH", "foo*", "COUNT", "100"))
	if reply.Type != resp.Array || len(reply.Elems) != 2 {
		t.Fatalf("HSCAN: expected [cursor, fields], got %+v", reply)
	}
	fields := reply.Elems[1]
	if len(fields.Elems) != 4 {
		t.Fatalf("HSCAN: expected 2 matching field/value pairs, got %+v", fields)
	}
}
