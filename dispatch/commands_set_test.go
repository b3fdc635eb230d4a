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

func TestSetAddMembersCard(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	if reply := Dispatch(reg, sess, checker, "SADD", b("S", "a", "b", "a")); reply.Int != 2 {
		t.Fatalf("SADD: expected 2 newly added, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "SCARD", b("S")); reply.Int != 2 {
		t.Fatalf("SCARD: expected 2, got %+v", reply)
	}
	members := Dispatch(reg, sess, checker, "SMEMBERS", b("S"))
	if members.Type != resp.Set || len(members.Elems) != 2 {
		t.Fatalf("SMEMBERS: expected a 2-element set reply, got %+v", members)
	}
}

func TestSetIsMemberAndMove(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "SADD", b("SRC", "a", "b"))
	if reply := Dispatch(reg, sess, checker, "SISMEMBER", b("SRC", "a")); reply.Int != 1 {
		t.Fatalf("SISMEMBER: expected 1, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "SMOVE", b("SRC", "DST", "a")); reply.Int != 1 {
		t.Fatalf("SMOVE: expected 1, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "SISMEMBER", b("DST", "a")); reply.Int != 1 {
		t.Fatalf("expected \"a\" moved into DST, got %+v", reply)
	}
}

func TestSetAlgebra(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "SADD", b("A", "x", "y", "z"))
	Dispatch(reg, sess, checker, "SADD", b("B", "y", "z", "w"))

	inter := Dispatch(reg, sess, checker, "SINTER", b("A", "B"))
	if len(inter.Elems) != 2 {
		t.Fatalf("SINTER: expected 2 common members, got %+v", inter)
	}
	if reply := Dispatch(reg, sess, checker, "SUNIONSTORE", b("U", "A", "B")); reply.Int != 4 {
		t.Fatalf("SUNIONSTORE: expected 4, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "SDIFF", b("A", "B")); len(reply.Elems) != 1 {
		t.Fatalf("SDIFF: expected 1 member, got %+v", reply)
	}
}

func TestSetEmptiedKeyIsDeleted(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "SADD", b("S", "only"))
	Dispatch(reg, sess, checker, "SREM", b("S", "only"))
	if reply := Dispatch(reg, sess, checker, "EXISTS", b("S")); reply.Int != 0 {
		t.Fatalf("expected the emptied set to no longer exist, got %+v", reply)
	}
}

func TestSetWrongTypeOnGet(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "SADD", b("S", "a"))
	reply := Dispatch(reg, sess, checker, "GET", b("S"))
	if reply.Type != resp.Error {
		t.Fatalf("expected WRONGTYPE error, got %+v", reply)
	}
}
