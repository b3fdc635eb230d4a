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

func TestZAddAndRange(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	if reply := Dispatch(reg, sess, checker, "ZADD", b("Z", "1", "a", "2", "b", "3", "c")); reply.Int != 3 {
		t.Fatalf("ZADD: expected 3 new members, got %+v", reply)
	}
	reply := Dispatch(reg, sess, checker, "ZRANGE", b("Z", "0", "-1"))
	if len(reply.Elems) != 3 || string(reply.Elems[0].Str) != "a" || string(reply.Elems[2].Str) != "c" {
		t.Fatalf("ZRANGE: expected [a b c], got %+v", reply)
	}
}

func TestZAddNXSkipsExisting(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "ZADD", b("Z", "1", "a"))
	if reply := Dispatch(reg, sess, checker, "ZADD", b("Z", "NX", "5", "a")); reply.Int != 0 {
		t.Fatalf("ZADD NX: expected 0 added, got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "ZSCORE", b("Z", "a")); string(reply.Str) != "1" {
		t.Fatalf("expected score to remain 1, got %+v", reply)
	}
}

func TestZIncrByAndRank(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "ZADD", b("Z", "1", "a", "2", "b"))
	if reply := Dispatch(reg, sess, checker, "ZINCRBY", b("Z", "10", "a")); string(reply.Str) != "11" {
		t.Fatalf("ZINCRBY: expected \"11\", got %+v", reply)
	}
	if reply := Dispatch(reg, sess, checker, "ZRANK", b("Z", "a")); reply.Int != 1 {
		t.Fatalf("ZRANK: expected rank 1 after incrementing past b, got %+v", reply)
	}
}

func TestZPopMin(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "ZADD", b("Z", "1", "a", "2", "b"))
	reply := Dispatch(reg, sess, checker, "ZPOPMIN", b("Z"))
	if len(reply.Elems) != 2 || string(reply.Elems[0].Str) != "a" {
		t.Fatalf("ZPOPMIN: expected [a, 1], got %+v", reply)
	}
}

func TestZSetEmptiedKeyIsDeleted(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "ZADD", b("Z", "1", "only"))
	Dispatch(reg, sess, checker, "ZREM", b("Z", "only"))
	if reply := Dispatch(reg, sess, checker, "EXISTS", b("Z")); reply.Int != 0 {
		t.Fatalf("expected the emptied zset to no longer exist, got %+v", reply)
	}
}

func TestZSetWrongTypeOnGet(t *testing.T) {
	reg := database.NewRegistry(1, 8)
	sess := newReadySession(t)
	checker := acl.NewInMemoryChecker(acl.DefaultUser())

	Dispatch(reg, sess, checker, "ZADD", b("Z", "1", "a"))
	reply := Dispatch(reg, sess, checker, "GET", b("Z"))
	if reply.Type != resp.Error {
		t.Fatalf("expected WRONGTYPE error, got %+v", reply)
	}
}
