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

package database

import (
	"testing"

	"github.com/ferritelabs/ferrite/keyspace"
	"github.com/ferritelabs/ferrite/values"
)

func TestSelectOutOfRangeErrors(t *testing.T) {
	r := NewRegistry(4, 8)
	if _, err := r.Select(4); err == nil {
		t.Fatalf("expected an out-of-range error for db index 4 with 4 databases")
	}
	if _, err := r.Select(-1); err == nil {
		t.Fatalf("expected an out-of-range error for a negative db index")
	}
}

func TestHookFiresOnMutation(t *testing.T) {
	r := NewRegistry(2, 8)
	var gotOp Op
	var gotKey string
	r.AddHook(func(db int, op Op, key string, before, after *keyspace.Entry) {
		gotOp, gotKey = op, key
	})

	db0, _ := r.Select(0)
	db0.Keys.Insert("k", keyspace.NewEntry(values.NewString([]byte("v"))))
	r.Fire(0, OpSet, "k", nil, nil)

	if gotOp != OpSet || gotKey != "k" {
		t.Fatalf("expected the hook to observe OpSet on key 'k', got %v %q", gotOp, gotKey)
	}
}

func TestFlushDBOnlyClearsOneDatabase(t *testing.T) {
	r := NewRegistry(2, 8)
	db0, _ := r.Select(0)
	db1, _ := r.Select(1)
	db0.Keys.Insert("a", keyspace.NewEntry(values.NewString([]byte("1"))))
	db1.Keys.Insert("b", keyspace.NewEntry(values.NewString([]byte("2"))))

	if err := r.FlushDB(0); err != nil {
		t.Fatalf("FlushDB: %v", err)
	}

	db0After, _ := r.Select(0)
	db1After, _ := r.Select(1)
	if db0After.Size() != 0 {
		t.Fatalf("expected db0 flushed")
	}
	if db1After.Size() != 1 {
		t.Fatalf("expected db1 untouched, got size %d", db1After.Size())
	}
}

func TestFlushAllClearsEveryDatabase(t *testing.T) {
	r := NewRegistry(3, 8)
	for i := 0; i < 3; i++ {
		db, _ := r.Select(i)
		db.Keys.Insert("k", keyspace.NewEntry(values.NewString([]byte("v"))))
	}
	r.FlushAll()
	for i := 0; i < 3; i++ {
		db, _ := r.Select(i)
		if db.Size() != 0 {
			t.Fatalf("expected database %d flushed", i)
		}
	}
}

func TestSwapDBExchangesContents(t *testing.T) {
	r := NewRegistry(2, 8)
	db0, _ := r.Select(0)
	db0.Keys.Insert("only-in-0", keyspace.NewEntry(values.NewString([]byte("x"))))

	if err := r.SwapDB(0, 1); err != nil {
		t.Fatalf("SwapDB: %v", err)
	}

	db0After, _ := r.Select(0)
	db1After, _ := r.Select(1)
	if _, ok := db0After.Keys.Get("only-in-0"); ok {
		t.Fatalf("expected db0 to no longer hold the key after swap")
	}
	if _, ok := db1After.Keys.Get("only-in-0"); !ok {
		t.Fatalf("expected db1 to hold the key after swap")
	}
}
