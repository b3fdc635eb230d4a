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

package keyspace

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ferritelabs/ferrite/values"
)

func TestInsertGetRemove(t *testing.T) {
	idx := NewIndex(16)
	e := NewEntry(values.NewString([]byte("v1")))
	idx.Insert("k1", e)

	got, ok := idx.Get("k1")
	if !ok || got != e {
		t.Fatalf("expected to get back inserted entry")
	}

	removed, ok := idx.Remove("k1")
	if !ok || removed != e {
		t.Fatalf("expected Remove to return the entry")
	}
	if _, ok := idx.Get("k1"); ok {
		t.Fatalf("expected key gone after remove")
	}
}

func TestCompareAndSwapRevisionGuard(t *testing.T) {
	idx := NewIndex(16)
	e := NewEntry(values.NewString([]byte("v1")))
	idx.Insert("k", e)

	wrong := idx.CompareAndSwap("k", 999, e.WithValue(values.NewString([]byte("v2"))))
	if wrong {
		t.Fatalf("expected CAS to fail with a stale revision")
	}

	ok := idx.CompareAndSwap("k", e.Revision(), e.WithValue(values.NewString([]byte("v2"))))
	if !ok {
		t.Fatalf("expected CAS to succeed with the current revision")
	}
	got, _ := idx.Get("k")
	if string(got.Value.(*values.String).Bytes()) != "v2" {
		t.Fatalf("expected updated value, got %q", got.Value.(*values.String).Bytes())
	}
}

func TestReplaceBumpsRevision(t *testing.T) {
	idx := NewIndex(16)
	idx.Insert("k", NewEntry(values.NewString([]byte("v1"))))
	before, _ := idx.Get("k")
	startRev := before.Revision()

	next, ok := idx.Replace("k", func(old *Entry) *Entry {
		return old.WithValue(values.NewString([]byte("v2")))
	})
	if !ok {
		t.Fatalf("expected Replace to succeed on existing key")
	}
	if next.Revision() != startRev+1 {
		t.Fatalf("expected revision to bump by one, got %d -> %d", startRev, next.Revision())
	}
}

func TestLockOrderedIsDeadlockFree(t *testing.T) {
	idx := NewIndex(16)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k1 := fmt.Sprintf("a%d", i)
			k2 := fmt.Sprintf("b%d", i)
			unlock := idx.LockOrdered(k1, k2)
			unlock()
		}(i)
	}
	wg.Wait()
}

func TestScanVisitsEveryKeyAtLeastOnce(t *testing.T) {
	idx := NewIndex(8)
	want := make(map[string]bool)
	for i := 0; i < 100; i++ {
		k := fmt.Sprintf("key-%03d", i)
		idx.Insert(k, NewEntry(values.NewString([]byte("v"))))
		want[k] = true
	}

	var cursor Cursor
	seen := make(map[string]bool)
	for {
		var keys []string
		keys, cursor = idx.Scan(cursor, 7)
		for _, k := range keys {
			seen[k] = true
		}
		if cursor == 0 {
			break
		}
	}
	for k := range want {
		if !seen[k] {
			t.Fatalf("scan missed key %q", k)
		}
	}
}

func TestShardForIsStable(t *testing.T) {
	idx := NewIndex(32)
	s1 := idx.shardFor("stable-key")
	s2 := idx.shardFor("stable-key")
	if s1 != s2 {
		t.Fatalf("expected the same key to always hash to the same shard")
	}
}
