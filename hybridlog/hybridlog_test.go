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

package hybridlog

import (
	"bytes"
	"testing"
	"time"
)

func TestAppendAndReadFromMutable(t *testing.T) {
	l := New(Config{MutableBytes: 1 << 20})
	addr := l.Append("k1", []byte("hello"))
	got, err := l.Read(addr)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q", got)
	}
}

func TestLatestAddressTracksOverwrites(t *testing.T) {
	l := New(Config{MutableBytes: 1 << 20})
	a1 := l.Append("k", []byte("v1"))
	a2 := l.Append("k", []byte("v2"))
	if a1 == a2 {
		t.Fatalf("expected distinct addresses")
	}
	latest, ok := l.LatestAddress("k")
	if !ok || latest != a2 {
		t.Fatalf("expected latest address %d, got %d ok=%v", a2, latest, ok)
	}
}

func TestReadUnknownAddressIsNotResident(t *testing.T) {
	l := New(Config{MutableBytes: 1 << 20})
	_, err := l.Read(999)
	if err == nil {
		t.Fatalf("expected error for unresident address")
	}
}

// memStore is a minimal in-memory ColdStore for tests that don't need
// a real filesystem.
type memStore struct {
	data map[Address][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[Address][]byte)} }

func (m *memStore) Read(addr Address) ([]byte, error) {
	b, ok := m.data[addr]
	if !ok {
		return nil, ErrNotResident
	}
	return b, nil
}
func (m *memStore) Write(addr Address, data []byte) error { m.data[addr] = data; return nil }
func (m *memStore) Remove(addr Address) error             { delete(m.data, addr); return nil }

func TestAdvanceReadonlyMovesRecordsOutOfMutable(t *testing.T) {
	l := New(Config{MutableBytes: 10})
	a1 := l.Append("a", []byte("0123456789"))
	a2 := l.Append("b", []byte("0123456789"))
	_ = a1

	moved, err := l.AdvanceReadonly()
	if err != nil {
		t.Fatalf("AdvanceReadonly: %v", err)
	}
	if moved == 0 {
		t.Fatalf("expected at least one record moved to read-only")
	}
	// the newest record should still be readable regardless of tier.
	got, err := l.Read(a2)
	if err != nil {
		t.Fatalf("Read a2: %v", err)
	}
	if !bytes.Equal(got, []byte("0123456789")) {
		t.Fatalf("got %q", got)
	}
}

func TestEvictPushesReadonlyRecordsToColdStore(t *testing.T) {
	cold := newMemStore()
	l := New(Config{MutableBytes: 1, ReadonlyBytes: 1, Cold: cold})
	a1 := l.Append("a", []byte("0123456789"))

	if _, err := l.AdvanceReadonly(); err != nil {
		t.Fatalf("AdvanceReadonly: %v", err)
	}
	if _, err := l.Evict(); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	got, err := l.Read(a1)
	if err != nil {
		t.Fatalf("Read after evict: %v", err)
	}
	if !bytes.Equal(got, []byte("0123456789")) {
		t.Fatalf("got %q", got)
	}
	if len(cold.data) == 0 {
		t.Fatalf("expected record to reach cold store")
	}
}

func TestLZ4ArchiveRoundTrip(t *testing.T) {
	orig := []byte("the quick brown fox jumps over the lazy dog, repeatedly, for compressibility")
	packed, err := LZ4Archive(orig)
	if err != nil {
		t.Fatalf("LZ4Archive: %v", err)
	}
	back, err := LZ4Restore(packed)
	if err != nil {
		t.Fatalf("LZ4Restore: %v", err)
	}
	if !bytes.Equal(back, orig) {
		t.Fatalf("round trip mismatch: got %q want %q", back, orig)
	}
}

func TestXZArchiveRoundTrip(t *testing.T) {
	orig := []byte("archival-tier bytes that should compress losslessly through xz")
	packed, err := XZArchive(orig)
	if err != nil {
		t.Fatalf("XZArchive: %v", err)
	}
	back, err := XZRestore(packed)
	if err != nil {
		t.Fatalf("XZRestore: %v", err)
	}
	if !bytes.Equal(back, orig) {
		t.Fatalf("round trip mismatch: got %q want %q", back, orig)
	}
}

func TestReadAsyncCompletesThroughMemStore(t *testing.T) {
	cold := newMemStore()
	l := New(Config{MutableBytes: 1, ReadonlyBytes: 1, Cold: cold})
	a1 := l.Append("a", []byte("payload"))
	if _, err := l.AdvanceReadonly(); err != nil {
		t.Fatalf("AdvanceReadonly: %v", err)
	}
	if _, err := l.Evict(); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	ticket, err := l.ReadAsync(a1)
	if err != nil {
		t.Fatalf("ReadAsync: %v", err)
	}
	got, err := l.Await(ticket)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("got %q", got)
	}
}

func TestMaintainerTicksAdvanceAndEvict(t *testing.T) {
	cold := newMemStore()
	l := New(Config{MutableBytes: 1, ReadonlyBytes: 1, Cold: cold})
	addr := l.Append("a", []byte("0123456789"))

	m := NewMaintainer(l, 5*time.Millisecond, nil)
	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, err := l.Read(addr); err == nil {
			if len(cold.data) > 0 {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected maintainer to evict record to cold store within deadline")
}
