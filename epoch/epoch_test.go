package epoch

import (
	"sync"
	"testing"
)

func TestRetireNotFreedWhileParticipantPinned(t *testing.T) {
	m := NewManager()
	g := m.Pin()
	defer g.Unpin()

	freed := false
	m.Retire(m.Current(), func() { freed = true })
	m.Advance()
	m.Drain()
	if freed {
		t.Fatal("garbage freed while a participant is still pinned at or before its epoch")
	}
}

func TestRetireFreedAfterParticipantAdvancesPast(t *testing.T) {
	m := NewManager()
	g := m.Pin()
	at := m.Current()
	freed := false
	m.Retire(at, func() { freed = true })

	g.Unpin()
	m.Advance()
	m.Drain()
	if !freed {
		t.Fatal("garbage should be freed once the only participant unpinned")
	}
}

func TestUnpinPublishesNotPinned(t *testing.T) {
	m := NewManager()
	g := m.Pin()
	g.Unpin()
	if got := m.MinParticipantEpoch(); got != m.Current() {
		t.Fatalf("unpinned participant should not hold back the minimum: got %d want %d", got, m.Current())
	}
}

func TestConcurrentPinUnpinDrain(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g := m.Pin()
				m.Retire(g.Epoch(), func() {})
				g.Unpin()
			}
		}()
	}
	for i := 0; i < 50; i++ {
		m.Advance()
		m.Drain()
	}
	wg.Wait()
	m.Advance()
	if n := m.Drain(); n < 0 {
		t.Fatalf("drain returned negative count: %d", n)
	}
}

func TestBindExposesCurrentGuardToNestedCall(t *testing.T) {
	m := NewManager()
	g := m.Pin()
	defer g.Unpin()

	var seen *Guard
	g.Bind(func() {
		nested := func() {
			got, ok := CurrentGuard()
			if !ok {
				t.Fatal("expected a current guard inside Bind")
			}
			seen = got
		}
		nested()
	})
	if seen != g {
		t.Fatal("nested call observed a different guard")
	}
	if _, ok := CurrentGuard(); ok {
		t.Fatal("guard should not be visible outside Bind's dynamic extent")
	}
}

