package values

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestStringIncrBy(t *testing.T) {
	s := NewString([]byte("10"))
	n, err := s.IncrBy(5)
	if err != nil || n != 15 {
		t.Fatalf("got %d, %v", n, err)
	}
	if string(s.Bytes()) != "15" {
		t.Fatalf("buffer not updated: %q", s.Bytes())
	}
}

func TestStringIncrByFloatUsesDecimal(t *testing.T) {
	s := NewString([]byte("10.5"))
	d, _ := decimal.NewFromString("0.1")
	n, err := s.IncrByFloat(d)
	if err != nil {
		t.Fatal(err)
	}
	if n.String() != "10.6" {
		t.Fatalf("got %s", n.String())
	}
}

func TestStringAppendInvalidatesIntCache(t *testing.T) {
	s := NewString([]byte("10"))
	s.Append([]byte("x"))
	if _, err := s.IncrBy(1); err == nil {
		t.Fatal("expected error after append invalidated the int cache")
	}
}

func TestListPushPopOrder(t *testing.T) {
	l := NewList()
	l.RPush([]byte("a"), []byte("b"), []byte("c"))
	got := l.LPop(2)
	if string(got[0]) != "a" || string(got[1]) != "b" {
		t.Fatalf("got %v", got)
	}
	if l.Len() != 1 {
		t.Fatalf("want len 1, got %d", l.Len())
	}
}

func TestWaitTableFIFOWake(t *testing.T) {
	wt := NewWaitTable()
	ch1 := wt.Register(0, "k")
	ch2 := wt.Register(0, "k")
	if !wt.Notify(0, "k") {
		t.Fatal("expected a waiter to wake")
	}
	select {
	case <-ch1:
	default:
		t.Fatal("oldest waiter should have woken first")
	}
	select {
	case <-ch2:
		t.Fatal("second waiter should not have woken")
	default:
	}
}

func TestHashIncrBy(t *testing.T) {
	h := NewHash()
	h.Set("f", []byte("1"))
	n, err := h.IncrBy("f", 4)
	if err != nil || n != 5 {
		t.Fatalf("got %d, %v", n, err)
	}
}

func TestSetAlgebra(t *testing.T) {
	a := NewSet()
	a.Add("x", "y", "z")
	b := NewSet()
	b.Add("y", "z", "w")
	u := Union(a, b)
	if u.Card() != 4 {
		t.Fatalf("union card = %d", u.Card())
	}
	i := Inter(a, b)
	if i.Card() != 2 || !i.IsMember("y") || !i.IsMember("z") {
		t.Fatalf("inter = %v", i.Members())
	}
	d := Diff(a, b)
	if d.Card() != 1 || !d.IsMember("x") {
		t.Fatalf("diff = %v", d.Members())
	}
}

func TestZSetAddAndRangeByScore(t *testing.T) {
	z := NewZSet()
	z.Add("a", 1, AddOptions{})
	z.Add("b", 2, AddOptions{})
	z.Add("c", 3, AddOptions{})
	got := z.RangeByScore(2, 3, false, 0, -1)
	if len(got) != 2 || got[0].Member != "b" || got[1].Member != "c" {
		t.Fatalf("got %+v", got)
	}
}

func TestZSetAddNXSkipsExisting(t *testing.T) {
	z := NewZSet()
	z.Add("a", 1, AddOptions{})
	res := z.Add("a", 99, AddOptions{NX: true})
	if res != AddedSkipped {
		t.Fatalf("want skipped, got %v", res)
	}
	score, _ := z.Score("a")
	if score != 1 {
		t.Fatalf("score should be unchanged, got %v", score)
	}
}

func TestZSetRank(t *testing.T) {
	z := NewZSet()
	z.Add("a", 1, AddOptions{})
	z.Add("b", 2, AddOptions{})
	z.Add("c", 3, AddOptions{})
	if z.Rank("b", false) != 1 {
		t.Fatalf("got rank %d", z.Rank("b", false))
	}
	if z.Rank("b", true) != 1 {
		t.Fatalf("got rev rank %d", z.Rank("b", true))
	}
}

func TestStreamNextIDMonotonic(t *testing.T) {
	s := NewStream()
	id1, err := s.NextID(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Add(id1, []string{"f", "v"})
	id2, err := s.NextID(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !id1.Less(id2) {
		t.Fatalf("expected %v < %v", id1, id2)
	}
}

func TestStreamGroupReadAndAck(t *testing.T) {
	s := NewStream()
	id, _ := s.NextID(nil, nil)
	s.Add(id, []string{"f", "v"})
	if err := s.GroupCreate("g", StreamID{}); err != nil {
		t.Fatal(err)
	}
	entries, err := s.ReadGroup("g", "c1", 10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("got %v, %v", entries, err)
	}
	n, err := s.Ack("g", id)
	if err != nil || n != 1 {
		t.Fatalf("got %d, %v", n, err)
	}
}
