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

package values

import (
	"fmt"
	"sort"
	"time"
)

// StreamID is a (ms,seq) pair; ids are totally ordered by ms then seq.
type StreamID struct {
	Ms  uint64
	Seq uint64
}

func (id StreamID) Less(other StreamID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}
	return id.Seq < other.Seq
}

func (id StreamID) String() string { return fmt.Sprintf("%d-%d", id.Ms, id.Seq) }

// StreamEntry is one appended record.
type StreamEntry struct {
	ID     StreamID
	Fields []string // flattened field,value,field,value...
}

// PendingEntry tracks one delivered-but-unacked message for a
// consumer group.
type PendingEntry struct {
	Consumer      string
	DeliveryTime  time.Time
	DeliveryCount int
}

// ConsumerGroup holds a group's read cursor and pending-entry list.
type ConsumerGroup struct {
	LastDelivered StreamID
	Pending       map[StreamID]*PendingEntry
}

// Stream is an append-only log of id-ordered entries plus consumer
// groups.
type Stream struct {
	entries []StreamEntry
	lastID  StreamID
	groups  map[string]*ConsumerGroup
}

func (*Stream) Kind() Kind { return KindStream }

// NewStream returns an empty Stream.
func NewStream() *Stream {
	return &Stream{groups: make(map[string]*ConsumerGroup)}
}

// NextID allocates the id for an XADD call: requested may carry a
// partial id ("ms-*" or "*"); the allocator guarantees
// max(currentMax+1, requested) so ids are always strictly increasing.
func (s *Stream) NextID(requestedMs *uint64, requestedSeq *uint64) (StreamID, error) {
	nowMs := uint64(time.Now().UnixMilli())
	var id StreamID
	switch {
	case requestedMs == nil:
		id = StreamID{Ms: nowMs}
		if !s.lastID.Less(id) {
			id = StreamID{Ms: s.lastID.Ms, Seq: s.lastID.Seq + 1}
		}
	case requestedSeq == nil:
		id = StreamID{Ms: *requestedMs}
		if id.Ms == s.lastID.Ms {
			id.Seq = s.lastID.Seq + 1
		} else if id.Ms < s.lastID.Ms {
			return StreamID{}, errStreamIDOrder
		}
	default:
		id = StreamID{Ms: *requestedMs, Seq: *requestedSeq}
		if len(s.entries) > 0 && !s.lastID.Less(id) {
			return StreamID{}, errStreamIDOrder
		}
	}
	return id, nil
}

var errStreamIDOrder = stringErr("ERR The ID specified in XADD is equal or smaller than the target stream top item")

// Add appends an entry at id, which must already have been allocated
// via NextID (or validated >= current max).
func (s *Stream) Add(id StreamID, fields []string) {
	s.entries = append(s.entries, StreamEntry{ID: id, Fields: fields})
	s.lastID = id
}

// Len returns the entry count.
func (s *Stream) Len() int { return len(s.entries) }

// LastID returns the most recently allocated id.
func (s *Stream) LastID() StreamID { return s.lastID }

// Range returns entries with start <= id <= end, oldest first.
func (s *Stream) Range(start, end StreamID, count int) []StreamEntry {
	var out []StreamEntry
	for _, e := range s.entries {
		if e.ID.Less(start) {
			continue
		}
		if end.Less(e.ID) {
			break
		}
		out = append(out, e)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out
}

// RevRange returns entries with start <= id <= end, newest first.
func (s *Stream) RevRange(start, end StreamID, count int) []StreamEntry {
	fwd := s.Range(start, end, 0)
	out := make([]StreamEntry, len(fwd))
	for i, e := range fwd {
		out[len(fwd)-1-i] = e
	}
	if count > 0 && count < len(out) {
		out = out[:count]
	}
	return out
}

// Del removes entries matching ids, returning the count removed.
func (s *Stream) Del(ids ...StreamID) int {
	want := make(map[StreamID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	kept := s.entries[:0:0]
	n := 0
	for _, e := range s.entries {
		if want[e.ID] {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return n
}

// Trim keeps at most maxLen most recent entries (MAXLEN form),
// returning the count evicted.
func (s *Stream) Trim(maxLen int) int {
	if len(s.entries) <= maxLen {
		return 0
	}
	evicted := len(s.entries) - maxLen
	s.entries = s.entries[evicted:]
	return evicted
}

// TrimMinID evicts entries with id < minID, returning the count evicted.
func (s *Stream) TrimMinID(minID StreamID) int {
	idx := sort.Search(len(s.entries), func(i int) bool { return !s.entries[i].ID.Less(minID) })
	s.entries = s.entries[idx:]
	return idx
}

// GroupCreate creates a consumer group named name starting at startID
// (commonly "$" resolved by the caller to LastID()).
func (s *Stream) GroupCreate(name string, startID StreamID) error {
	if _, ok := s.groups[name]; ok {
		return errGroupExists
	}
	s.groups[name] = &ConsumerGroup{LastDelivered: startID, Pending: make(map[StreamID]*PendingEntry)}
	return nil
}

var errGroupExists = stringErr("BUSYGROUP Consumer Group name already exists")

// GroupDestroy removes a consumer group.
func (s *Stream) GroupDestroy(name string) bool {
	if _, ok := s.groups[name]; !ok {
		return false
	}
	delete(s.groups, name)
	return true
}

// Group returns the named consumer group, if any.
func (s *Stream) Group(name string) (*ConsumerGroup, bool) {
	g, ok := s.groups[name]
	return g, ok
}

// ReadGroup delivers up to count new entries (after the group's
// LastDelivered) to consumer, recording them pending.
func (s *Stream) ReadGroup(group, consumer string, count int) ([]StreamEntry, error) {
	g, ok := s.groups[group]
	if !ok {
		return nil, errNoSuchGroup
	}
	var out []StreamEntry
	for _, e := range s.entries {
		if !g.LastDelivered.Less(e.ID) {
			continue
		}
		out = append(out, e)
		g.Pending[e.ID] = &PendingEntry{Consumer: consumer, DeliveryTime: time.Now(), DeliveryCount: 1}
		g.LastDelivered = e.ID
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out, nil
}

var errNoSuchGroup = stringErr("NOGROUP no such consumer group")

// Ack removes ids from the group's pending list, returning the count
// actually acknowledged.
func (s *Stream) Ack(group string, ids ...StreamID) (int, error) {
	g, ok := s.groups[group]
	if !ok {
		return 0, errNoSuchGroup
	}
	n := 0
	for _, id := range ids {
		if _, ok := g.Pending[id]; ok {
			delete(g.Pending, id)
			n++
		}
	}
	return n, nil
}

// Pending returns the group's pending entries, oldest id first.
func (s *Stream) Pending(group string) ([]StreamID, map[StreamID]*PendingEntry, error) {
	g, ok := s.groups[group]
	if !ok {
		return nil, nil, errNoSuchGroup
	}
	ids := make([]StreamID, 0, len(g.Pending))
	for id := range g.Pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids, g.Pending, nil
}

// Claim reassigns pending ids to a new consumer, incrementing their
// delivery count, provided they have been pending at least minIdle.
func (s *Stream) Claim(group, consumer string, minIdle time.Duration, ids ...StreamID) ([]StreamEntry, error) {
	g, ok := s.groups[group]
	if !ok {
		return nil, errNoSuchGroup
	}
	byID := make(map[StreamID]StreamEntry, len(s.entries))
	for _, e := range s.entries {
		byID[e.ID] = e
	}
	var claimed []StreamEntry
	now := time.Now()
	for _, id := range ids {
		p, ok := g.Pending[id]
		if !ok || now.Sub(p.DeliveryTime) < minIdle {
			continue
		}
		p.Consumer = consumer
		p.DeliveryTime = now
		p.DeliveryCount++
		if e, ok := byID[id]; ok {
			claimed = append(claimed, e)
		}
	}
	return claimed, nil
}
