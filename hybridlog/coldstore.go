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

// ColdStore is the cold-tier backend behind the read-only region's
// tail: file, S3 or Ceph, selected by config. Implementations must be
// safe for concurrent Read/Write from multiple goroutines.
type ColdStore interface {
	Read(addr Address) ([]byte, error)
	Write(addr Address, data []byte) error
	Remove(addr Address) error
}

// Ticket identifies one in-flight asynchronous cold-tier request.
type Ticket uint64

// request is one queued async read, the unit ioRing batches.
type request struct {
	addr   Address
	result chan asyncResult
}

type asyncResult struct {
	data []byte
	err  error
}

// ioRing is the ticketed-completion interface cold reads are
// submitted through, so the mutable/read-only read path and the cold
// path share one waiting discipline regardless of which concrete
// worker backend services the request. See io_pool.go for the
// portable errgroup-backed worker-pool implementation this wires to;
// a Linux io_uring-backed implementation would satisfy the same
// interface without the caller-visible API changing.
type ioRing interface {
	Submit(addr Address) Ticket
	Await(t Ticket) ([]byte, error)
	Close() error
}

// ReadAsync submits a cold read and returns a ticket the caller can
// Await later, overlapping the wait with other work instead of
// blocking immediately as Read does.
func (l *Log) ReadAsync(addr Address) (Ticket, error) {
	l.mu.RLock()
	if r, ok := l.mutable[addr]; ok {
		data := r.data
		l.mu.RUnlock()
		return l.completedTicket(data, nil), nil
	}
	if r, ok := l.readonly[addr]; ok && !r.superseded.Load() {
		data := r.data
		l.mu.RUnlock()
		return l.completedTicket(data, nil), nil
	}
	l.mu.RUnlock()
	if l.cold == nil {
		return 0, &StorageError{Addr: addr, Err: ErrNotResident}
	}
	ring, ok := l.cold.(ioRingProvider)
	if !ok {
		// cold store has no async facility: synthesize a completed
		// ticket from a synchronous read rather than blocking Submit.
		b, err := l.cold.Read(addr)
		if err != nil {
			err = &StorageError{Addr: addr, Err: err}
		}
		return l.completedTicket(b, err), nil
	}
	return ring.Ring().Submit(addr), nil
}

// ioRingProvider is implemented by ColdStore backends that expose a
// ring for batched async submission (coldstore_file.go).
type ioRingProvider interface {
	Ring() ioRing
}

// Await blocks until ticket completes.
func (l *Log) Await(t Ticket) ([]byte, error) {
	l.completedMu.Lock()
	if res, ok := l.completed[t]; ok {
		delete(l.completed, t)
		l.completedMu.Unlock()
		return res.data, res.err
	}
	l.completedMu.Unlock()
	if ring, ok := l.cold.(ioRingProvider); ok {
		return ring.Ring().Await(t)
	}
	return nil, ErrNotResident
}

func (l *Log) completedTicket(data []byte, err error) Ticket {
	l.completedMu.Lock()
	defer l.completedMu.Unlock()
	l.nextTicket++
	t := Ticket(l.nextTicket)
	if l.completed == nil {
		l.completed = make(map[Ticket]asyncResult)
	}
	l.completed[t] = asyncResult{data: data, err: err}
	return t
}
