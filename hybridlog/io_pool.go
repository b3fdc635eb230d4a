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
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// workerPoolRing is the portable ioRing backend: a fixed pool of
// goroutines draining a submission channel, coordinated with
// golang.org/x/sync/errgroup so Close can wait for every in-flight
// read to finish before the cold store it backs is torn down. It
// backs every platform; a true io_uring-backed ring would satisfy the
// same ioRing interface without callers changing (see DESIGN.md for
// why that syscall-level implementation was not attempted here).
type workerPoolRing struct {
	readFn func(Address) ([]byte, error)

	submit chan submission
	g      *errgroup.Group
	cancel context.CancelFunc

	mu        sync.Mutex
	nextID    uint64
	results   map[Ticket]chan asyncResult
}

type submission struct {
	ticket Ticket
	addr   Address
}

// newWorkerPoolRing starts workers goroutines, each pulling
// submissions off one channel and invoking readFn.
func newWorkerPoolRing(workers int, readFn func(Address) ([]byte, error)) *workerPoolRing {
	if workers <= 0 {
		workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	r := &workerPoolRing{
		readFn:  readFn,
		submit:  make(chan submission, 256),
		g:       g,
		cancel:  cancel,
		results: make(map[Ticket]chan asyncResult),
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case s, ok := <-r.submit:
					if !ok {
						return nil
					}
					data, err := r.readFn(s.addr)
					r.mu.Lock()
					ch := r.results[s.ticket]
					r.mu.Unlock()
					ch <- asyncResult{data: data, err: err}
				}
			}
		})
	}
	return r
}

func (r *workerPoolRing) Submit(addr Address) Ticket {
	r.mu.Lock()
	r.nextID++
	t := Ticket(r.nextID)
	ch := make(chan asyncResult, 1)
	r.results[t] = ch
	r.mu.Unlock()
	r.submit <- submission{ticket: t, addr: addr}
	return t
}

func (r *workerPoolRing) Await(t Ticket) ([]byte, error) {
	r.mu.Lock()
	ch, ok := r.results[t]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotResident
	}
	res := <-ch
	r.mu.Lock()
	delete(r.results, t)
	r.mu.Unlock()
	return res.data, res.err
}

func (r *workerPoolRing) Close() error {
	r.cancel()
	close(r.submit)
	return r.g.Wait()
}
