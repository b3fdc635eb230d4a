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

// Package session implements the per-connection state machine: one
// Session per client, read by one goroutine and written by one
// goroutine, exactly as spec.md §4.2/§5 requires.
package session

import (
	"errors"
	"sync"

	"github.com/ferritelabs/ferrite/acl"
	"github.com/google/uuid"
)

// State is one of the five states a Session can be in.
type State int

const (
	Unauthenticated State = iota
	Ready
	InTransaction
	InSubscription
	Draining
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Ready:
		return "ready"
	case InTransaction:
		return "in-transaction"
	case InSubscription:
		return "in-subscription"
	case Draining:
		return "draining"
	default:
		return "unknown"
	}
}

// ErrWrongState is returned by a transition method attempted from a
// state that does not permit it; the dispatcher translates this into
// the appropriate wire-level error reply instead of mutating session
// state on an illegal request.
var ErrWrongState = errors.New("session: command not allowed in current state")

// QueuedCommand is one command buffered by MULTI until EXEC/DISCARD.
type QueuedCommand struct {
	Name string
	Args [][]byte
}

// Session holds everything specific to one client connection.
type Session struct {
	mu sync.Mutex

	ID    uint64
	DB    int
	State State
	Proto int // 2 or 3; New sets 2 and no command changes it

	Name string
	User *acl.User

	// queue and poisoned implement MULTI: arity/unknown-command errors
	// at queue time poison the transaction so EXEC replies EXECABORT
	// without running anything, per spec.md §9's Redis-compatible
	// resolution.
	queue    []QueuedCommand
	poisoned bool

	// Watches maps a watched key to the entry revision observed at
	// WATCH time; EXEC aborts with a nil reply if any has since moved.
	Watches map[string]uint64

	Subs  map[string]struct{}
	PSubs map[string]struct{}
}

// New constructs a fresh, unauthenticated session.
func New(id uint64) *Session {
	return &Session{
		ID:      id,
		State:   Unauthenticated,
		Proto:   2,
		Watches: make(map[string]uint64),
		Subs:    make(map[string]struct{}),
		PSubs:   make(map[string]struct{}),
	}
}

// NewID generates a process-unique session identifier.
func NewID() uint64 {
	id := uuid.New()
	var v uint64
	for _, b := range id[:8] {
		v = v<<8 | uint64(b)
	}
	return v
}

// Authenticate transitions Unauthenticated -> Ready once the caller
// has validated credentials against acl.Checker.
func (s *Session) Authenticate(user *acl.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != Unauthenticated && s.State != Ready {
		return ErrWrongState
	}
	s.User = user
	s.State = Ready
	return nil
}

// BeginTransaction handles MULTI: Ready -> InTransaction.
func (s *Session) BeginTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != Ready {
		return ErrWrongState
	}
	s.State = InTransaction
	s.queue = nil
	s.poisoned = false
	return nil
}

// QueueCommand appends cmd to the pending transaction, or marks it
// poisoned if ok is false (an arity/unknown-command error detected at
// queue time).
func (s *Session) QueueCommand(cmd QueuedCommand, ok bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != InTransaction {
		return ErrWrongState
	}
	if !ok {
		s.poisoned = true
		return nil
	}
	s.queue = append(s.queue, cmd)
	return nil
}

// Poisoned reports whether a queued command had an arity/unknown error.
func (s *Session) Poisoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poisoned
}

// Queued returns a copy of the currently queued commands.
func (s *Session) Queued() []QueuedCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QueuedCommand, len(s.queue))
	copy(out, s.queue)
	return out
}

// EndTransaction handles EXEC/DISCARD: InTransaction -> Ready,
// clearing the queue and watch set.
func (s *Session) EndTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != InTransaction {
		return ErrWrongState
	}
	s.State = Ready
	s.queue = nil
	s.poisoned = false
	s.Watches = make(map[string]uint64)
	return nil
}

// Watch records key's revision at WATCH time; only legal outside a
// transaction per Redis semantics (WATCH inside MULTI is an error the
// dispatcher rejects before reaching here).
func (s *Session) Watch(key string, revision uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != Ready {
		return ErrWrongState
	}
	s.Watches[key] = revision
	return nil
}

// Unwatch clears the watch set (UNWATCH, or implicitly after EXEC/DISCARD).
func (s *Session) Unwatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Watches = make(map[string]uint64)
}

// BeginSubscription handles SUBSCRIBE/PSUBSCRIBE: Ready -> InSubscription.
func (s *Session) BeginSubscription() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != Ready && s.State != InSubscription {
		return ErrWrongState
	}
	s.State = InSubscription
	return nil
}

// EndSubscription returns to Ready once the last channel/pattern is
// unsubscribed.
func (s *Session) EndSubscription() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != InSubscription {
		return ErrWrongState
	}
	s.State = Ready
	return nil
}

// Drain handles SHUTDOWN/QUIT from any state: writes should flush and
// the connection close after the reply.
func (s *Session) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = Draining
}

// CurrentState returns the session's state under lock, for callers
// that only need a read (e.g. the dispatcher's restricted-command
// check while InSubscription).
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}
