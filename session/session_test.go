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

package session

import (
	"testing"

	"github.com/ferritelabs/ferrite/acl"
)

func TestAuthenticateTransitionsToReady(t *testing.T) {
	s := New(1)
	if s.State != Unauthenticated {
		t.Fatalf("expected fresh session to start Unauthenticated")
	}
	if err := s.Authenticate(acl.DefaultUser()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if s.CurrentState() != Ready {
		t.Fatalf("expected Ready after Authenticate")
	}
}

func TestMultiQueueExecDiscardCycle(t *testing.T) {
	s := New(1)
	_ = s.Authenticate(acl.DefaultUser())

	if err := s.BeginTransaction(); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	if s.CurrentState() != InTransaction {
		t.Fatalf("expected InTransaction")
	}
	if err := s.QueueCommand(QueuedCommand{Name: "SET", Args: [][]byte{[]byte("k"), []byte("v")}}, true); err != nil {
		t.Fatalf("QueueCommand: %v", err)
	}
	if len(s.Queued()) != 1 {
		t.Fatalf("expected one queued command")
	}
	if err := s.EndTransaction(); err != nil {
		t.Fatalf("EndTransaction: %v", err)
	}
	if s.CurrentState() != Ready {
		t.Fatalf("expected Ready after EXEC/DISCARD")
	}
	if len(s.Queued()) != 0 {
		t.Fatalf("expected queue cleared after EndTransaction")
	}
}

func TestQueueCommandPoisonsOnArityError(t *testing.T) {
	s := New(1)
	_ = s.Authenticate(acl.DefaultUser())
	_ = s.BeginTransaction()

	if err := s.QueueCommand(QueuedCommand{Name: "GET"}, false); err != nil {
		t.Fatalf("QueueCommand: %v", err)
	}
	if !s.Poisoned() {
		t.Fatalf("expected transaction poisoned after a queue-time error")
	}
}

func TestWatchOnlyAllowedOutsideTransaction(t *testing.T) {
	s := New(1)
	_ = s.Authenticate(acl.DefaultUser())
	if err := s.Watch("k", 1); err != nil {
		t.Fatalf("Watch from Ready: %v", err)
	}
	_ = s.BeginTransaction()
	if err := s.Watch("k2", 1); err != ErrWrongState {
		t.Fatalf("expected ErrWrongState watching inside a transaction, got %v", err)
	}
}

func TestSubscriptionRestrictsStateMachine(t *testing.T) {
	s := New(1)
	_ = s.Authenticate(acl.DefaultUser())
	if err := s.BeginSubscription(); err != nil {
		t.Fatalf("BeginSubscription: %v", err)
	}
	if s.CurrentState() != InSubscription {
		t.Fatalf("expected InSubscription")
	}
	if err := s.BeginTransaction(); err != ErrWrongState {
		t.Fatalf("expected MULTI to be rejected while InSubscription, got %v", err)
	}
	if err := s.EndSubscription(); err != nil {
		t.Fatalf("EndSubscription: %v", err)
	}
	if s.CurrentState() != Ready {
		t.Fatalf("expected Ready after last unsubscribe")
	}
}

func TestDrainIsAllowedFromAnyState(t *testing.T) {
	s := New(1)
	s.Drain()
	if s.CurrentState() != Draining {
		t.Fatalf("expected Draining")
	}
}
