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

package expire

import (
	"testing"
	"time"

	"github.com/ferritelabs/ferrite/keyspace"
	"github.com/ferritelabs/ferrite/values"
)

func TestApplyExpireNXOnlyWhenNoExistingTTL(t *testing.T) {
	idx := NewIndex()
	entry := keyspace.NewEntry(values.NewString([]byte("v")))

	if !ApplyExpire(idx, entry, "k", time.Now().Add(time.Hour).UnixNano(), PredicateNX) {
		t.Fatalf("expected NX to succeed with no existing TTL")
	}
	if ApplyExpire(idx, entry, "k", time.Now().Add(2*time.Hour).UnixNano(), PredicateNX) {
		t.Fatalf("expected NX to fail once a TTL already exists")
	}
}

func TestApplyExpireGTAndLT(t *testing.T) {
	idx := NewIndex()
	entry := keyspace.NewEntry(values.NewString([]byte("v")))
	now := time.Now()
	ApplyExpire(idx, entry, "k", now.Add(time.Hour).UnixNano(), PredicateNone)

	if ApplyExpire(idx, entry, "k", now.Add(30*time.Minute).UnixNano(), PredicateGT) {
		t.Fatalf("expected GT to reject a sooner deadline")
	}
	if !ApplyExpire(idx, entry, "k", now.Add(2*time.Hour).UnixNano(), PredicateGT) {
		t.Fatalf("expected GT to accept a later deadline")
	}
	if ApplyExpire(idx, entry, "k", now.Add(3*time.Hour).UnixNano(), PredicateLT) {
		t.Fatalf("expected LT to reject a later deadline")
	}
}

func TestPersistClearsTTL(t *testing.T) {
	idx := NewIndex()
	entry := keyspace.NewEntry(values.NewString([]byte("v")))
	ApplyExpire(idx, entry, "k", time.Now().Add(time.Hour).UnixNano(), PredicateNone)

	if !Persist(idx, entry, "k") {
		t.Fatalf("expected Persist to report a TTL was cleared")
	}
	if entry.ExpiresAtNS != 0 {
		t.Fatalf("expected ExpiresAtNS reset to zero")
	}
	if Persist(idx, entry, "k") {
		t.Fatalf("expected a second Persist with no TTL to report false")
	}
}

func TestCheckLazyDetectsExpiry(t *testing.T) {
	entry := keyspace.NewEntry(values.NewString([]byte("v")))
	entry.ExpiresAtNS = time.Now().Add(-time.Second).UnixNano()
	if !CheckLazy(entry, time.Now()) {
		t.Fatalf("expected an already-past deadline to report expired")
	}
}

func TestSamplerReclaimsExpiredKeys(t *testing.T) {
	ttl := NewIndex()
	ks := keyspace.NewIndex(8)

	live := keyspace.NewEntry(values.NewString([]byte("v")))
	ApplyExpire(ttl, live, "live", time.Now().Add(time.Hour).UnixNano(), PredicateNone)
	ks.Insert("live", live)

	dead := keyspace.NewEntry(values.NewString([]byte("v")))
	ApplyExpire(ttl, dead, "dead", time.Now().Add(-time.Second).UnixNano(), PredicateNone)
	ks.Insert("dead", dead)

	var reclaimed []string
	sampler := NewSampler(ttl, ks, func(key string) { reclaimed = append(reclaimed, key) }, nil)
	sampler.cycle()

	if len(reclaimed) != 1 || reclaimed[0] != "dead" {
		t.Fatalf("expected only 'dead' reclaimed, got %v", reclaimed)
	}
	if _, ok := ks.Get("dead"); ok {
		t.Fatalf("expected 'dead' removed from the keyspace index")
	}
	if _, ok := ks.Get("live"); !ok {
		t.Fatalf("expected 'live' to remain")
	}
}
