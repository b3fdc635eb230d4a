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

// Package acl defines the external access-control interface named in
// spec.md §6: a User handle and a Checker a dispatcher consults before
// running a command. File-format parsing is explicitly out of scope
// (spec.md §1); this package only defines and consumes the interface,
// shipping an in-memory Checker good enough for a freshly started
// server and for tests.
package acl

import "path"

// Category groups commands the way ACL rules are granted against,
// mirroring Redis's @read/@write/@admin/@fast/@pubsub/@dangerous
// categories closely enough to express spec.md §4.3's flag set.
type Category string

const (
	CategoryRead    Category = "read"
	CategoryWrite   Category = "write"
	CategoryAdmin   Category = "admin"
	CategoryFast    Category = "fast"
	CategoryPubSub  Category = "pubsub"
	CategoryNoAudit Category = "noscript"
)

// KeyPattern is a glob pattern a user is allowed to touch, matched with
// path.Match semantics (the same glob dialect Redis ACL patterns use
// for single-segment wildcards).
type KeyPattern string

// User is one ACL principal: a name, the categories it may invoke, and
// the key patterns its commands may address.
type User struct {
	Name        string
	Enabled     bool
	Password    string // cleartext only for the in-memory default; a real deployment hashes this externally
	Categories  map[Category]bool
	KeyPatterns []KeyPattern
	AllKeys     bool
}

// Allows reports whether the user's granted categories include cat.
func (u *User) Allows(cat Category) bool {
	if u == nil {
		return false
	}
	return u.Categories[cat]
}

// AllowsKey reports whether key matches one of the user's granted key
// patterns.
func (u *User) AllowsKey(key string) bool {
	if u == nil {
		return false
	}
	if u.AllKeys {
		return true
	}
	for _, p := range u.KeyPatterns {
		if ok, _ := path.Match(string(p), key); ok {
			return true
		}
	}
	return false
}

// DefaultUser is the permissive principal a freshly started server
// authenticates connections as when no ACL file is configured, mirror
// of Redis's built-in "default" user with nopass+allkeys+allcommands.
func DefaultUser() *User {
	return &User{
		Name:    "default",
		Enabled: true,
		AllKeys: true,
		Categories: map[Category]bool{
			CategoryRead:    true,
			CategoryWrite:   true,
			CategoryAdmin:   true,
			CategoryFast:    true,
			CategoryPubSub:  true,
			CategoryNoAudit: true,
		},
	}
}

// Checker is what the dispatcher consults for every command: does
// user have the command's category, and may it touch these keys.
type Checker interface {
	Allow(user *User, cat Category, keys []string) error
}

// ErrDenied is returned by a Checker when a user lacks a category or a
// key pattern match.
type ErrDenied struct {
	User string
	Cat  Category
	Key  string
}

func (e *ErrDenied) Error() string {
	if e.Key != "" {
		return "NOPERM user " + e.User + " has no permissions to access key '" + e.Key + "'"
	}
	return "NOPERM user " + e.User + " has no permissions to run this command"
}

// InMemoryChecker is the default Checker: a fixed set of Users keyed
// by name, consulted directly with no file or network round trip.
type InMemoryChecker struct {
	users map[string]*User
}

// NewInMemoryChecker constructs a checker seeded with users.
func NewInMemoryChecker(users ...*User) *InMemoryChecker {
	c := &InMemoryChecker{users: make(map[string]*User, len(users))}
	for _, u := range users {
		c.users[u.Name] = u
	}
	return c
}

// Lookup returns the named user, if registered.
func (c *InMemoryChecker) Lookup(name string) (*User, bool) {
	u, ok := c.users[name]
	return u, ok
}

// Allow implements Checker.
func (c *InMemoryChecker) Allow(user *User, cat Category, keys []string) error {
	if user == nil || !user.Enabled {
		return &ErrDenied{Cat: cat}
	}
	if !user.Allows(cat) {
		return &ErrDenied{User: user.Name, Cat: cat}
	}
	for _, k := range keys {
		if !user.AllowsKey(k) {
			return &ErrDenied{User: user.Name, Cat: cat, Key: k}
		}
	}
	return nil
}
