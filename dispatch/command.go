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

// Package dispatch implements the command dispatcher: a static
// command table built with a Declare registrar (the same
// declarative-table idiom memcp's scm.Declare/scm.Declaration use,
// adapted from "name this as a Scheme-callable builtin" to "name this
// as a RESP command"), and Dispatch, which performs the five steps of
// spec.md §4.3 in order for every incoming frame.
package dispatch

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ferritelabs/ferrite/acl"
	"github.com/ferritelabs/ferrite/resp"
)

// Flags is a bitmask over spec.md §4.3's command flag set.
type Flags uint8

const (
	ReadFlag Flags = 1 << iota
	WriteFlag
	FastFlag
	AdminFlag
	PubSubFlag
	NoScriptFlag
)

// Category reports the acl.Category an ACL check should authorize
// against for this flag set: Write takes priority over Read (a command
// that both reads and writes needs write permission), then Admin, then
// PubSub, falling back to Read so every command maps to exactly one
// category to check.
func (f Flags) Category() acl.Category {
	switch {
	case f&WriteFlag != 0:
		return acl.CategoryWrite
	case f&AdminFlag != 0:
		return acl.CategoryAdmin
	case f&PubSubFlag != 0:
		return acl.CategoryPubSub
	default:
		return acl.CategoryRead
	}
}

// Handler runs one command's logic once dispatch has authorized and
// (outside a transaction) decided to execute it immediately.
type Handler func(ctx *CommandContext, args [][]byte) resp.Frame

// Command is one entry in the static command table: name, arity,
// flags, the key-position triple first_key/last_key/key_step used to
// extract keys for the ACL check and for EXEC's shard locking, and the
// handler itself.
type Command struct {
	Name     string
	Arity    int // negative N means "at least |N| args, including the command name"
	Flags    Flags
	FirstKey int
	LastKey  int // negative counts back from the end of args
	KeyStep  int
	Desc     string
	Handler  Handler
}

// CheckArity reports whether narg (the total token count, command name
// included) satisfies c.Arity.
func (c *Command) CheckArity(narg int) bool {
	if c.Arity >= 0 {
		return narg == c.Arity
	}
	return narg >= -c.Arity
}

// Keys extracts the keys args addresses, per FirstKey/LastKey/KeyStep
// (args here excludes the command name itself, so positions are
// 0-based against args). A negative LastKey counts back from the end
// of args: -1 is args' own last element, -2 the one before it (used by
// commands like BLPOP whose trailing argument is a timeout, not a key).
func (c *Command) Keys(args [][]byte) []string {
	if c.FirstKey <= 0 || c.KeyStep <= 0 {
		return nil
	}
	lastIdx := c.LastKey - 1
	if c.LastKey < 0 {
		lastIdx = len(args) + c.LastKey
	}
	var keys []string
	for i := c.FirstKey - 1; i >= 0 && i <= lastIdx && i < len(args); i += c.KeyStep {
		keys = append(keys, string(args[i]))
	}
	return keys
}

var fold = cases.Fold()

// table is the static command registry, populated by Declare calls in
// each commands_*.go file's init().
var table = make(map[string]*Command)

// Declare registers cmd in the static table, keyed by its case-folded
// name, mirroring scm.Declare's "register once at init time" idiom.
func Declare(cmd *Command) {
	table[fold.String(cmd.Name)] = cmd
}

// Lookup finds a command by name, case-folding locale-independently
// (golang.org/x/text/cases rather than strings.ToUpper, since RESP
// command names are ASCII but Unicode-safe folding is the one the
// pack's own C3 dependency-wiring entry names for this exact purpose).
func Lookup(name string) (*Command, bool) {
	cmd, ok := table[fold.String(name)]
	return cmd, ok
}

// All returns every registered command, for the COMMAND/COMMAND COUNT/
// COMMAND DOCS introspection commands.
func All() []*Command {
	cmds := make([]*Command, 0, len(table))
	for _, c := range table {
		cmds = append(cmds, c)
	}
	return cmds
}

// normalizeName upper-cases a command name for display purposes only
// (COMMAND/ERR replies echo the name as the client sent it uppercased,
// matching redis-cli's convention); Lookup itself never uses this.
func normalizeName(name string) string {
	return strings.ToUpper(name)
}
