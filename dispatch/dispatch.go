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

package dispatch

import (
	"time"

	"github.com/ferritelabs/ferrite/acl"
	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/epoch"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/session"
	"github.com/ferritelabs/ferrite/txn"
)

// txControlCommands are never queued by MULTI even while
// InTransaction: they control the transaction itself.
var txControlCommands = map[string]bool{
	"MULTI": true, "EXEC": true, "DISCARD": true,
	"WATCH": true, "UNWATCH": true, "RESET": true, "QUIT": true,
}

// subscriptionAllowed is the restricted command set spec.md §4.2
// permits while InSubscription.
var subscriptionAllowed = map[string]bool{
	"SUBSCRIBE": true, "UNSUBSCRIBE": true, "PSUBSCRIBE": true,
	"PUNSUBSCRIBE": true, "PING": true, "QUIT": true, "RESET": true,
}

// Dispatch performs spec.md §4.3's five steps for one already-parsed
// command: case-fold and look the name up, check arity, check ACL,
// intercept into the transaction queue if one is open, otherwise
// invoke the handler with a freshly pinned epoch.
func Dispatch(reg *database.Registry, sess *session.Session, checker acl.Checker, name string, args [][]byte) resp.Frame {
	cmd, ok := Lookup(name)
	if !ok {
		if sess.CurrentState() == session.InTransaction {
			_ = sess.QueueCommand(session.QueuedCommand{Name: name, Args: args}, false)
		}
		return resp.NewError("ERR unknown command '" + name + "'")
	}

	if sess.CurrentState() == session.InSubscription && !subscriptionAllowed[normalizeName(name)] {
		return resp.NewError("ERR Can't execute '" + name + "': only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context")
	}

	if !cmd.CheckArity(len(args) + 1) {
		if sess.CurrentState() == session.InTransaction && !txControlCommands[normalizeName(name)] {
			_ = sess.QueueCommand(session.QueuedCommand{Name: name, Args: args}, false)
		}
		return resp.NewError("ERR wrong number of arguments for '" + name + "' command")
	}

	keys := cmd.Keys(args)
	if checker != nil {
		if err := checker.Allow(sess.User, cmd.Flags.Category(), keys); err != nil {
			if sess.CurrentState() == session.InTransaction && !txControlCommands[normalizeName(name)] {
				_ = sess.QueueCommand(session.QueuedCommand{Name: name, Args: args}, false)
				return resp.NewSimple("QUEUED")
			}
			return resp.NewError(err.Error())
		}
	}

	if sess.CurrentState() == session.InTransaction && !txControlCommands[normalizeName(name)] {
		if err := sess.QueueCommand(session.QueuedCommand{Name: name, Args: args}, true); err != nil {
			return resp.NewError("ERR " + err.Error())
		}
		return resp.NewSimple("QUEUED")
	}

	return invoke(reg, sess, cmd, args)
}

// invoke runs a command's handler directly: assembles a
// CommandContext with a freshly pinned epoch guard, runs the handler,
// unpins on return. EXEC calls this too (via Executor, below)
// once per queued command, inside its own already-pinned guard.
func invoke(reg *database.Registry, sess *session.Session, cmd *Command, args [][]byte) resp.Frame {
	db, err := reg.Select(sess.DB)
	if err != nil {
		return resp.NewError("ERR " + err.Error())
	}
	guard := epoch.Global.Pin()
	defer guard.Unpin()
	ctx := &CommandContext{
		DB:      db,
		DBIndex: sess.DB,
		Session: sess,
		Storage: reg,
		Now:     time.Now(),
		Epoch:   guard,
	}
	return cmd.Handler(ctx, args)
}

// Executor adapts invoke into a txn.Executor, so Exec can run each
// queued command through the exact same handler-lookup/invoke path a
// non-transactional Dispatch call would use, just skipping the
// queue-interception step (the commands were already vetted at queue
// time).
func Executor(reg *database.Registry, sess *session.Session) txn.Executor {
	return func(qc session.QueuedCommand) resp.Frame {
		cmd, ok := Lookup(qc.Name)
		if !ok {
			return resp.NewError("ERR unknown command '" + qc.Name + "'")
		}
		return invoke(reg, sess, cmd, qc.Args)
	}
}

// KeyExtractor adapts the command table's key-position metadata into a
// txn.KeyExtractor, so Exec can lock every shard a queued transaction
// touches before running any of it.
func KeyExtractor(cmd session.QueuedCommand) []string {
	c, ok := Lookup(cmd.Name)
	if !ok {
		return nil
	}
	return c.Keys(cmd.Args)
}
