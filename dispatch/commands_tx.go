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
	"github.com/ferritelabs/ferrite/epoch"
	"github.com/ferritelabs/ferrite/expire"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/session"
	"github.com/ferritelabs/ferrite/txn"
)

func init() {
	Declare(&Command{Name: "MULTI", Arity: 1, Flags: FastFlag, Handler: cmdMulti})
	Declare(&Command{Name: "EXEC", Arity: 1, Flags: 0, Handler: cmdExec})
	Declare(&Command{Name: "DISCARD", Arity: 1, Flags: FastFlag, Handler: cmdDiscard})
	Declare(&Command{Name: "WATCH", Arity: -2, FirstKey: 1, LastKey: -1, KeyStep: 1, Flags: FastFlag, Handler: cmdWatch})
	Declare(&Command{Name: "UNWATCH", Arity: 1, Flags: FastFlag, Handler: cmdUnwatch})
}

func cmdMulti(ctx *CommandContext, args [][]byte) resp.Frame {
	if err := ctx.Session.BeginTransaction(); err != nil {
		return resp.NewError("ERR " + err.Error())
	}
	return resp.NewSimple("OK")
}

// cmdExec is the one place a handler reaches back out to the
// registry/session rather than just ctx.DB: a transaction's queued
// commands can have called SELECT mid-batch, so each must still be
// routed by its own current sess.DB at run time, exactly as invoke
// does outside a transaction.
func cmdExec(ctx *CommandContext, args [][]byte) resp.Frame {
	if ctx.Session.CurrentState() != session.InTransaction {
		return resp.NewError("ERR EXEC without MULTI")
	}
	return txn.Exec(ctx.Session, ctx.DB.Keys, epoch.Global, KeyExtractor, Executor(ctx.Storage, ctx.Session))
}

func cmdDiscard(ctx *CommandContext, args [][]byte) resp.Frame {
	if ctx.Session.CurrentState() != session.InTransaction {
		return resp.NewError("ERR DISCARD without MULTI")
	}
	return txn.Discard(ctx.Session)
}

// cmdWatch records each key's current revision so EXEC can detect a
// write landing between WATCH and EXEC. A key that doesn't exist yet
// watches revision 0, and so does a not-yet-reaped expired entry:
// expire.CheckLazy reports it expired and it is treated as absent.
func cmdWatch(ctx *CommandContext, args [][]byte) resp.Frame {
	if ctx.Session.CurrentState() == session.InTransaction {
		return resp.NewError("ERR WATCH inside MULTI is not allowed")
	}
	for _, raw := range args {
		key := string(raw)
		var rev uint64
		if entry, ok := ctx.DB.Keys.Get(key); ok && !expire.CheckLazy(entry, ctx.Now) {
			rev = entry.Revision()
		}
		ctx.Session.Watch(key, rev)
	}
	return resp.NewSimple("OK")
}

func cmdUnwatch(ctx *CommandContext, args [][]byte) resp.Frame {
	ctx.Session.Unwatch()
	return resp.NewSimple("OK")
}
