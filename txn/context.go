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

package txn

import (
	"github.com/jtolds/gls"

	"github.com/ferritelabs/ferrite/epoch"
	"github.com/ferritelabs/ferrite/session"
)

// mgr is the goroutine-local context manager that makes the active
// Context retrievable from arbitrarily deep inside a command handler
// without threading it through every call, mirroring
// epoch.Guard.Bind/CurrentGuard (and, further back, memcp's
// scm.GetCurrentTx/gls pairing).
var mgr = gls.NewContextManager()

const txKey = "ferrite.txn.context"

// Context is everything a queued command's handler can see about the
// transaction it is running inside while EXEC is executing it.
type Context struct {
	Session *session.Session
	Guard   *epoch.Guard
}

// Bind runs fn with c set as the goroutine-local current transaction
// context, so nested calls can retrieve it via CurrentTx.
func (c *Context) Bind(fn func()) {
	mgr.SetValues(gls.Values{txKey: c}, fn)
}

// CurrentTx returns the Context bound by the innermost enclosing
// Context.Bind call on this goroutine, if any. A command handler that
// needs to know whether it is running inside EXEC (for example, to
// suppress a nested MULTI/WATCH) calls this instead of taking a
// parameter every handler would otherwise need.
func CurrentTx() (*Context, bool) {
	v, ok := mgr.GetValue(txKey)
	if !ok || v == nil {
		return nil, false
	}
	c, ok := v.(*Context)
	return c, ok && c != nil
}
