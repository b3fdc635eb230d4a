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

	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/epoch"
	"github.com/ferritelabs/ferrite/session"
)

// CommandContext is everything a Handler needs, assembled by Dispatch
// for every invocation: which database, which session, the registry to
// reach any database by number (SELECT, SWAPDB), the current time
// (injected so handlers are deterministically testable), and a pinned
// epoch guard for the duration of the call.
type CommandContext struct {
	DB      *database.Database
	DBIndex int
	Session *session.Session
	Storage *database.Registry
	Now     time.Time
	Epoch   *epoch.Guard
}
