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

package durability

import (
	"fmt"

	"github.com/ferritelabs/ferrite/acl"
	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/dispatch"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/session"
)

// replaySession is a throwaway connection identity recovery dispatches
// through: replay runs once, single-threaded, before the server
// accepts any real connection, so one shared session (rather than
// reconstructing the original client's) is all Apply needs.
var replaySession = func() *session.Session {
	s := session.New(session.NewID())
	_ = s.Authenticate(acl.DefaultUser())
	return s
}()

// Apply replays one AOL record's command against reg, routing it
// through the ordinary dispatch.Dispatch path (no ACL checker — AOL
// records were already authorized once, at the time they were first
// executed and logged) so replay exercises exactly the same handler
// code a live command would.
func Apply(reg *database.Registry, db int, args [][]byte) error {
	if len(args) == 0 {
		return fmt.Errorf("durability: empty command record")
	}
	replaySession.DB = db
	reply := dispatch.Dispatch(reg, replaySession, nil, string(args[0]), args[1:])
	if reply.Type == resp.Error {
		return fmt.Errorf("durability: %s", reply.Str)
	}
	return nil
}
