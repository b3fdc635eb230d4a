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
	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/expire"
	"github.com/ferritelabs/ferrite/keyspace"
)

// liveEntry fetches key's entry, applying the lazy-expiration check
// (spec.md invariant 3) and touching its access stats. An expired
// entry is treated as absent even though CheckLazy alone does not
// physically remove it. Every per-kind commands_*.go file builds its
// own typed fetch on top of this, since a key's Value is a tagged
// variant rather than a shared interface (values.Value's own doc
// comment).
func liveEntry(ctx *CommandContext, key string) (*keyspace.Entry, bool) {
	entry, ok := ctx.DB.Keys.Get(key)
	if !ok {
		return nil, false
	}
	if expire.CheckLazy(entry, ctx.Now) {
		return nil, false
	}
	entry.Touch(ctx.Now)
	return entry, true
}

// deleteEntry removes key outright and fires OpDel, used whenever a
// container command (list/hash/set/zset) empties a key the way real
// Redis does.
func deleteEntry(ctx *CommandContext, key string, old *keyspace.Entry) {
	ctx.DB.Keys.Remove(key)
	if old.ExpiresAtNS != 0 {
		ctx.DB.TTL.Clear(key, old.ExpiresAtNS)
	}
	ctx.Storage.Fire(ctx.DBIndex, database.OpDel, key, old, nil)
}

