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

package epoch

import "github.com/jtolds/gls"

// mgr is the goroutine-local context manager used to make the active
// Guard retrievable without threading it through every call, the same
// trick memcp leans on gls.Go for when spawning worker goroutines that
// must keep seeing the spawning goroutine's state (storage/compute.go,
// storage/partition.go, storage/scan.go). gls values are scoped to the
// dynamic extent of a SetValues callback, so Bind (not Pin/Unpin
// themselves) is what makes a Guard visible to CurrentGuard.
var mgr = gls.NewContextManager()

const guardKey = "ferrite.epoch.guard"

// Bind runs fn with g set as the goroutine-local current guard, so
// that code nested arbitrarily deep inside fn — including goroutines
// spawned with epoch.Go — can retrieve it via CurrentGuard without a
// threaded parameter. A command handler typically does:
//
//	g := epoch.Global.Pin()
//	defer g.Unpin()
//	g.Bind(func() { dispatch(cmd) })
func (g *Guard) Bind(fn func()) {
	mgr.SetValues(gls.Values{guardKey: g}, fn)
}

// CurrentGuard returns the Guard bound by the innermost enclosing
// Guard.Bind call on this goroutine (or an ancestor goroutine spawned
// with epoch.Go from inside one), if any.
func CurrentGuard() (*Guard, bool) {
	v, ok := mgr.GetValue(guardKey)
	if !ok || v == nil {
		return nil, false
	}
	g, ok := v.(*Guard)
	return g, ok && g != nil
}

// Go spawns fn on a new goroutine that inherits the calling
// goroutine's bound Guard (and any other gls values currently in
// scope), mirroring memcp's gls.Go helper.
func Go(fn func()) {
	gls.Go(fn)
}
