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

package hybridlog

import (
	"errors"
	"fmt"
)

// ErrNotResident means addr is not in the mutable or read-only region
// and no ColdStore is configured to fall back to.
var ErrNotResident = errors.New("hybridlog: address not resident and no cold store configured")

// StorageError wraps a failed cold-tier read. Per spec.md §4.6's
// failure semantics, the index entry pointing at Addr is left intact
// and a retry is permitted — StorageError is never treated as "the
// value is gone."
type StorageError struct {
	Addr Address
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("hybridlog: cold read of address %d failed: %v", e.Addr, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
