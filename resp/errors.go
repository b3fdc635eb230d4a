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

package resp

import (
	"errors"
	"fmt"
)

// ErrKind classifies a ProtocolError.
type ErrKind int

const (
	InvalidType ErrKind = iota
	LengthExceeded
	UnterminatedLine
	BadInteger
)

func (k ErrKind) String() string {
	switch k {
	case InvalidType:
		return "InvalidType"
	case LengthExceeded:
		return "LengthExceeded"
	case UnterminatedLine:
		return "UnterminatedLine"
	case BadInteger:
		return "BadInteger"
	default:
		return "Unknown"
	}
}

// ProtocolError is a precise framing failure; the connection is closed
// after a best-effort error reply is written (spec §7).
type ProtocolError struct {
	Kind   ErrKind
	Offset int64
	Msg    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error (%s) at offset %d: %s", e.Kind, e.Offset, e.Msg)
}

// ErrNeedMore is returned by Parser.Next when the fed bytes do not yet
// hold a complete frame; callers should Feed more bytes and retry
// (Reader.ReadFrame does this itself). It is a sentinel, not io.EOF.
var ErrNeedMore = errors.New("resp: need more bytes")
