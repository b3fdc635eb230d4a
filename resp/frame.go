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

// Package resp implements a streaming RESP2/RESP3 codec: the wire
// protocol framer and encoder described as C1 in the design.
package resp

import "fmt"

// Type tags one RESP frame kind.
type Type byte

const (
	SimpleString Type = iota
	Error
	Integer
	BulkString
	Array
	Null
	Map
	Set
	Double
	Boolean
	BigNumber
	Verbatim
	Push
)

func (t Type) String() string {
	switch t {
	case SimpleString:
		return "SimpleString"
	case Error:
		return "Error"
	case Integer:
		return "Integer"
	case BulkString:
		return "BulkString"
	case Array:
		return "Array"
	case Null:
		return "Null"
	case Map:
		return "Map"
	case Set:
		return "Set"
	case Double:
		return "Double"
	case Boolean:
		return "Boolean"
	case BigNumber:
		return "BigNumber"
	case Verbatim:
		return "Verbatim"
	case Push:
		return "Push"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

// Frame is one complete RESP message (request or reply).
//
// Str is always a fresh copy owned by the Frame: the parser copies
// every payload out of its buffer, so a later refill never changes it.
type Frame struct {
	Type  Type
	Int   int64
	Bool  bool
	Flt   float64
	Str   []byte
	Elems []Frame
	// IsNil reports whether a BulkString/Array frame is the null form
	// ($-1\r\n / *-1\r\n) rather than an empty one.
	IsNil bool
}

// NewBulk builds a non-nil bulk-string frame.
func NewBulk(b []byte) Frame { return Frame{Type: BulkString, Str: b} }

// NewNilBulk builds the $-1\r\n null bulk frame.
func NewNilBulk() Frame { return Frame{Type: BulkString, IsNil: true} }

// NewNilArray builds the *-1\r\n null array frame.
func NewNilArray() Frame { return Frame{Type: Array, IsNil: true} }

// NewArray builds an array frame from elements.
func NewArray(elems ...Frame) Frame { return Frame{Type: Array, Elems: elems} }

// NewSimple builds a +OK\r\n-style simple string frame.
func NewSimple(s string) Frame { return Frame{Type: SimpleString, Str: []byte(s)} }

// NewError builds a -ERR ...\r\n-style error frame.
func NewError(s string) Frame { return Frame{Type: Error, Str: []byte(s)} }

// NewInt builds an integer frame.
func NewInt(i int64) Frame { return Frame{Type: Integer, Int: i} }

// NewDouble builds a RESP3 double frame (encoded as a bulk string on RESP2).
func NewDouble(f float64) Frame { return Frame{Type: Double, Flt: f} }

// NewBool builds a RESP3 boolean frame (encoded as :1/:0 on RESP2).
func NewBool(b bool) Frame { return Frame{Type: Boolean, Bool: b} }

// Args renders a command invocation as the RESP array of bulk strings
// clients send on the wire; used by cmd/ferrite-cli and by tests.
func Args(parts ...string) Frame {
	elems := make([]Frame, len(parts))
	for i, p := range parts {
		elems[i] = NewBulk([]byte(p))
	}
	return NewArray(elems...)
}
