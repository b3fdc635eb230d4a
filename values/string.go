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

package values

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// String is a byte buffer with an opportunistic cached int64, kept in
// sync only while the buffer still parses as a clean base-10 integer;
// INCR/INCRBY/DECR use the cache to avoid re-parsing on every call,
// and any byte-level mutation (APPEND, SETRANGE) invalidates it.
type String struct {
	buf      []byte
	intCache int64
	intValid bool
}

func (*String) Kind() Kind { return KindString }

// NewString wraps b as a String value, detecting whether it already
// parses as a clean integer.
func NewString(b []byte) *String {
	s := &String{buf: b}
	s.refreshIntCache()
	return s
}

func (s *String) refreshIntCache() {
	n, err := strconv.ParseInt(string(s.buf), 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != string(s.buf) {
		s.intValid = false
		return
	}
	s.intCache = n
	s.intValid = true
}

// Bytes returns the current buffer. Callers must not mutate it.
func (s *String) Bytes() []byte { return s.buf }

// Set replaces the buffer wholesale.
func (s *String) Set(b []byte) {
	s.buf = b
	s.refreshIntCache()
}

// Append adds b to the end of the buffer and returns the new length.
func (s *String) Append(b []byte) int {
	s.buf = append(s.buf, b...)
	s.intValid = false
	return len(s.buf)
}

// Strlen returns the buffer length in bytes.
func (s *String) Strlen() int { return len(s.buf) }

// GetRange returns the inclusive [start,end] byte range with Redis's
// negative-index-from-end convention, clamped to the buffer bounds.
func (s *String) GetRange(start, end int) []byte {
	n := len(s.buf)
	start = clampIndex(start, n)
	end = clampIndex(end, n)
	if start > end || n == 0 {
		return []byte{}
	}
	if end >= n {
		end = n - 1
	}
	out := make([]byte, end-start+1)
	copy(out, s.buf[start:end+1])
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			i = 0
		}
	}
	return i
}

// SetRange overwrites the buffer starting at offset with value,
// zero-padding if offset extends past the current length, and
// returns the new length.
func (s *String) SetRange(offset int, value []byte) int {
	if offset < 0 {
		offset = 0
	}
	need := offset + len(value)
	if need > len(s.buf) {
		grown := make([]byte, need)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[offset:], value)
	s.intValid = false
	s.refreshIntCache()
	return len(s.buf)
}

// IncrBy adds delta to the integer value, initializing to 0 if the
// key is new/empty. Returns an error if the buffer is not a clean
// integer.
func (s *String) IncrBy(delta int64) (int64, error) {
	if len(s.buf) == 0 {
		s.buf = []byte(strconv.FormatInt(delta, 10))
		s.intCache = delta
		s.intValid = true
		return delta, nil
	}
	if !s.intValid {
		return 0, errNotAnInteger
	}
	result := s.intCache + delta
	s.buf = []byte(strconv.FormatInt(result, 10))
	s.intCache = result
	return result, nil
}

// IncrByFloat adds delta (parsed with shopspring/decimal for
// deterministic base-10 arithmetic, avoiding binary-float drift across
// repeated INCRBYFLOAT calls) to the current value.
func (s *String) IncrByFloat(delta decimal.Decimal) (decimal.Decimal, error) {
	cur := decimal.Zero
	if len(s.buf) > 0 {
		d, err := decimal.NewFromString(string(s.buf))
		if err != nil {
			return decimal.Zero, errNotAFloat
		}
		cur = d
	}
	result := cur.Add(delta)
	s.buf = []byte(result.String())
	s.refreshIntCache()
	return result, nil
}

var errNotAnInteger = stringErr("value is not an integer or out of range")
var errNotAFloat = stringErr("value is not a valid float")

type stringErr string

func (e stringErr) Error() string { return string(e) }
