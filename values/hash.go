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
	"sort"

	"github.com/shopspring/decimal"
)

// Hash is a field->value map.
type Hash struct {
	fields map[string][]byte
}

func (*Hash) Kind() Kind { return KindHash }

// NewHash returns an empty Hash.
func NewHash() *Hash { return &Hash{fields: make(map[string][]byte)} }

// Set sets field to value, returning whether the field was newly created.
func (h *Hash) Set(field string, value []byte) bool {
	_, existed := h.fields[field]
	h.fields[field] = value
	return !existed
}

// SetNX sets field only if it does not already exist.
func (h *Hash) SetNX(field string, value []byte) bool {
	if _, ok := h.fields[field]; ok {
		return false
	}
	h.fields[field] = value
	return true
}

// Get returns the field's value.
func (h *Hash) Get(field string) ([]byte, bool) {
	v, ok := h.fields[field]
	return v, ok
}

// Del removes the named fields, returning the count actually removed.
func (h *Hash) Del(fields ...string) int {
	n := 0
	for _, f := range fields {
		if _, ok := h.fields[f]; ok {
			delete(h.fields, f)
			n++
		}
	}
	return n
}

// Len returns the field count.
func (h *Hash) Len() int { return len(h.fields) }

// Exists reports whether field is present.
func (h *Hash) Exists(field string) bool {
	_, ok := h.fields[field]
	return ok
}

// Keys returns all field names, order unspecified.
func (h *Hash) Keys() []string {
	out := make([]string, 0, len(h.fields))
	for k := range h.fields {
		out = append(out, k)
	}
	return out
}

// Values returns all field values, order matching Keys if called
// without intervening mutation is not guaranteed; callers needing a
// paired view should use All.
func (h *Hash) Values() [][]byte {
	out := make([][]byte, 0, len(h.fields))
	for _, v := range h.fields {
		out = append(out, v)
	}
	return out
}

// All returns a field/value snapshot as parallel slices of equal length.
func (h *Hash) All() ([]string, [][]byte) {
	keys := make([]string, 0, len(h.fields))
	vals := make([][]byte, 0, len(h.fields))
	for k, v := range h.fields {
		keys = append(keys, k)
		vals = append(vals, v)
	}
	return keys, vals
}

// IncrBy adds delta to the integer value of field, initializing to 0
// if absent.
func (h *Hash) IncrBy(field string, delta int64) (int64, error) {
	s := NewString(h.fields[field])
	n, err := s.IncrBy(delta)
	if err != nil {
		return 0, err
	}
	h.fields[field] = s.Bytes()
	return n, nil
}

// IncrByFloat adds delta to field's float value via shopspring/decimal.
func (h *Hash) IncrByFloat(field string, delta decimal.Decimal) (decimal.Decimal, error) {
	s := NewString(h.fields[field])
	n, err := s.IncrByFloat(delta)
	if err != nil {
		return decimal.Zero, err
	}
	h.fields[field] = s.Bytes()
	return n, nil
}

// Scan returns up to count fields starting at cursor, plus the next
// cursor (0 once exhausted). Ordering is by sorted field name, which
// is stable across calls as long as the field set itself is stable —
// Redis's own HSCAN guarantee is weaker ("elements present for the
// whole scan are returned at least once"), which this satisfies.
func (h *Hash) Scan(cursor Cursor, count int) ([]string, Cursor) {
	keys := h.Keys()
	sort.Strings(keys)
	start := int(cursor)
	if start >= len(keys) {
		return nil, 0
	}
	end := start + count
	if end > len(keys) {
		end = len(keys)
	}
	next := Cursor(end)
	if end >= len(keys) {
		next = 0
	}
	return keys[start:end], next
}
