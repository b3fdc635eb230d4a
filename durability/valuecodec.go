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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ferritelabs/ferrite/values"
)

// encodeValue renders one values.Value as the flat byte-string
// checkpoint entries carry, in a layout private to this package (not
// the wire protocol): a kind-specific sequence of varint-length-
// prefixed strings, chosen so decodeValue never has to guess a boundary.
func encodeValue(v values.Value) ([]byte, error) {
	var buf []byte
	switch val := v.(type) {
	case *values.String:
		buf = appendBytes(buf, val.Bytes())

	case *values.List:
		items := val.LRange(0, -1)
		buf = appendUvarint(buf, uint64(len(items)))
		for _, it := range items {
			buf = appendBytes(buf, it)
		}

	case *values.Hash:
		fields, vals := val.All()
		buf = appendUvarint(buf, uint64(len(fields)))
		for i, f := range fields {
			buf = appendBytes(buf, []byte(f))
			buf = appendBytes(buf, vals[i])
		}

	case *values.Set:
		members := val.Members()
		buf = appendUvarint(buf, uint64(len(members)))
		for _, m := range members {
			buf = appendBytes(buf, []byte(m))
		}

	case *values.ZSet:
		members := val.RangeByRank(0, -1, false)
		buf = appendUvarint(buf, uint64(len(members)))
		for _, m := range members {
			buf = appendBytes(buf, []byte(m.Member))
			var scoreBits [8]byte
			binary.LittleEndian.PutUint64(scoreBits[:], math.Float64bits(m.Score))
			buf = append(buf, scoreBits[:]...)
		}

	case *values.Stream:
		maxID := values.StreamID{Ms: ^uint64(0), Seq: ^uint64(0)}
		entries := val.Range(values.StreamID{}, maxID, 0)
		buf = appendUvarint(buf, uint64(len(entries)))
		for _, e := range entries {
			var idBits [16]byte
			binary.LittleEndian.PutUint64(idBits[0:8], e.ID.Ms)
			binary.LittleEndian.PutUint64(idBits[8:16], e.ID.Seq)
			buf = append(buf, idBits[:]...)
			buf = appendUvarint(buf, uint64(len(e.Fields)))
			for _, f := range e.Fields {
				buf = appendBytes(buf, []byte(f))
			}
		}

	default:
		return nil, fmt.Errorf("durability: unknown value kind %T", v)
	}
	return buf, nil
}

// decodeValue rebuilds a values.Value from encodeValue's layout.
func decodeValue(kind values.Kind, data []byte) (values.Value, error) {
	d := &decoder{buf: data}
	switch kind {
	case values.KindString:
		return values.NewString(append([]byte(nil), d.bytes()...)), d.err

	case values.KindList:
		l := values.NewList()
		n := d.uvarint()
		for i := uint64(0); i < n; i++ {
			l.RPush(append([]byte(nil), d.bytes()...))
		}
		return l, d.err

	case values.KindHash:
		h := values.NewHash()
		n := d.uvarint()
		for i := uint64(0); i < n; i++ {
			field := string(d.bytes())
			value := append([]byte(nil), d.bytes()...)
			h.Set(field, value)
		}
		return h, d.err

	case values.KindSet:
		s := values.NewSet()
		n := d.uvarint()
		for i := uint64(0); i < n; i++ {
			s.Add(string(d.bytes()))
		}
		return s, d.err

	case values.KindZSet:
		z := values.NewZSet()
		n := d.uvarint()
		for i := uint64(0); i < n; i++ {
			member := string(d.bytes())
			scoreBits := d.fixed(8)
			score := math.Float64frombits(binary.LittleEndian.Uint64(scoreBits))
			z.Add(member, score, values.AddOptions{})
		}
		return z, d.err

	case values.KindStream:
		st := values.NewStream()
		n := d.uvarint()
		for i := uint64(0); i < n; i++ {
			idBits := d.fixed(16)
			id := values.StreamID{
				Ms:  binary.LittleEndian.Uint64(idBits[0:8]),
				Seq: binary.LittleEndian.Uint64(idBits[8:16]),
			}
			nf := d.uvarint()
			fields := make([]string, nf)
			for j := uint64(0); j < nf; j++ {
				fields[j] = string(d.bytes())
			}
			st.Add(id, fields)
		}
		return st, d.err

	default:
		return nil, fmt.Errorf("durability: unknown value kind byte %d", kind)
	}
}

func appendUvarint(buf []byte, n uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	w := binary.PutUvarint(tmp[:], n)
	return append(buf, tmp[:w]...)
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = appendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// decoder walks a byte slice built by appendUvarint/appendBytes,
// latching the first error so every call site can ignore it until the
// end — entries are only ever read once, immediately after being
// length-checked against the checkpoint's own varint framing.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	n, w := binary.Uvarint(d.buf)
	if w <= 0 {
		d.err = fmt.Errorf("durability: malformed varint")
		return 0
	}
	d.buf = d.buf[w:]
	return n
}

func (d *decoder) fixed(n int) []byte {
	if d.err != nil {
		return make([]byte, n)
	}
	if len(d.buf) < n {
		d.err = fmt.Errorf("durability: truncated fixed-width field")
		return make([]byte, n)
	}
	out := d.buf[:n]
	d.buf = d.buf[n:]
	return out
}

func (d *decoder) bytes() []byte {
	n := d.uvarint()
	return d.fixed(int(n))
}
