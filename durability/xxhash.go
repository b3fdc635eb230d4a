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

import "encoding/binary"

// xxhash64 implements the public xxHash64 algorithm (seed 0) used for
// the checkpoint trailer. Hand-rolled rather than imported: the pack's
// dependency set has no xxhash library (only lz4/xz for compression),
// and this one checksum is small and stable enough that pulling in a
// whole new module for it isn't worth the dependency — see DESIGN.md.
const (
	prime64_1 uint64 = 11400714785074694791
	prime64_2 uint64 = 14029467366897019727
	prime64_3 uint64 = 1609587929392839161
	prime64_4 uint64 = 9650029242287828579
	prime64_5 uint64 = 2870177450012600261
)

func rotl64(x uint64, r uint) uint64 { return (x << r) | (x >> (64 - r)) }

func xxround64(acc, input uint64) uint64 {
	acc += input * prime64_2
	acc = rotl64(acc, 31)
	acc *= prime64_1
	return acc
}

func xxmergeRound64(acc, val uint64) uint64 {
	val = xxround64(0, val)
	acc ^= val
	acc = acc*prime64_1 + prime64_4
	return acc
}

// xxhash64Sum computes the seed-0 xxHash64 digest of data.
func xxhash64Sum(data []byte) uint64 {
	n := len(data)
	var h64 uint64
	if n >= 32 {
		v1 := prime64_1 + prime64_2
		v2 := prime64_2
		v3 := uint64(0)
		v4 := uint64(0) - prime64_1
		for len(data) >= 32 {
			v1 = xxround64(v1, binary.LittleEndian.Uint64(data[0:8]))
			v2 = xxround64(v2, binary.LittleEndian.Uint64(data[8:16]))
			v3 = xxround64(v3, binary.LittleEndian.Uint64(data[16:24]))
			v4 = xxround64(v4, binary.LittleEndian.Uint64(data[24:32]))
			data = data[32:]
		}
		h64 = rotl64(v1, 1) + rotl64(v2, 7) + rotl64(v3, 12) + rotl64(v4, 18)
		h64 = xxmergeRound64(h64, v1)
		h64 = xxmergeRound64(h64, v2)
		h64 = xxmergeRound64(h64, v3)
		h64 = xxmergeRound64(h64, v4)
	} else {
		h64 = prime64_5
	}

	h64 += uint64(n)

	for len(data) >= 8 {
		k1 := xxround64(0, binary.LittleEndian.Uint64(data[0:8]))
		h64 ^= k1
		h64 = rotl64(h64, 27)*prime64_1 + prime64_4
		data = data[8:]
	}
	if len(data) >= 4 {
		h64 ^= uint64(binary.LittleEndian.Uint32(data[0:4])) * prime64_1
		h64 = rotl64(h64, 23)*prime64_2 + prime64_3
		data = data[4:]
	}
	for len(data) > 0 {
		h64 ^= uint64(data[0]) * prime64_5
		h64 = rotl64(h64, 11) * prime64_1
		data = data[1:]
	}

	h64 ^= h64 >> 33
	h64 *= prime64_2
	h64 ^= h64 >> 29
	h64 *= prime64_3
	h64 ^= h64 >> 32
	return h64
}
