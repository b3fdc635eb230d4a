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
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// roSegment is one memory-mapped read-only-region segment file. Once
// sealed it is never written to again: a record crossing from mutable
// into read-only is appended to the segment currently being filled,
// and the whole segment is mapped read-only once full. This is the
// piece of the store that genuinely wants golang.org/x/sys.Mmap rather
// than ordinary file I/O, since the read-only region's whole purpose
// is to serve reads without a syscall per access.
type roSegment struct {
	path   string
	file   *os.File
	data   []byte // mmap'd bytes, nil until sealed
	sealed bool

	mu      sync.Mutex
	offsets map[Address]roLocation
}

type roLocation struct {
	offset int64
	length int
}

func newRoSegment(path string) (*roSegment, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0640)
	if err != nil {
		return nil, err
	}
	return &roSegment{path: path, file: f, offsets: make(map[Address]roLocation)}, nil
}

// append writes one record to the segment file while it is still
// being filled (before Seal). Not valid to call after Seal.
func (s *roSegment) append(addr Address, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return fmt.Errorf("hybridlog: segment %s already sealed", s.path)
	}
	stat, err := s.file.Stat()
	if err != nil {
		return err
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(data)))
	if _, err := s.file.Write(lenPrefix[:]); err != nil {
		return err
	}
	if _, err := s.file.Write(data); err != nil {
		return err
	}
	s.offsets[addr] = roLocation{offset: stat.Size() + 4, length: len(data)}
	return nil
}

// seal mmaps the segment read-only; after this call append is no
// longer permitted and read is served straight from the mapping with
// no further syscalls.
func (s *roSegment) seal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return nil
	}
	stat, err := s.file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() == 0 {
		s.sealed = true
		return nil
	}
	data, err := unix.Mmap(int(s.file.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("hybridlog: mmap %s: %w", s.path, err)
	}
	s.data = data
	s.sealed = true
	return nil
}

func (s *roSegment) read(addr Address) ([]byte, bool) {
	s.mu.Lock()
	loc, ok := s.offsets[addr]
	sealed := s.sealed
	data := s.data
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	if sealed && data != nil {
		if loc.offset+int64(loc.length) > int64(len(data)) {
			return nil, false
		}
		return data[loc.offset : loc.offset+int64(loc.length)], true
	}
	buf := make([]byte, loc.length)
	if _, err := s.file.ReadAt(buf, loc.offset); err != nil {
		return nil, false
	}
	return buf, true
}

func (s *roSegment) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil {
		_ = unix.Munmap(s.data)
		s.data = nil
	}
	return s.file.Close()
}
