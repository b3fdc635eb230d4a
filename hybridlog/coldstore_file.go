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
	"path/filepath"
	"sync"
)

// FileColdStore persists cold-tier records as one directory of
// fixed-name segment files, indexed by a small in-memory offset
// table; segment bytes are the same ones the read-only region would
// mmap before a record ages further into the cold tier. Grounded on
// storage/persistence-files.go's one-file-per-shard layout, adapted
// from memcp's column files to a single append segment per cold
// generation.
type FileColdStore struct {
	dir string

	mu      sync.Mutex
	offsets map[Address]fileLocation
	nextSeg int

	ring *workerPoolRing
}

type fileLocation struct {
	segment int
	offset  int64
	length  int
}

// NewFileColdStore opens (creating if needed) dir as the cold-tier
// backing directory.
func NewFileColdStore(dir string) (*FileColdStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}
	s := &FileColdStore{dir: dir, offsets: make(map[Address]fileLocation)}
	s.ring = newWorkerPoolRing(4, s.readSync)
	return s, nil
}

func (s *FileColdStore) segmentPath(seg int) string {
	return filepath.Join(s.dir, fmt.Sprintf("segment-%08d.dat", seg))
}

// Write appends data to the current segment, recording its location.
func (s *FileColdStore) Write(addr Address, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.segmentPath(s.nextSeg)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0640)
	if err != nil {
		return err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return err
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(data)))
	if _, err := f.Write(lenPrefix[:]); err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	s.offsets[addr] = fileLocation{segment: s.nextSeg, offset: stat.Size() + 4, length: len(data)}
	// roll to a new segment once the current one crosses 64MiB, so
	// compaction never has to rewrite an unbounded file.
	if stat.Size()+int64(len(data))+4 > 64<<20 {
		s.nextSeg++
	}
	return nil
}

func (s *FileColdStore) readSync(addr Address) ([]byte, error) {
	s.mu.Lock()
	loc, ok := s.offsets[addr]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("hybridlog: cold address %d not found", addr)
	}
	f, err := os.Open(s.segmentPath(loc.segment))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, loc.length)
	if _, err := f.ReadAt(buf, loc.offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read services a cold read synchronously.
func (s *FileColdStore) Read(addr Address) ([]byte, error) { return s.readSync(addr) }

// Remove forgets addr's location; the bytes themselves stay in the
// segment file.
func (s *FileColdStore) Remove(addr Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.offsets, addr)
	return nil
}

// Ring exposes the ticketed async-read facility (hybridlog.ioRingProvider).
func (s *FileColdStore) Ring() ioRing { return s.ring }

// Close releases the worker pool.
func (s *FileColdStore) Close() error { return s.ring.Close() }
