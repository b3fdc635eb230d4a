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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/epoch"
	"github.com/ferritelabs/ferrite/hybridlog"
	"github.com/ferritelabs/ferrite/keyspace"
	"github.com/ferritelabs/ferrite/values"
)

// checkpointMagic opens every checkpoint file; the trailing \x00
// keeps it from ever colliding with a text format a human might
// mistake the file for.
var checkpointMagic = []byte("FERR-CKPT\x00")

const checkpointVersion uint32 = 1

// ErrBadMagic is returned by LoadCheckpoint when a file does not
// begin with checkpointMagic.
var ErrBadMagic = errors.New("durability: not a ferrite checkpoint file")

// entry is one (db, key, value, ttl) tuple a checkpoint body carries.
type entry struct {
	DB          int
	Key         string
	Kind        values.Kind
	Payload     []byte
	ExpiresAtNS int64
}

// WriteCheckpoint pins an epoch guard, walks every database's keyspace
// consistently with concurrent readers/writers (the guard only
// prevents a concurrent compaction from reclaiming memory out from
// under the snapshot; keyspace.Index's own per-shard locking already
// makes Get/AllKeys safe to call concurrently with writers), and
// writes a header + little-endian AOL sequence + lz4-compressed,
// length-prefixed entry stream to path, trailed by an xxhash64 digest
// of the compressed body.
func WriteCheckpoint(path string, reg *database.Registry, aolSeq uint64) error {
	guard := epoch.Global.Pin()
	defer guard.Unpin()

	var body bytes.Buffer
	for i := 0; i < reg.Count(); i++ {
		db, err := reg.Select(i)
		if err != nil {
			continue
		}
		for _, key := range db.Keys.AllKeys() {
			e, ok := db.Keys.Get(key)
			if !ok {
				continue
			}
			if err := writeEntry(&body, i, key, e); err != nil {
				return err
			}
		}
	}

	compressed, err := hybridlog.LZ4Archive(body.Bytes())
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(checkpointMagic); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, checkpointVersion); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, aolSeq); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint64(len(compressed))); err != nil {
		return err
	}
	if _, err := f.Write(compressed); err != nil {
		return err
	}
	sum := xxhash64Sum(compressed)
	return binary.Write(f, binary.LittleEndian, sum)
}

func writeEntry(w *bytes.Buffer, db int, key string, e *keyspace.Entry) error {
	if !e.IsHot() {
		// A cold/warm entry's value lives in the hybridlog, not in
		// memory. Such an entry is skipped: the checkpoint carries
		// neither its value nor its hybridlog address.
		return nil
	}
	payload, err := encodeValue(e.Value)
	if err != nil {
		return err
	}
	var hdr []byte
	hdr = appendUvarint(hdr, uint64(db))
	hdr = appendBytes(hdr, []byte(key))
	hdr = append(hdr, byte(e.Value.Kind()))
	hdr = appendBytes(hdr, payload)
	var ttl [8]byte
	binary.LittleEndian.PutUint64(ttl[:], uint64(e.ExpiresAtNS))
	hdr = append(hdr, ttl[:]...)
	_, err = w.Write(hdr)
	return err
}

// LoadCheckpoint reads and validates path, returning the AOL sequence
// it was taken at and the entries to restore.
func LoadCheckpoint(path string) (aolSeq uint64, entries []entry, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	magic := make([]byte, len(checkpointMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return 0, nil, err
	}
	if !bytes.Equal(magic, checkpointMagic) {
		return 0, nil, ErrBadMagic
	}

	var version uint32
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		return 0, nil, err
	}
	if err := binary.Read(f, binary.LittleEndian, &aolSeq); err != nil {
		return 0, nil, err
	}
	var clen uint64
	if err := binary.Read(f, binary.LittleEndian, &clen); err != nil {
		return 0, nil, err
	}
	compressed := make([]byte, clen)
	if _, err := io.ReadFull(f, compressed); err != nil {
		return 0, nil, err
	}
	var wantSum uint64
	if err := binary.Read(f, binary.LittleEndian, &wantSum); err != nil {
		return 0, nil, err
	}
	if xxhash64Sum(compressed) != wantSum {
		return 0, nil, fmt.Errorf("durability: checkpoint %s failed checksum verification", path)
	}

	body, err := hybridlog.LZ4Restore(compressed)
	if err != nil {
		return 0, nil, err
	}

	entries, err = parseEntries(body)
	return aolSeq, entries, err
}

func parseEntries(body []byte) ([]entry, error) {
	var out []entry
	for len(body) > 0 {
		d := &decoder{buf: body}
		db := int(d.uvarint())
		key := string(d.bytes())
		if d.err != nil {
			return nil, d.err
		}
		if len(d.buf) < 1 {
			return nil, fmt.Errorf("durability: truncated checkpoint entry")
		}
		kind := values.Kind(d.buf[0])
		d.buf = d.buf[1:]
		payload := d.bytes()
		ttlBits := d.fixed(8)
		if d.err != nil {
			return nil, d.err
		}
		out = append(out, entry{
			DB:          db,
			Key:         key,
			Kind:        kind,
			Payload:     append([]byte(nil), payload...),
			ExpiresAtNS: int64(binary.LittleEndian.Uint64(ttlBits)),
		})
		body = d.buf
	}
	return out, nil
}

// Restore replays a checkpoint's entries into reg, overwriting
// whatever each target database currently holds — callers run this
// once, before the server starts accepting connections, as part of
// Recover.
func Restore(reg *database.Registry, entries []entry) error {
	for _, e := range entries {
		db, err := reg.Select(e.DB)
		if err != nil {
			continue
		}
		val, err := decodeValue(e.Kind, e.Payload)
		if err != nil {
			return fmt.Errorf("durability: restoring key %q: %w", e.Key, err)
		}
		ent := keyspace.NewEntry(val)
		ent.ExpiresAtNS = e.ExpiresAtNS
		db.Keys.Insert(e.Key, ent)
		if e.ExpiresAtNS != 0 {
			db.TTL.Set(e.Key, e.ExpiresAtNS)
		}
	}
	return nil
}
