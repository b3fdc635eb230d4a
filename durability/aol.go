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
	"bufio"
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/ferritelabs/ferrite/clock"
	"github.com/ferritelabs/ferrite/config"
)

// aolHeaderSize is the width of the fixed header every AOL file opens
// with: the logical sequence number of the record immediately
// preceding the file's first record. A from-scratch data directory's
// file carries 0; a file written fresh by Rewrite carries the
// sequence the checkpoint it pairs with was taken at, so replayAOL can
// assign correct absolute sequence numbers to a file that was
// truncated and restarted mid-stream.
const aolHeaderSize = 8

// AOLWriter appends one record per mutating command to a single
// append-only file, fsyncing according to policy: always (every
// record), everysec (a background tick, the same clock.Scheduler
// idiom epoch/expire use for their own periodic maintenance), or no
// (left to the OS, only forced on Close).
type AOLWriter struct {
	mu sync.Mutex
	f  *os.File
	bw *bufio.Writer

	policy      config.FsyncPolicy
	cancelTimer func()

	seq uint64
}

// OpenAOLWriter opens (creating if absent) the AOL file at path in
// append mode and wires up the fsync policy. sched may be nil when
// policy is not everysec. startSeq is the absolute sequence number to
// resume appending from — the caller (Open, Rewrite) has already
// resolved it from the file's header plus whatever records replayAOL
// found valid; for a brand-new (empty) file, OpenAOLWriter writes
// startSeq into the header so a future reopen can recover it.
func OpenAOLWriter(path string, policy config.FsyncPolicy, sched *clock.Scheduler, startSeq uint64) (*AOLWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		var hdr [aolHeaderSize]byte
		binary.LittleEndian.PutUint64(hdr[:], startSeq)
		if _, err := f.Write(hdr[:]); err != nil {
			f.Close()
			return nil, err
		}
	}
	w := &AOLWriter{f: f, bw: bufio.NewWriter(f), policy: policy, seq: startSeq}
	if policy == config.FsyncEverySec && sched != nil {
		w.cancelTimer = sched.ScheduleEvery(time.Second, w.flushAndSync)
	}
	return w, nil
}

// Append encodes and writes one command record, fsyncing immediately
// under FsyncAlways. It returns the record's monotonically increasing
// sequence number, the value a checkpoint's header pins so Recover
// knows where to resume AOL replay from.
func (w *AOLWriter) Append(db int, args [][]byte) (seq uint64, err error) {
	rec := EncodeRecord(db, args)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.bw.Write(rec); err != nil {
		return 0, err
	}
	w.seq++
	seq = w.seq
	if w.policy == config.FsyncAlways {
		if err := w.flushAndSyncLocked(); err != nil {
			return seq, err
		}
	}
	return seq, nil
}

// Seq reports the most recently assigned sequence number.
func (w *AOLWriter) Seq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

func (w *AOLWriter) flushAndSyncLocked() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	return w.f.Sync()
}

func (w *AOLWriter) flushAndSync() {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.flushAndSyncLocked()
}

// Close cancels the fsync timer (if any), flushes and syncs whatever
// is still buffered, and closes the underlying file.
func (w *AOLWriter) Close() error {
	if w.cancelTimer != nil {
		w.cancelTimer()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushAndSyncLocked(); err != nil {
		return err
	}
	return w.f.Close()
}
