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

import "io"

// Reader pairs a Parser with a blocking io.Reader: ReadFrame keeps
// pulling chunks off the wire and feeding the Parser until it yields a
// complete frame. Each connection owns exactly one Reader and reads on
// its own goroutine, so blocking here is the idiomatic choice — the
// non-blocking Parser underneath is what lets the same codec also back
// a reactor-style I/O path (hybridlog's ticketed completions) without
// a rewrite.
type Reader struct {
	src    io.Reader
	p      *Parser
	chunk  []byte
}

// NewReader wraps src with the default parser limits.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, p: NewParser(), chunk: make([]byte, 64*1024)}
}

// NewReaderSize wraps src, overriding the per-read chunk size.
func NewReaderSize(src io.Reader, chunkSize int) *Reader {
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	return &Reader{src: src, p: NewParser(), chunk: make([]byte, chunkSize)}
}

// SetLimits overrides the bulk-length and array-depth caps.
func (r *Reader) SetLimits(maxBulkLen, maxArrayDepth int) {
	r.p.MaxBulkLen = maxBulkLen
	r.p.MaxArrayDepth = maxArrayDepth
}

// ReadFrame returns the next complete frame, blocking on the
// underlying reader as needed. It returns io.EOF when the peer closes
// the connection with no partial frame pending, and *ProtocolError on
// malformed input.
func (r *Reader) ReadFrame() (Frame, error) {
	for {
		f, err := r.p.Next()
		if err == nil {
			return f, nil
		}
		if err != ErrNeedMore {
			return Frame{}, err
		}
		n, rerr := r.src.Read(r.chunk)
		if n > 0 {
			r.p.Feed(r.chunk[:n])
		}
		if rerr != nil {
			if n > 0 {
				// try once more: the last read may have completed a frame
				if f, ferr := r.p.Next(); ferr == nil {
					return f, nil
				}
			}
			return Frame{}, rerr
		}
	}
}

// Buffered reports unconsumed bytes still held by the parser.
func (r *Reader) Buffered() int { return r.p.Buffered() }
