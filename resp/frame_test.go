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

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestReaderParsesArrayOfBulk(t *testing.T) {
	in := "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"
	r := NewReader(strings.NewReader(in))
	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if f.Type != Array || len(f.Elems) != 2 {
		t.Fatalf("got %+v", f)
	}
	if string(f.Elems[0].Str) != "GET" || string(f.Elems[1].Str) != "foo" {
		t.Fatalf("bad elems: %q %q", f.Elems[0].Str, f.Elems[1].Str)
	}
}

func TestReaderIncrementalFeed(t *testing.T) {
	// a reader fed one byte at a time must still assemble the frame
	in := "*1\r\n$4\r\nPING\r\n"
	r := NewReader(&byteAtATimeReader{data: []byte(in)})
	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if f.Type != Array || len(f.Elems) != 1 || string(f.Elems[0].Str) != "PING" {
		t.Fatalf("got %+v", f)
	}
}

type byteAtATimeReader struct {
	data []byte
	pos  int
}

func (b *byteAtATimeReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	p[0] = b.data[b.pos]
	b.pos++
	return 1, nil
}

func TestReaderNilBulkAndArray(t *testing.T) {
	r := NewReader(strings.NewReader("$-1\r\n*-1\r\n"))
	f, err := r.ReadFrame()
	if err != nil || f.Type != BulkString || !f.IsNil {
		t.Fatalf("nil bulk: %+v %v", f, err)
	}
	f2, err := r.ReadFrame()
	if err != nil || f2.Type != Array || !f2.IsNil {
		t.Fatalf("nil array: %+v %v", f2, err)
	}
}

func TestReaderInlineCommand(t *testing.T) {
	r := NewReader(strings.NewReader("SET foo \"hello world\"\r\n"))
	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(f.Elems) != 3 {
		t.Fatalf("want 3 elems, got %d (%+v)", len(f.Elems), f)
	}
	if string(f.Elems[2].Str) != "hello world" {
		t.Fatalf("want %q, got %q", "hello world", f.Elems[2].Str)
	}
}

func TestWriterRESP2Downgrades(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteFrame(NewDouble(3.0)); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame(NewBool(true)); err != nil {
		t.Fatal(err)
	}
	w.Flush()
	got := buf.String()
	want := "$1\r\n3\r\n:1\r\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestWriterRESP3Native(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Proto = 3
	if err := w.WriteFrame(NewDouble(3.0)); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame(NewBool(false)); err != nil {
		t.Fatal(err)
	}
	w.Flush()
	got := buf.String()
	want := ",3\r\n#f\r\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestProtocolErrorOnBadBulkLength(t *testing.T) {
	r := NewReader(strings.NewReader("$abc\r\n"))
	_, err := r.ReadFrame()
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *ProtocolError
	if !asProtocolError(err, &pe) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
	if pe.Kind != BadInteger {
		t.Fatalf("got kind %v", pe.Kind)
	}
}

func asProtocolError(err error, out **ProtocolError) bool {
	pe, ok := err.(*ProtocolError)
	if ok {
		*out = pe
	}
	return ok
}

func TestRoundTripEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	orig := Args("SET", "key", "value")
	if err := w.WriteFrame(orig); err != nil {
		t.Fatal(err)
	}
	w.Flush()
	r := NewReader(&buf)
	got, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(got.Elems) != 3 {
		t.Fatalf("got %+v", got)
	}
	for i, want := range []string{"SET", "key", "value"} {
		if string(got.Elems[i].Str) != want {
			t.Fatalf("elem %d: got %q want %q", i, got.Elems[i].Str, want)
		}
	}
}
