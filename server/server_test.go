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

package server

import (
	"net"
	"testing"
	"time"

	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/resp"
)

func startTestServer(t *testing.T) (*Server, net.Conn) {
	t.Helper()
	reg := database.NewRegistry(4, 4)
	srv := New(reg, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("net.Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return srv, conn
}

func roundTrip(t *testing.T, conn net.Conn, w *resp.Writer, r *resp.Reader, parts ...string) resp.Frame {
	t.Helper()
	if err := w.WriteFrame(resp.Args(parts...)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	return frame
}

func TestServerRespondsToSetAndGet(t *testing.T) {
	_, conn := startTestServer(t)
	w := resp.NewWriter(conn)
	r := resp.NewReader(conn)

	reply := roundTrip(t, conn, w, r, "SET", "foo", "bar")
	if reply.Type != resp.SimpleString || string(reply.Str) != "OK" {
		t.Fatalf("SET reply = %+v, want +OK", reply)
	}

	reply = roundTrip(t, conn, w, r, "GET", "foo")
	if reply.Type != resp.BulkString || string(reply.Str) != "bar" {
		t.Fatalf("GET reply = %+v, want $bar", reply)
	}
}

func TestServerRejectsUnknownCommand(t *testing.T) {
	_, conn := startTestServer(t)
	w := resp.NewWriter(conn)
	r := resp.NewReader(conn)

	reply := roundTrip(t, conn, w, r, "NOSUCHCOMMAND")
	if reply.Type != resp.Error {
		t.Fatalf("reply = %+v, want an error frame", reply)
	}
}

func TestServerClosesConnectionOnQuit(t *testing.T) {
	_, conn := startTestServer(t)
	w := resp.NewWriter(conn)
	r := resp.NewReader(conn)

	reply := roundTrip(t, conn, w, r, "QUIT")
	if reply.Type != resp.SimpleString || string(reply.Str) != "OK" {
		t.Fatalf("QUIT reply = %+v, want +OK", reply)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := r.ReadFrame(); err == nil {
		t.Fatal("expected the connection to be closed after QUIT")
	}
}

func TestServerSurvivesTransactionAcrossCommands(t *testing.T) {
	_, conn := startTestServer(t)
	w := resp.NewWriter(conn)
	r := resp.NewReader(conn)

	if reply := roundTrip(t, conn, w, r, "MULTI"); reply.Type != resp.SimpleString {
		t.Fatalf("MULTI reply = %+v", reply)
	}
	if reply := roundTrip(t, conn, w, r, "SET", "k", "v"); reply.Type != resp.SimpleString || string(reply.Str) != "QUEUED" {
		t.Fatalf("queued SET reply = %+v, want +QUEUED", reply)
	}
	reply := roundTrip(t, conn, w, r, "EXEC")
	if reply.Type != resp.Array {
		t.Fatalf("EXEC reply = %+v, want an array", reply)
	}
}

func TestServerCloseStopsAcceptingConnections(t *testing.T) {
	reg := database.NewRegistry(1, 4)
	srv := New(reg, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	addr := ln.Addr().String()
	if err := srv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v after Close, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}

	if _, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		t.Fatal("expected dialing a closed listener to fail")
	}
}
