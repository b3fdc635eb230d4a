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

// Package server accepts RESP connections and runs each one through
// dispatch.Dispatch: one goroutine per connection, reading frames and
// writing replies until the peer disconnects or sends QUIT. The
// listener itself follows the same goroutine-wrapping-Accept,
// deferred-Close shape scm/mysql.go's MySQLServe uses around its
// go-mysqlstack listener, generalized here to a raw net.Listener
// speaking RESP instead of a wrapped driver.
package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/ferritelabs/ferrite/acl"
	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/dispatch"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/session"
)

// Server accepts connections against reg, authorizing every command
// through checker once a connection has been authenticated.
type Server struct {
	reg     *database.Registry
	checker acl.Checker

	mu      sync.Mutex
	ln      net.Listener
	conns   map[net.Conn]*session.Session
	closing bool
	wg      sync.WaitGroup
}

// New constructs a Server; checker may be nil, in which case every
// command is allowed once a session is authenticated (the
// no-ACL-file-configured default).
func New(reg *database.Registry, checker acl.Checker) *Server {
	return &Server{
		reg:     reg,
		checker: checker,
		conns:   make(map[net.Conn]*session.Session),
	}
}

// ListenAndServe binds addr (host:port) and serves connections until
// Close is called. It blocks the calling goroutine; callers that want
// a non-blocking start run it in a goroutine, mirroring
// scm/mysql.go's "go func(){ defer mysql.Close(); mysql.Accept() }()"
// idiom.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections off ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				s.wg.Wait()
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

// Close stops accepting new connections and waits until every open
// connection has ended (the peer disconnected or sent QUIT); it does
// not close open connections itself.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closing = true
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	err := ln.Close()
	s.wg.Wait()
	return err
}

// Addr reports the listener's bound address, useful when ListenAndServe
// was called with port 0 (tests, ephemeral ports).
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sess := session.New(session.NewID())
	// No AUTH/HELLO negotiation exists yet: a freshly accepted
	// connection authenticates as acl.DefaultUser(), mirroring Redis's
	// own behavior when no requirepass/ACL file is configured.
	if err := sess.Authenticate(acl.DefaultUser()); err != nil {
		slog.Warn("server: failed to authenticate new connection", "error", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = sess
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	r := resp.NewReader(conn)
	w := resp.NewWriter(conn)

	for {
		frame, err := r.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				var pe *resp.ProtocolError
				if errors.As(err, &pe) {
					_ = w.WriteFrame(resp.NewError("ERR Protocol error: " + pe.Error()))
					_ = w.Flush()
				}
			}
			return
		}

		name, args, ok := commandOf(frame)
		if !ok {
			continue // empty inline line: redis-cli sends these as keepalive no-ops
		}

		if strings.EqualFold(name, "QUIT") {
			_ = w.WriteFrame(resp.NewSimple("OK"))
			_ = w.Flush()
			return
		}

		reply := dispatch.Dispatch(s.reg, sess, s.checker, name, args)
		if err := w.WriteFrame(reply); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// commandOf extracts a command name and argument list from a parsed
// request frame: always an Array of BulkStrings on the wire, per
// spec.md §4.1. An empty array (a bare "\r\n" inline line) reports ok
// = false so the caller can skip it without dispatching anything.
func commandOf(frame resp.Frame) (name string, args [][]byte, ok bool) {
	if frame.Type != resp.Array || len(frame.Elems) == 0 {
		return "", nil, false
	}
	name = string(frame.Elems[0].Str)
	if len(frame.Elems) > 1 {
		args = make([][]byte, len(frame.Elems)-1)
		for i, e := range frame.Elems[1:] {
			args[i] = e.Str
		}
	}
	return name, args, true
}

// FormatAddr joins host and port the way config.Snapshot's
// BindAddress/Port pair is consumed by ListenAndServe.
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
