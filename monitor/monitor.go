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

// Package monitor serves a small HTTP+WebSocket admin surface: GET
// /info renders the same sections dispatch's INFO command does, as
// JSON, and GET /monitor upgrades to a WebSocket that fans out every
// keyspace mutation live, Redis MONITOR-style. Neither endpoint is
// part of the RESP wire protocol — this is the one concrete consumer
// the server ships for database.Registry's MutationHook fan-out.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/keyspace"
)

// Server is an http.Handler serving /info and /monitor against reg.
type Server struct {
	reg       *database.Registry
	startedAt time.Time

	mu        sync.Mutex
	listeners map[*monitorConn]struct{}
}

// New wires a Server to reg, registering a MutationHook so every
// committed write is fanned out to connected /monitor clients.
func New(reg *database.Registry) *Server {
	s := &Server{
		reg:       reg,
		startedAt: time.Now(),
		listeners: make(map[*monitorConn]struct{}),
	}
	reg.AddHook(s.broadcast)
	return s
}

// ServeHTTP dispatches to /info or /monitor; any other path is 404.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/info":
		s.serveInfo(w, r)
	case "/monitor":
		s.serveMonitor(w, r)
	default:
		http.NotFound(w, r)
	}
}

type infoPayload struct {
	Server   infoServer `json:"server"`
	Clients  int        `json:"connected_monitors"`
	Memory   infoMemory `json:"memory"`
	Keyspace []dbInfo   `json:"keyspace"`
}

type infoServer struct {
	GoVersion    string `json:"go_version"`
	UptimeSecond int64  `json:"uptime_seconds"`
	NumGoroutine int    `json:"goroutines"`
}

type infoMemory struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	HeapObjects     uint64 `json:"heap_objects"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
}

type dbInfo struct {
	Index int `json:"db"`
	Keys  int `json:"keys"`
}

func (s *Server) serveInfo(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	payload := infoPayload{
		Server: infoServer{
			GoVersion:    runtime.Version(),
			UptimeSecond: int64(time.Since(s.startedAt).Seconds()),
			NumGoroutine: runtime.NumGoroutine(),
		},
		Clients: s.listenerCount(),
		Memory: infoMemory{
			AllocBytes:      mem.Alloc,
			HeapObjects:     mem.HeapObjects,
			TotalAllocBytes: mem.TotalAlloc,
		},
	}
	for i := 0; i < s.reg.Count(); i++ {
		db, err := s.reg.Select(i)
		if err != nil {
			continue
		}
		if n := db.Size(); n > 0 {
			payload.Keyspace = append(payload.Keyspace, dbInfo{Index: i, Keys: n})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("monitor: failed to encode /info response", "error", err)
	}
}

func (s *Server) listenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// monitorConn is one connected /monitor WebSocket client; writes are
// serialized behind mu, the same way scm/network.go's websocket
// bridge guards concurrent Apply-triggered sends with its own mutex.
type monitorConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *monitorConn) send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(line))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) serveMonitor(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("monitor: websocket upgrade failed", "error", err)
		return
	}
	conn := &monitorConn{ws: ws}

	s.mu.Lock()
	s.listeners[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.listeners, conn)
		s.mu.Unlock()
		ws.Close()
	}()

	// Drain and discard anything the client sends; /monitor is
	// output-only, but a read loop is still required to notice the
	// connection closing (gorilla/websocket only surfaces a close via
	// a failed read).
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// broadcast is the database.MutationHook fanned out to every connected
// /monitor client, formatted the way Redis's own MONITOR command
// renders a command line: timestamp, db index, operation, key.
func (s *Server) broadcast(db int, op database.Op, key string, before, after *keyspace.Entry) {
	s.mu.Lock()
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	conns := make([]*monitorConn, 0, len(s.listeners))
	for c := range s.listeners {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	line := fmt.Sprintf("%d [%d] %s %q", time.Now().UnixNano(), db, op, key)
	for _, c := range conns {
		if err := c.send(line); err != nil {
			s.mu.Lock()
			delete(s.listeners, c)
			s.mu.Unlock()
		}
	}
}
