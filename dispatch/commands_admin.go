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

package dispatch

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ferritelabs/ferrite/resp"
)

func init() {
	Declare(&Command{Name: "COMMAND", Arity: -1, Flags: AdminFlag, Handler: cmdCommand})
	Declare(&Command{Name: "INFO", Arity: -1, Flags: AdminFlag, Handler: cmdInfo})
	Declare(&Command{Name: "CLIENT", Arity: -2, Flags: AdminFlag, Handler: cmdClient})
	Declare(&Command{Name: "DEBUG", Arity: -2, Flags: AdminFlag, Handler: cmdDebug})
}

// cmdCommand serves COMMAND, COMMAND COUNT, COMMAND DOCS and COMMAND
// INFO from the same static table Declare populates — there is
// nothing to query that isn't already sitting in a *Command.
func cmdCommand(ctx *CommandContext, args [][]byte) resp.Frame {
	if len(args) == 0 {
		return commandList(All())
	}
	switch strings.ToUpper(string(args[0])) {
	case "COUNT":
		return resp.NewInt(int64(len(All())))
	case "DOCS":
		elems := make([]resp.Frame, 0, len(args[1:])*2)
		for _, raw := range args[1:] {
			cmd, ok := Lookup(string(raw))
			if !ok {
				continue
			}
			elems = append(elems, resp.NewBulk(raw), commandDoc(cmd))
		}
		return resp.NewArray(elems...)
	case "INFO":
		elems := make([]resp.Frame, 0, len(args[1:]))
		for _, raw := range args[1:] {
			cmd, ok := Lookup(string(raw))
			if !ok {
				elems = append(elems, resp.NewNilArray())
				continue
			}
			elems = append(elems, commandEntry(cmd))
		}
		return resp.NewArray(elems...)
	default:
		return resp.NewError("ERR unknown COMMAND subcommand")
	}
}

func commandList(cmds []*Command) resp.Frame {
	elems := make([]resp.Frame, len(cmds))
	for i, cmd := range cmds {
		elems[i] = commandEntry(cmd)
	}
	return resp.NewArray(elems...)
}

// commandEntry renders one Command the way COMMAND/COMMAND INFO
// reports it: [name, arity, flags..., first_key, last_key, step].
func commandEntry(cmd *Command) resp.Frame {
	flags := make([]resp.Frame, 0, 6)
	if cmd.Flags&ReadFlag != 0 {
		flags = append(flags, resp.NewSimple("readonly"))
	}
	if cmd.Flags&WriteFlag != 0 {
		flags = append(flags, resp.NewSimple("write"))
	}
	if cmd.Flags&FastFlag != 0 {
		flags = append(flags, resp.NewSimple("fast"))
	}
	if cmd.Flags&AdminFlag != 0 {
		flags = append(flags, resp.NewSimple("admin"))
	}
	if cmd.Flags&PubSubFlag != 0 {
		flags = append(flags, resp.NewSimple("pubsub"))
	}
	if cmd.Flags&NoScriptFlag != 0 {
		flags = append(flags, resp.NewSimple("noscript"))
	}
	return resp.NewArray(
		resp.NewBulk([]byte(normalizeName(cmd.Name))),
		resp.NewInt(int64(cmd.Arity)),
		resp.NewArray(flags...),
		resp.NewInt(int64(cmd.FirstKey)),
		resp.NewInt(int64(cmd.LastKey)),
		resp.NewInt(int64(cmd.KeyStep)),
	)
}

func commandDoc(cmd *Command) resp.Frame {
	return resp.NewArray(
		resp.NewBulk([]byte("summary")), resp.NewBulk([]byte(cmd.Desc)),
		resp.NewBulk([]byte("arity")), resp.NewInt(int64(cmd.Arity)),
	)
}

// cmdInfo renders a handful of INFO sections in the same "# Section\r\n
// key:value\r\n" text block real Redis uses. The monitor package's
// dashboard does not read this text; it builds its own JSON.
func cmdInfo(ctx *CommandContext, args [][]byte) resp.Frame {
	var b strings.Builder
	fmt.Fprintf(&b, "# Server\r\nferrite_version:0.1.0\r\ngo_version:%s\r\nprocess_id:%d\r\n\r\n",
		runtime.Version(), processID)
	fmt.Fprintf(&b, "# Clients\r\nconnected_clients:1\r\n\r\n")
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	fmt.Fprintf(&b, "# Memory\r\nused_memory:%d\r\nused_memory_rss:%d\r\n\r\n", mem.HeapAlloc, mem.Sys)
	fmt.Fprintf(&b, "# Keyspace\r\n")
	for i := 0; i < ctx.Storage.Count(); i++ {
		db, err := ctx.Storage.Select(i)
		if err != nil {
			continue
		}
		if n := db.Size(); n > 0 {
			fmt.Fprintf(&b, "db%d:keys=%d\r\n", i, n)
		}
	}
	return resp.NewBulk([]byte(b.String()))
}

// cmdClient implements the CLIENT subcommands a session's own
// connection can answer without reaching into other connections'
// state (the per-connection client list spec.md §13 describes as
// ambient is package server's concern, not dispatch's).
func cmdClient(ctx *CommandContext, args [][]byte) resp.Frame {
	switch strings.ToUpper(string(args[0])) {
	case "GETNAME":
		return resp.NewBulk([]byte(ctx.Session.Name))
	case "SETNAME":
		if len(args) != 2 {
			return resp.NewError("ERR wrong number of arguments for 'client|setname' command")
		}
		ctx.Session.Name = string(args[1])
		return resp.NewSimple("OK")
	case "ID":
		return resp.NewInt(int64(ctx.Session.ID))
	case "LIST":
		return resp.NewBulk([]byte(fmt.Sprintf("id=%d addr=? name=%s db=%d\n", ctx.Session.ID, ctx.Session.Name, ctx.DBIndex)))
	case "NO-EVICT", "NO-TOUCH":
		return resp.NewSimple("OK")
	default:
		return resp.NewError("ERR unknown CLIENT subcommand")
	}
}

// cmdDebug implements the three DEBUG subcommands spec.md §5 names.
// ferrite keeps active expiry sampler-driven per database rather than
// behind a single global switch, so SET-ACTIVE-EXPIRE is accepted and
// acknowledged without side effects beyond the reply.
func cmdDebug(ctx *CommandContext, args [][]byte) resp.Frame {
	switch strings.ToUpper(string(args[0])) {
	case "SLEEP":
		if len(args) != 2 {
			return resp.NewError("ERR wrong number of arguments for 'debug|sleep' command")
		}
		secs, err := strconv.ParseFloat(string(args[1]), 64)
		if err != nil {
			return resp.NewError("ERR value is not a valid float")
		}
		time.Sleep(time.Duration(secs * float64(time.Second)))
		return resp.NewSimple("OK")
	case "JMAP":
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		return resp.NewBulk([]byte(fmt.Sprintf(
			"heap_alloc:%d heap_objects:%d num_goroutine:%d",
			mem.HeapAlloc, mem.HeapObjects, runtime.NumGoroutine())))
	case "SET-ACTIVE-EXPIRE":
		return resp.NewSimple("OK")
	default:
		return resp.NewError("ERR unknown DEBUG subcommand")
	}
}

var processID = os.Getpid()
