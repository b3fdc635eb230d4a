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

// ferrite-cli is a readline-based interactive RESP client: a
// chzyer/readline prompt, one line in, one reply printed out, history
// persisted across sessions. The prompt splits a line into a command
// and its arguments and round-trips them to a ferrite server over RESP.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ferritelabs/ferrite/resp"
)

const (
	newprompt  = "\033[32mferrite>\033[0m "
	contPrompt = "\033[32m...\033[0m "
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6380", "ferrite server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Println("could not connect:", err)
		return
	}
	defer conn.Close()

	r := resp.NewReader(conn)
	w := resp.NewWriter(conn)

	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".ferrite-cli-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if err := w.WriteFrame(resp.Args(parts...)); err != nil {
			fmt.Println("write error:", err)
			return
		}
		if err := w.Flush(); err != nil {
			fmt.Println("write error:", err)
			return
		}

		reply, err := r.ReadFrame()
		if err != nil {
			fmt.Println("connection closed:", err)
			return
		}
		printFrame(reply, 0)

		if strings.EqualFold(parts[0], "QUIT") {
			break
		}
	}
}

// printFrame renders a reply the way redis-cli does: simple strings
// bare, bulk strings quoted, errors prefixed, arrays indented and numbered,
// integers and doubles as their literal value.
func printFrame(f resp.Frame, depth int) {
	indent := strings.Repeat("  ", depth)
	switch f.Type {
	case resp.SimpleString:
		fmt.Println(indent + string(f.Str))
	case resp.Error:
		fmt.Println(indent + "(error) " + string(f.Str))
	case resp.Integer:
		fmt.Printf("%s(integer) %d\n", indent, f.Int)
	case resp.Double:
		fmt.Printf("%s(double) %v\n", indent, f.Flt)
	case resp.Boolean:
		fmt.Printf("%s(boolean) %v\n", indent, f.Bool)
	case resp.BulkString, resp.Verbatim:
		if f.IsNil {
			fmt.Println(indent + "(nil)")
			return
		}
		fmt.Printf("%s%q\n", indent, string(f.Str))
	case resp.Array, resp.Set, resp.Push:
		if f.IsNil {
			fmt.Println(indent + "(nil)")
			return
		}
		if len(f.Elems) == 0 {
			fmt.Println(indent + "(empty array)")
			return
		}
		for i, e := range f.Elems {
			fmt.Printf("%s%d) ", indent, i+1)
			printFrame(e, depth+1)
		}
	case resp.Map:
		for i := 0; i+1 < len(f.Elems); i += 2 {
			fmt.Printf("%s%d) ", indent, i/2+1)
			printFrame(f.Elems[i], depth+1)
			printFrame(f.Elems[i+1], depth+1)
		}
	default:
		fmt.Printf("%s%v\n", indent, f)
	}
}
