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
	"path"
	"strconv"
	"strings"

	"github.com/ferritelabs/ferrite/keyspace"
	"github.com/ferritelabs/ferrite/resp"
)

func init() {
	Declare(&Command{Name: "SCAN", Arity: -2, Flags: ReadFlag, Handler: cmdScan})
}

const defaultScanCount = 10

// parseScanArgs decodes the MATCH/COUNT option pairs shared by
// SCAN/HSCAN/SSCAN/ZSCAN, following the cursor argument every one of
// them takes first.
func parseScanArgs(rest [][]byte) (cursor uint64, count int, pattern string, errFrame resp.Frame) {
	count = defaultScanCount
	if len(rest) == 0 {
		return 0, count, "", resp.NewError("ERR wrong number of arguments for 'scan' command")
	}
	c, err := strconv.ParseUint(string(rest[0]), 10, 64)
	if err != nil {
		return 0, count, "", resp.NewError("ERR invalid cursor")
	}
	cursor = c
	for i := 1; i < len(rest); i++ {
		opt := strings.ToUpper(string(rest[i]))
		switch opt {
		case "MATCH":
			i++
			if i >= len(rest) {
				return 0, 0, "", resp.NewError("ERR syntax error")
			}
			pattern = string(rest[i])
		case "COUNT":
			i++
			if i >= len(rest) {
				return 0, 0, "", resp.NewError("ERR syntax error")
			}
			n, err := strconv.Atoi(string(rest[i]))
			if err != nil || n <= 0 {
				return 0, 0, "", resp.NewError("ERR value is not an integer or out of range")
			}
			count = n
		default:
			return 0, 0, "", resp.NewError("ERR syntax error")
		}
	}
	return cursor, count, pattern, resp.Frame{}
}

// matchesPattern reports whether s satisfies a SCAN-family MATCH glob;
// an empty pattern matches everything. path.Match implements the same
// */?/[...] glob vocabulary Redis's own SCAN MATCH documents, close
// enough that no dedicated glob package is worth a dependency for it.
func matchesPattern(pattern, s string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, s)
	return err == nil && ok
}

func cmdScan(ctx *CommandContext, args [][]byte) resp.Frame {
	cursor, count, pattern, errFrame := parseScanArgs(args)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	keys, next := ctx.DB.Keys.Scan(keyspace.Cursor(cursor), count)
	var elems []resp.Frame
	for _, k := range keys {
		if matchesPattern(pattern, k) {
			elems = append(elems, resp.NewBulk([]byte(k)))
		}
	}
	return resp.NewArray(resp.NewBulk([]byte(strconv.FormatUint(uint64(next), 10))), resp.NewArray(elems...))
}
