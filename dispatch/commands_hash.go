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
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/keyspace"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/values"
)

func init() {
	Declare(&Command{Name: "HSET", Arity: -4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHSet})
	Declare(&Command{Name: "HSETNX", Arity: 4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHSetNX})
	Declare(&Command{Name: "HGET", Arity: 3, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHGet})
	Declare(&Command{Name: "HDEL", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHDel})
	Declare(&Command{Name: "HGETALL", Arity: 2, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHGetAll})
	Declare(&Command{Name: "HKEYS", Arity: 2, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHKeys})
	Declare(&Command{Name: "HVALS", Arity: 2, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHVals})
	Declare(&Command{Name: "HLEN", Arity: 2, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHLen})
	Declare(&Command{Name: "HEXISTS", Arity: 3, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHExists})
	Declare(&Command{Name: "HINCRBY", Arity: 4, Flags: WriteFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHIncrBy})
	Declare(&Command{Name: "HINCRBYFLOAT", Arity: 4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHIncrByFloat})
	Declare(&Command{Name: "HSCAN", Arity: -3, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHScan})
}

func fetchHash(ctx *CommandContext, key string) (h *values.Hash, entry *keyspace.Entry, found bool, errFrame resp.Frame) {
	e, ok := liveEntry(ctx, key)
	if !ok {
		return nil, nil, false, resp.Frame{}
	}
	hv, ok := e.Value.(*values.Hash)
	if !ok {
		return nil, nil, true, resp.NewError(values.ErrWrongType.Error())
	}
	return hv, e, true, resp.Frame{}
}

func saveOrDeleteHash(ctx *CommandContext, key string, h *values.Hash, old *keyspace.Entry, existed bool) {
	if h.Len() == 0 {
		if existed {
			deleteEntry(ctx, key, old)
		}
		return
	}
	var next *keyspace.Entry
	if existed {
		next = old.WithValue(h)
	} else {
		next = keyspace.NewEntry(h)
	}
	ctx.DB.Keys.Insert(key, next)
	ctx.Storage.Fire(ctx.DBIndex, database.OpSet, key, old, next)
}

func cmdHSet(ctx *CommandContext, args [][]byte) resp.Frame {
	if len(args)%2 != 1 {
		return resp.NewError("ERR wrong number of arguments for 'hset' command")
	}
	key := string(args[0])

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	h, entry, existed, errFrame := fetchHash(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		h = values.NewHash()
	}
	var created int64
	for i := 1; i+1 < len(args); i += 2 {
		if h.Set(string(args[i]), args[i+1]) {
			created++
		}
	}
	saveOrDeleteHash(ctx, key, h, entry, existed)
	return resp.NewInt(created)
}

func cmdHSetNX(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	h, entry, existed, errFrame := fetchHash(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		h = values.NewHash()
	}
	if !h.SetNX(string(args[1]), args[2]) {
		return resp.NewInt(0)
	}
	saveOrDeleteHash(ctx, key, h, entry, existed)
	return resp.NewInt(1)
}

func cmdHGet(ctx *CommandContext, args [][]byte) resp.Frame {
	h, _, existed, errFrame := fetchHash(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewNilBulk()
	}
	v, ok := h.Get(string(args[1]))
	if !ok {
		return resp.NewNilBulk()
	}
	return resp.NewBulk(v)
}

func cmdHDel(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	h, entry, existed, errFrame := fetchHash(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}
	fields := make([]string, len(args)-1)
	for i, a := range args[1:] {
		fields[i] = string(a)
	}
	n := h.Del(fields...)
	saveOrDeleteHash(ctx, key, h, entry, true)
	return resp.NewInt(int64(n))
}

func cmdHGetAll(ctx *CommandContext, args [][]byte) resp.Frame {
	h, _, existed, errFrame := fetchHash(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.Frame{Type: resp.Map}
	}
	keys, vals := h.All()
	elems := make([]resp.Frame, 0, len(keys)*2)
	for i := range keys {
		elems = append(elems, resp.NewBulk([]byte(keys[i])), resp.NewBulk(vals[i]))
	}
	return resp.Frame{Type: resp.Map, Elems: elems}
}

func cmdHKeys(ctx *CommandContext, args [][]byte) resp.Frame {
	h, _, existed, errFrame := fetchHash(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewArray()
	}
	keys := h.Keys()
	elems := make([]resp.Frame, len(keys))
	for i, k := range keys {
		elems[i] = resp.NewBulk([]byte(k))
	}
	return resp.NewArray(elems...)
}

func cmdHVals(ctx *CommandContext, args [][]byte) resp.Frame {
	h, _, existed, errFrame := fetchHash(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewArray()
	}
	vals := h.Values()
	elems := make([]resp.Frame, len(vals))
	for i, v := range vals {
		elems[i] = resp.NewBulk(v)
	}
	return resp.NewArray(elems...)
}

func cmdHLen(ctx *CommandContext, args [][]byte) resp.Frame {
	h, _, existed, errFrame := fetchHash(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}
	return resp.NewInt(int64(h.Len()))
}

func cmdHExists(ctx *CommandContext, args [][]byte) resp.Frame {
	h, _, existed, errFrame := fetchHash(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed || !h.Exists(string(args[1])) {
		return resp.NewInt(0)
	}
	return resp.NewInt(1)
}

func cmdHIncrBy(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])
	delta, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	h, entry, existed, errFrame := fetchHash(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		h = values.NewHash()
	}
	n, err := h.IncrBy(string(args[1]), delta)
	if err != nil {
		return resp.NewError("ERR " + err.Error())
	}
	saveOrDeleteHash(ctx, key, h, entry, existed)
	return resp.NewInt(n)
}

func cmdHIncrByFloat(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])
	delta, err := decimal.NewFromString(string(args[2]))
	if err != nil {
		return resp.NewError("ERR value is not a valid float")
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	h, entry, existed, errFrame := fetchHash(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		h = values.NewHash()
	}
	n, err := h.IncrByFloat(string(args[1]), delta)
	if err != nil {
		return resp.NewError("ERR " + err.Error())
	}
	saveOrDeleteHash(ctx, key, h, entry, existed)
	return resp.NewBulk([]byte(n.String()))
}

func cmdHScan(ctx *CommandContext, args [][]byte) resp.Frame {
	h, _, existed, errFrame := fetchHash(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	cursor, count, pattern, errFrame := parseScanArgs(args[1:])
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewArray(resp.NewBulk([]byte("0")), resp.NewArray())
	}
	fields, next := h.Scan(values.Cursor(cursor), count)
	elems := make([]resp.Frame, 0, len(fields)*2)
	for _, f := range fields {
		if !matchesPattern(pattern, f) {
			continue
		}
		v, _ := h.Get(f)
		elems = append(elems, resp.NewBulk([]byte(f)), resp.NewBulk(v))
	}
	return resp.NewArray(resp.NewBulk([]byte(strconv.FormatUint(uint64(next), 10))), resp.NewArray(elems...))
}
