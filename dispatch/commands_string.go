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
	"strings"
	"time"

	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/expire"
	"github.com/ferritelabs/ferrite/keyspace"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/values"
)

func init() {
	Declare(&Command{Name: "PING", Arity: -1, Flags: FastFlag, Handler: cmdPing})
	Declare(&Command{Name: "ECHO", Arity: 2, Flags: FastFlag, Handler: cmdEcho})
	Declare(&Command{Name: "SELECT", Arity: 2, Flags: FastFlag | AdminFlag, Handler: cmdSelect})
	Declare(&Command{Name: "DBSIZE", Arity: 1, Flags: ReadFlag | FastFlag, Handler: cmdDBSize})
	Declare(&Command{Name: "FLUSHDB", Arity: -1, Flags: WriteFlag | AdminFlag, Handler: cmdFlushDB})
	Declare(&Command{Name: "FLUSHALL", Arity: -1, Flags: WriteFlag | AdminFlag, Handler: cmdFlushAll})
	Declare(&Command{Name: "SWAPDB", Arity: 3, Flags: WriteFlag | AdminFlag, Handler: cmdSwapDB})

	Declare(&Command{Name: "GET", Arity: 2, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdGet})
	Declare(&Command{Name: "SET", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSet})
	Declare(&Command{Name: "DEL", Arity: -2, Flags: WriteFlag, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdDel})
	Declare(&Command{Name: "EXISTS", Arity: -2, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdExists})
	Declare(&Command{Name: "INCR", Arity: 2, Flags: WriteFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdIncr})
	Declare(&Command{Name: "INCRBY", Arity: 3, Flags: WriteFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdIncrBy})
	Declare(&Command{Name: "TTL", Arity: 2, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdTTL})
	Declare(&Command{Name: "PTTL", Arity: 2, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdPTTL})
	Declare(&Command{Name: "EXPIRE", Arity: -3, Flags: WriteFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdExpire})
	Declare(&Command{Name: "PEXPIRE", Arity: -3, Flags: WriteFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdPExpire})
	Declare(&Command{Name: "PERSIST", Arity: 2, Flags: WriteFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdPersist})
}

func cmdPing(ctx *CommandContext, args [][]byte) resp.Frame {
	if len(args) == 1 {
		return resp.NewBulk(args[0])
	}
	return resp.NewSimple("PONG")
}

func cmdEcho(ctx *CommandContext, args [][]byte) resp.Frame {
	return resp.NewBulk(args[0])
}

func cmdSelect(ctx *CommandContext, args [][]byte) resp.Frame {
	n, err := strconv.Atoi(string(args[0]))
	if err != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}
	if _, err := ctx.Storage.Select(n); err != nil {
		return resp.NewError("ERR DB index is out of range")
	}
	ctx.Session.DB = n
	return resp.NewSimple("OK")
}

func cmdDBSize(ctx *CommandContext, args [][]byte) resp.Frame {
	return resp.NewInt(int64(ctx.DB.Size()))
}

func cmdFlushDB(ctx *CommandContext, args [][]byte) resp.Frame {
	_ = ctx.Storage.FlushDB(ctx.DBIndex)
	return resp.NewSimple("OK")
}

func cmdFlushAll(ctx *CommandContext, args [][]byte) resp.Frame {
	ctx.Storage.FlushAll()
	return resp.NewSimple("OK")
}

func cmdSwapDB(ctx *CommandContext, args [][]byte) resp.Frame {
	a, err1 := strconv.Atoi(string(args[0]))
	b, err2 := strconv.Atoi(string(args[1]))
	if err1 != nil || err2 != nil {
		return resp.NewError("ERR invalid first or second DB index")
	}
	if err := ctx.Storage.SwapDB(a, b); err != nil {
		return resp.NewError("ERR " + err.Error())
	}
	return resp.NewSimple("OK")
}

// lookupLive fetches key's entry, applying the lazy-expiration check
// (spec.md invariant 3): an expired entry is treated as absent even
// though CheckLazy alone does not physically remove it.
func lookupLive(ctx *CommandContext, key string) (*values.String, bool, resp.Frame) {
	entry, ok := ctx.DB.Keys.Get(key)
	if !ok {
		return nil, false, resp.Frame{}
	}
	if expire.CheckLazy(entry, ctx.Now) {
		return nil, false, resp.Frame{}
	}
	entry.Touch(ctx.Now)
	s, ok := entry.Value.(*values.String)
	if !ok {
		return nil, true, resp.NewError(values.ErrWrongType.Error())
	}
	return s, true, resp.Frame{}
}

func cmdGet(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])
	s, found, errFrame := lookupLive(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !found {
		return resp.NewNilBulk()
	}
	return resp.NewBulk(s.Bytes())
}

func cmdSet(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])
	val := args[1]

	var expiresAtNS int64
	for i := 2; i < len(args); i++ {
		opt := strings.ToUpper(string(args[i]))
		switch opt {
		case "EX", "PX":
			i++
			if i >= len(args) {
				return resp.NewError("ERR syntax error")
			}
			n, err := strconv.ParseInt(string(args[i]), 10, 64)
			if err != nil {
				return resp.NewError("ERR value is not an integer or out of range")
			}
			if opt == "EX" {
				expiresAtNS = ctx.Now.Add(time.Duration(n) * time.Second).UnixNano()
			} else {
				expiresAtNS = ctx.Now.Add(time.Duration(n) * time.Millisecond).UnixNano()
			}
		default:
			return resp.NewError("ERR syntax error")
		}
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	old, existed := ctx.DB.Keys.Get(key)
	next := values.NewString(append([]byte(nil), val...))
	entry := keyspace.NewEntry(next)
	if existed {
		entry = old.WithValue(next)
	}
	entry.ExpiresAtNS = expiresAtNS
	ctx.DB.Keys.Insert(key, entry)
	if expiresAtNS != 0 {
		ctx.DB.TTL.Set(key, expiresAtNS)
	}
	if existed && old.ExpiresAtNS != 0 {
		ctx.DB.TTL.Clear(key, old.ExpiresAtNS)
	}
	ctx.Storage.Fire(ctx.DBIndex, database.OpSet, key, old, entry)
	return resp.NewSimple("OK")
}

func cmdDel(ctx *CommandContext, args [][]byte) resp.Frame {
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = string(a)
	}
	unlock := ctx.DB.Keys.LockOrdered(keys...)
	defer unlock()

	var removed int64
	for _, key := range keys {
		entry, ok := ctx.DB.Keys.Remove(key)
		if !ok {
			continue
		}
		if entry.ExpiresAtNS != 0 {
			ctx.DB.TTL.Clear(key, entry.ExpiresAtNS)
		}
		removed++
		ctx.Storage.Fire(ctx.DBIndex, database.OpDel, key, entry, nil)
	}
	return resp.NewInt(removed)
}

func cmdExists(ctx *CommandContext, args [][]byte) resp.Frame {
	var count int64
	for _, a := range args {
		key := string(a)
		entry, ok := ctx.DB.Keys.Get(key)
		if ok && !expire.CheckLazy(entry, ctx.Now) {
			count++
		}
	}
	return resp.NewInt(count)
}

func cmdIncr(ctx *CommandContext, args [][]byte) resp.Frame {
	return incrBy(ctx, string(args[0]), 1)
}

func cmdIncrBy(ctx *CommandContext, args [][]byte) resp.Frame {
	delta, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}
	return incrBy(ctx, string(args[0]), delta)
}

func incrBy(ctx *CommandContext, key string, delta int64) resp.Frame {
	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	old, existed := ctx.DB.Keys.Get(key)
	var base *values.String
	if existed {
		if expire.CheckLazy(old, ctx.Now) {
			existed = false
		} else {
			s, ok := old.Value.(*values.String)
			if !ok {
				return resp.NewError(values.ErrWrongType.Error())
			}
			base = s
		}
	}
	if !existed {
		base = values.NewString([]byte("0"))
	}
	n, err := base.IncrBy(delta)
	if err != nil {
		return resp.NewError("ERR " + err.Error())
	}
	var next *keyspace.Entry
	if existed {
		next = old.WithValue(base)
	} else {
		next = keyspace.NewEntry(base)
	}
	ctx.DB.Keys.Insert(key, next)
	ctx.Storage.Fire(ctx.DBIndex, database.OpSet, key, old, next)
	return resp.NewInt(n)
}

func cmdTTL(ctx *CommandContext, args [][]byte) resp.Frame {
	return ttlReply(ctx, string(args[0]), time.Second)
}

func cmdPTTL(ctx *CommandContext, args [][]byte) resp.Frame {
	return ttlReply(ctx, string(args[0]), time.Millisecond)
}

func ttlReply(ctx *CommandContext, key string, unit time.Duration) resp.Frame {
	entry, ok := ctx.DB.Keys.Get(key)
	if !ok || expire.CheckLazy(entry, ctx.Now) {
		return resp.NewInt(-2)
	}
	if entry.ExpiresAtNS == 0 {
		return resp.NewInt(-1)
	}
	remaining := time.Duration(entry.ExpiresAtNS - ctx.Now.UnixNano())
	if remaining < 0 {
		remaining = 0
	}
	return resp.NewInt(int64(remaining / unit))
}

func cmdExpire(ctx *CommandContext, args [][]byte) resp.Frame {
	return expireBy(ctx, string(args[0]), args[1:], time.Second)
}

func cmdPExpire(ctx *CommandContext, args [][]byte) resp.Frame {
	return expireBy(ctx, string(args[0]), args[1:], time.Millisecond)
}

func expireBy(ctx *CommandContext, key string, rest [][]byte, unit time.Duration) resp.Frame {
	if len(rest) < 1 {
		return resp.NewError("ERR wrong number of arguments")
	}
	n, err := strconv.ParseInt(string(rest[0]), 10, 64)
	if err != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}
	pred := expire.PredicateNone
	if len(rest) > 1 {
		switch strings.ToUpper(string(rest[1])) {
		case "NX":
			pred = expire.PredicateNX
		case "XX":
			pred = expire.PredicateXX
		case "GT":
			pred = expire.PredicateGT
		case "LT":
			pred = expire.PredicateLT
		default:
			return resp.NewError("ERR Unsupported option " + string(rest[1]))
		}
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	entry, ok := ctx.DB.Keys.Get(key)
	if !ok || expire.CheckLazy(entry, ctx.Now) {
		return resp.NewInt(0)
	}
	deadline := ctx.Now.Add(time.Duration(n) * unit).UnixNano()
	if !expire.ApplyExpire(ctx.DB.TTL, entry, key, deadline, pred) {
		return resp.NewInt(0)
	}
	ctx.Storage.Fire(ctx.DBIndex, database.OpExpire, key, entry, entry)
	return resp.NewInt(1)
}

func cmdPersist(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])
	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	entry, ok := ctx.DB.Keys.Get(key)
	if !ok || expire.CheckLazy(entry, ctx.Now) {
		return resp.NewInt(0)
	}
	if !expire.Persist(ctx.DB.TTL, entry, key) {
		return resp.NewInt(0)
	}
	return resp.NewInt(1)
}
