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
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/keyspace"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/values"
)

func init() {
	Declare(&Command{Name: "LPUSH", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdLPush})
	Declare(&Command{Name: "RPUSH", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdRPush})
	Declare(&Command{Name: "LPUSHX", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdLPushX})
	Declare(&Command{Name: "RPUSHX", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdRPushX})
	Declare(&Command{Name: "LPOP", Arity: -2, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdLPop})
	Declare(&Command{Name: "RPOP", Arity: -2, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdRPop})
	Declare(&Command{Name: "LLEN", Arity: 2, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdLLen})
	Declare(&Command{Name: "LRANGE", Arity: 4, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdLRange})
	Declare(&Command{Name: "LINDEX", Arity: 3, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdLIndex})
	Declare(&Command{Name: "LSET", Arity: 4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdLSet})
	Declare(&Command{Name: "LINSERT", Arity: 5, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdLInsert})
	Declare(&Command{Name: "LREM", Arity: 4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdLRem})
	Declare(&Command{Name: "LTRIM", Arity: 4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdLTrim})
	Declare(&Command{Name: "RPOPLPUSH", Arity: 3, Flags: WriteFlag, FirstKey: 1, LastKey: 2, KeyStep: 1, Handler: cmdRPopLPush})
	Declare(&Command{Name: "LMOVE", Arity: 5, Flags: WriteFlag, FirstKey: 1, LastKey: 2, KeyStep: 1, Handler: cmdLMove})
	Declare(&Command{Name: "BLPOP", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: -2, KeyStep: 1, Handler: cmdBLPop})
	Declare(&Command{Name: "BRPOP", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: -2, KeyStep: 1, Handler: cmdBRPop})
	Declare(&Command{Name: "BLMOVE", Arity: 6, Flags: WriteFlag, FirstKey: 1, LastKey: 2, KeyStep: 1, Handler: cmdBLMove})
}

// listWaiters coordinates BLPOP/BRPOP/BLMOVE across every connection:
// one table for the whole process, exactly like epoch.Global is one
// epoch manager for the whole process rather than something threaded
// through CommandContext.
var listWaiters = values.NewWaitTable()

func fetchList(ctx *CommandContext, key string) (list *values.List, entry *keyspace.Entry, found bool, errFrame resp.Frame) {
	e, ok := liveEntry(ctx, key)
	if !ok {
		return nil, nil, false, resp.Frame{}
	}
	l, ok := e.Value.(*values.List)
	if !ok {
		return nil, nil, true, resp.NewError(values.ErrWrongType.Error())
	}
	return l, e, true, resp.Frame{}
}

// saveOrDeleteList publishes list's new state, deleting the key
// outright once it empties (LPOP/LREM/LTRIM can all do this), matching
// Redis's own "an empty list is not a key" rule.
func saveOrDeleteList(ctx *CommandContext, key string, list *values.List, old *keyspace.Entry, existed bool) {
	if list.Len() == 0 {
		if existed {
			deleteEntry(ctx, key, old)
		}
		return
	}
	var next *keyspace.Entry
	if existed {
		next = old.WithValue(list)
	} else {
		next = keyspace.NewEntry(list)
	}
	ctx.DB.Keys.Insert(key, next)
	ctx.Storage.Fire(ctx.DBIndex, database.OpSet, key, old, next)
}

func cmdLPush(ctx *CommandContext, args [][]byte) resp.Frame  { return push(ctx, args, true, true) }
func cmdRPush(ctx *CommandContext, args [][]byte) resp.Frame  { return push(ctx, args, false, true) }
func cmdLPushX(ctx *CommandContext, args [][]byte) resp.Frame { return push(ctx, args, true, false) }
func cmdRPushX(ctx *CommandContext, args [][]byte) resp.Frame { return push(ctx, args, false, false) }

func push(ctx *CommandContext, args [][]byte, left, createIfMissing bool) resp.Frame {
	key := string(args[0])
	vals := args[1:]

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	list, entry, existed, errFrame := fetchList(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		if !createIfMissing {
			return resp.NewInt(0)
		}
		list = values.NewList()
	}
	var n int
	if left {
		n = list.LPush(vals...)
	} else {
		n = list.RPush(vals...)
	}
	saveOrDeleteList(ctx, key, list, entry, existed)
	listWaiters.Notify(ctx.DBIndex, key)
	return resp.NewInt(int64(n))
}

func cmdLPop(ctx *CommandContext, args [][]byte) resp.Frame { return pop(ctx, args, true) }
func cmdRPop(ctx *CommandContext, args [][]byte) resp.Frame { return pop(ctx, args, false) }

func pop(ctx *CommandContext, args [][]byte, left bool) resp.Frame {
	key := string(args[0])
	count := -1
	if len(args) > 1 {
		n, err := strconv.Atoi(string(args[1]))
		if err != nil || n < 0 {
			return resp.NewError("ERR value is out of range, must be positive")
		}
		count = n
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	list, entry, existed, errFrame := fetchList(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		if count < 0 {
			return resp.NewNilBulk()
		}
		return resp.NewNilArray()
	}

	n := count
	if n < 0 {
		n = 1
	}
	var popped [][]byte
	if left {
		popped = list.LPop(n)
	} else {
		popped = list.RPop(n)
	}
	saveOrDeleteList(ctx, key, list, entry, true)

	if count < 0 {
		if len(popped) == 0 {
			return resp.NewNilBulk()
		}
		return resp.NewBulk(popped[0])
	}
	if len(popped) == 0 {
		return resp.NewNilArray()
	}
	elems := make([]resp.Frame, len(popped))
	for i, p := range popped {
		elems[i] = resp.NewBulk(p)
	}
	return resp.NewArray(elems...)
}

func cmdLLen(ctx *CommandContext, args [][]byte) resp.Frame {
	list, _, existed, errFrame := fetchList(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}
	return resp.NewInt(int64(list.Len()))
}

func cmdLRange(ctx *CommandContext, args [][]byte) resp.Frame {
	list, _, existed, errFrame := fetchList(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewArray()
	}
	start, err1 := strconv.Atoi(string(args[1]))
	stop, err2 := strconv.Atoi(string(args[2]))
	if err1 != nil || err2 != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}
	items := list.LRange(start, stop)
	elems := make([]resp.Frame, len(items))
	for i, it := range items {
		elems[i] = resp.NewBulk(it)
	}
	return resp.NewArray(elems...)
}

func cmdLIndex(ctx *CommandContext, args [][]byte) resp.Frame {
	list, _, existed, errFrame := fetchList(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewNilBulk()
	}
	idx, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}
	v, ok := list.LIndex(idx)
	if !ok {
		return resp.NewNilBulk()
	}
	return resp.NewBulk(v)
}

func cmdLSet(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])
	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	list, entry, existed, errFrame := fetchList(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewError("ERR no such key")
	}
	idx, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}
	if !list.LSet(idx, args[2]) {
		return resp.NewError("ERR index out of range")
	}
	saveOrDeleteList(ctx, key, list, entry, true)
	return resp.NewSimple("OK")
}

func cmdLInsert(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])
	where := strings.ToUpper(string(args[1]))
	if where != "BEFORE" && where != "AFTER" {
		return resp.NewError("ERR syntax error")
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	list, entry, existed, errFrame := fetchList(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}
	n := list.LInsert(where == "BEFORE", args[2], args[3])
	if n < 0 {
		return resp.NewInt(-1)
	}
	saveOrDeleteList(ctx, key, list, entry, true)
	return resp.NewInt(int64(n))
}

func cmdLRem(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])
	count, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	list, entry, existed, errFrame := fetchList(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}
	removed := list.LRem(count, args[2])
	saveOrDeleteList(ctx, key, list, entry, true)
	return resp.NewInt(int64(removed))
}

func cmdLTrim(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])
	start, err1 := strconv.Atoi(string(args[1]))
	stop, err2 := strconv.Atoi(string(args[2]))
	if err1 != nil || err2 != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	list, entry, existed, errFrame := fetchList(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewSimple("OK")
	}
	list.LTrim(start, stop)
	saveOrDeleteList(ctx, key, list, entry, true)
	return resp.NewSimple("OK")
}

func cmdRPopLPush(ctx *CommandContext, args [][]byte) resp.Frame {
	return moveOne(ctx, string(args[0]), string(args[1]), false, true)
}

func cmdLMove(ctx *CommandContext, args [][]byte) resp.Frame {
	fromDir := strings.ToUpper(string(args[2]))
	toDir := strings.ToUpper(string(args[3]))
	if (fromDir != "LEFT" && fromDir != "RIGHT") || (toDir != "LEFT" && toDir != "RIGHT") {
		return resp.NewError("ERR syntax error")
	}
	return moveOne(ctx, string(args[0]), string(args[1]), fromDir == "LEFT", toDir == "LEFT")
}

// moveOne pops one element off src and pushes it onto dst (which may
// equal src, the single-list rotation case), returning the moved value
// or a nil bulk if src was empty or absent.
func moveOne(ctx *CommandContext, src, dst string, fromLeft, toLeft bool) resp.Frame {
	unlock := ctx.DB.Keys.LockOrdered(src, dst)
	defer unlock()

	srcList, srcEntry, srcExisted, errFrame := fetchList(ctx, src)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !srcExisted || srcList.Len() == 0 {
		return resp.NewNilBulk()
	}

	dstList, dstEntry, dstExisted, errFrame := fetchList(ctx, dst)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !dstExisted {
		dstList = values.NewList()
	}

	var popped []byte
	if fromLeft {
		popped = srcList.LPop(1)[0]
	} else {
		popped = srcList.RPop(1)[0]
	}
	if toLeft {
		dstList.LPush(popped)
	} else {
		dstList.RPush(popped)
	}

	saveOrDeleteList(ctx, src, srcList, srcEntry, srcExisted)
	saveOrDeleteList(ctx, dst, dstList, dstEntry, dstExisted)
	listWaiters.Notify(ctx.DBIndex, dst)
	return resp.NewBulk(popped)
}

func cmdBLPop(ctx *CommandContext, args [][]byte) resp.Frame { return blockingPop(ctx, args, true) }
func cmdBRPop(ctx *CommandContext, args [][]byte) resp.Frame { return blockingPop(ctx, args, false) }

// blockingPop tries every key in order, immediately returning the
// first available element; if none are ready, it registers a waiter
// on each key and parks until one is notified or timeout elapses,
// then retries the whole scan (the woken key might have been taken by
// a racing client in the meantime).
func blockingPop(ctx *CommandContext, args [][]byte, left bool) resp.Frame {
	keys := make([]string, len(args)-1)
	for i := range keys {
		keys[i] = string(args[i])
	}
	deadline, errFrame := parseTimeout(ctx, args[len(args)-1])
	if errFrame.Type == resp.Error {
		return errFrame
	}

	for {
		for _, key := range keys {
			reply, done := tryPopOne(ctx, key, left)
			if done {
				return reply
			}
		}
		chans := make([]chan struct{}, len(keys))
		for i, key := range keys {
			chans[i] = listWaiters.Register(ctx.DBIndex, key)
		}
		woke := waitAny(chans, deadline)
		for i, key := range keys {
			listWaiters.Cancel(ctx.DBIndex, key, chans[i])
		}
		if !woke {
			return resp.NewNilArray()
		}
	}
}

func tryPopOne(ctx *CommandContext, key string, left bool) (resp.Frame, bool) {
	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	list, entry, existed, errFrame := fetchList(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame, true
	}
	if !existed || list.Len() == 0 {
		return resp.Frame{}, false
	}
	var popped []byte
	if left {
		popped = list.LPop(1)[0]
	} else {
		popped = list.RPop(1)[0]
	}
	saveOrDeleteList(ctx, key, list, entry, true)
	return resp.NewArray(resp.NewBulk([]byte(key)), resp.NewBulk(popped)), true
}

func cmdBLMove(ctx *CommandContext, args [][]byte) resp.Frame {
	src := string(args[0])
	dst := string(args[1])
	fromDir := strings.ToUpper(string(args[2]))
	toDir := strings.ToUpper(string(args[3]))
	if (fromDir != "LEFT" && fromDir != "RIGHT") || (toDir != "LEFT" && toDir != "RIGHT") {
		return resp.NewError("ERR syntax error")
	}
	deadline, errFrame := parseTimeout(ctx, args[4])
	if errFrame.Type == resp.Error {
		return errFrame
	}
	fromLeft, toLeft := fromDir == "LEFT", toDir == "LEFT"

	for {
		reply := moveOne(ctx, src, dst, fromLeft, toLeft)
		if reply.Type == resp.Error || !reply.IsNil {
			return reply
		}
		ch := listWaiters.Register(ctx.DBIndex, src)
		woke := waitAny([]chan struct{}{ch}, deadline)
		listWaiters.Cancel(ctx.DBIndex, src, ch)
		if !woke {
			return resp.NewNilBulk()
		}
	}
}

// parseTimeout decodes a blocking command's trailing timeout argument:
// seconds as a non-negative float, zero meaning "block forever".
func parseTimeout(ctx *CommandContext, raw []byte) (time.Time, resp.Frame) {
	secs, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || secs < 0 {
		return time.Time{}, resp.NewError("ERR timeout is not a float or out of range")
	}
	if secs == 0 {
		return time.Time{}, resp.Frame{}
	}
	return ctx.Now.Add(time.Duration(secs * float64(time.Second))), resp.Frame{}
}

// waitAny blocks until one of chans is closed or, if deadline is
// non-zero, until it passes; it reports whether a channel woke first.
func waitAny(chans []chan struct{}, deadline time.Time) bool {
	cases := make([]reflect.SelectCase, 0, len(chans)+1)
	for _, c := range chans {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(c)})
	}
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(timer.C)})
	}
	chosen, _, _ := reflect.Select(cases)
	return chosen < len(chans)
}
