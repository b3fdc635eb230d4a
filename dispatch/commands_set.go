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

	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/keyspace"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/values"
)

func init() {
	Declare(&Command{Name: "SADD", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSAdd})
	Declare(&Command{Name: "SREM", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSRem})
	Declare(&Command{Name: "SMEMBERS", Arity: 2, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSMembers})
	Declare(&Command{Name: "SCARD", Arity: 2, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSCard})
	Declare(&Command{Name: "SISMEMBER", Arity: 3, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSIsMember})
	Declare(&Command{Name: "SMISMEMBER", Arity: -3, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSMIsMember})
	Declare(&Command{Name: "SPOP", Arity: -2, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSPop})
	Declare(&Command{Name: "SRANDMEMBER", Arity: -2, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSRandMember})
	Declare(&Command{Name: "SMOVE", Arity: 4, Flags: WriteFlag, FirstKey: 1, LastKey: 2, KeyStep: 1, Handler: cmdSMove})
	Declare(&Command{Name: "SUNION", Arity: -2, Flags: ReadFlag, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdSUnion})
	Declare(&Command{Name: "SUNIONSTORE", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdSUnionStore})
	Declare(&Command{Name: "SINTER", Arity: -2, Flags: ReadFlag, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdSInter})
	Declare(&Command{Name: "SINTERSTORE", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdSInterStore})
	Declare(&Command{Name: "SDIFF", Arity: -2, Flags: ReadFlag, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdSDiff})
	Declare(&Command{Name: "SDIFFSTORE", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdSDiffStore})
	Declare(&Command{Name: "SSCAN", Arity: -3, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSScan})
}

func fetchSet(ctx *CommandContext, key string) (s *values.Set, entry *keyspace.Entry, found bool, errFrame resp.Frame) {
	e, ok := liveEntry(ctx, key)
	if !ok {
		return nil, nil, false, resp.Frame{}
	}
	sv, ok := e.Value.(*values.Set)
	if !ok {
		return nil, nil, true, resp.NewError(values.ErrWrongType.Error())
	}
	return sv, e, true, resp.Frame{}
}

func saveOrDeleteSet(ctx *CommandContext, key string, s *values.Set, old *keyspace.Entry, existed bool) {
	if s.Card() == 0 {
		if existed {
			deleteEntry(ctx, key, old)
		}
		return
	}
	var next *keyspace.Entry
	if existed {
		next = old.WithValue(s)
	} else {
		next = keyspace.NewEntry(s)
	}
	ctx.DB.Keys.Insert(key, next)
	ctx.Storage.Fire(ctx.DBIndex, database.OpSet, key, old, next)
}

func membersToFrames(members []string) []resp.Frame {
	elems := make([]resp.Frame, len(members))
	for i, m := range members {
		elems[i] = resp.NewBulk([]byte(m))
	}
	return elems
}

func cmdSAdd(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	s, entry, existed, errFrame := fetchSet(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		s = values.NewSet()
	}
	members := make([]string, len(args)-1)
	for i, a := range args[1:] {
		members[i] = string(a)
	}
	n := s.Add(members...)
	saveOrDeleteSet(ctx, key, s, entry, existed)
	return resp.NewInt(int64(n))
}

func cmdSRem(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	s, entry, existed, errFrame := fetchSet(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}
	members := make([]string, len(args)-1)
	for i, a := range args[1:] {
		members[i] = string(a)
	}
	n := s.Rem(members...)
	saveOrDeleteSet(ctx, key, s, entry, true)
	return resp.NewInt(int64(n))
}

func cmdSMembers(ctx *CommandContext, args [][]byte) resp.Frame {
	s, _, existed, errFrame := fetchSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.Frame{Type: resp.Set}
	}
	return resp.Frame{Type: resp.Set, Elems: membersToFrames(s.Members())}
}

func cmdSCard(ctx *CommandContext, args [][]byte) resp.Frame {
	s, _, existed, errFrame := fetchSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}
	return resp.NewInt(int64(s.Card()))
}

func cmdSIsMember(ctx *CommandContext, args [][]byte) resp.Frame {
	s, _, existed, errFrame := fetchSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed || !s.IsMember(string(args[1])) {
		return resp.NewInt(0)
	}
	return resp.NewInt(1)
}

func cmdSMIsMember(ctx *CommandContext, args [][]byte) resp.Frame {
	s, _, existed, errFrame := fetchSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	elems := make([]resp.Frame, len(args)-1)
	for i, a := range args[1:] {
		if existed && s.IsMember(string(a)) {
			elems[i] = resp.NewInt(1)
		} else {
			elems[i] = resp.NewInt(0)
		}
	}
	return resp.NewArray(elems...)
}

func cmdSPop(ctx *CommandContext, args [][]byte) resp.Frame {
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

	s, entry, existed, errFrame := fetchSet(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		if count < 0 {
			return resp.NewNilBulk()
		}
		return resp.Frame{Type: resp.Set}
	}
	n := count
	if n < 0 {
		n = 1
	}
	popped := s.Pop(n)
	saveOrDeleteSet(ctx, key, s, entry, true)
	if count < 0 {
		if len(popped) == 0 {
			return resp.NewNilBulk()
		}
		return resp.NewBulk([]byte(popped[0]))
	}
	return resp.Frame{Type: resp.Set, Elems: membersToFrames(popped)}
}

func cmdSRandMember(ctx *CommandContext, args [][]byte) resp.Frame {
	s, _, existed, errFrame := fetchSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if len(args) == 1 {
		if !existed {
			return resp.NewNilBulk()
		}
		picked := s.RandMember(1)
		if len(picked) == 0 {
			return resp.NewNilBulk()
		}
		return resp.NewBulk([]byte(picked[0]))
	}
	count, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}
	if !existed {
		return resp.NewArray()
	}
	return resp.NewArray(membersToFrames(s.RandMember(count))...)
}

func cmdSMove(ctx *CommandContext, args [][]byte) resp.Frame {
	src, dst := string(args[0]), string(args[1])
	member := string(args[2])

	unlock := ctx.DB.Keys.LockOrdered(src, dst)
	defer unlock()

	srcSet, srcEntry, srcExisted, errFrame := fetchSet(ctx, src)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !srcExisted || !srcSet.IsMember(member) {
		return resp.NewInt(0)
	}
	dstSet, dstEntry, dstExisted, errFrame := fetchSet(ctx, dst)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !dstExisted {
		dstSet = values.NewSet()
	}
	values.Move(srcSet, dstSet, member)
	saveOrDeleteSet(ctx, src, srcSet, srcEntry, srcExisted)
	saveOrDeleteSet(ctx, dst, dstSet, dstEntry, dstExisted)
	return resp.NewInt(1)
}

func loadSets(ctx *CommandContext, keys []string) ([]*values.Set, resp.Frame) {
	sets := make([]*values.Set, len(keys))
	for i, k := range keys {
		s, _, existed, errFrame := fetchSet(ctx, k)
		if errFrame.Type == resp.Error {
			return nil, errFrame
		}
		if !existed {
			s = values.NewSet()
		}
		sets[i] = s
	}
	return sets, resp.Frame{}
}

func cmdSUnion(ctx *CommandContext, args [][]byte) resp.Frame {
	return setAlgebra(ctx, args, values.Union)
}

func cmdSInter(ctx *CommandContext, args [][]byte) resp.Frame {
	return setAlgebra(ctx, args, values.Inter)
}

func cmdSDiff(ctx *CommandContext, args [][]byte) resp.Frame {
	return setAlgebra(ctx, args, values.Diff)
}

func setAlgebra(ctx *CommandContext, args [][]byte, combine func(...*values.Set) *values.Set) resp.Frame {
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = string(a)
	}
	sets, errFrame := loadSets(ctx, keys)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	return resp.Frame{Type: resp.Set, Elems: membersToFrames(combine(sets...).Members())}
}

func cmdSUnionStore(ctx *CommandContext, args [][]byte) resp.Frame {
	return setAlgebraStore(ctx, args, values.Union)
}

func cmdSInterStore(ctx *CommandContext, args [][]byte) resp.Frame {
	return setAlgebraStore(ctx, args, values.Inter)
}

func cmdSDiffStore(ctx *CommandContext, args [][]byte) resp.Frame {
	return setAlgebraStore(ctx, args, values.Diff)
}

func setAlgebraStore(ctx *CommandContext, args [][]byte, combine func(...*values.Set) *values.Set) resp.Frame {
	dst := string(args[0])
	keys := make([]string, len(args)-1)
	for i, a := range args[1:] {
		keys[i] = string(a)
	}

	allKeys := append([]string{dst}, keys...)
	unlock := ctx.DB.Keys.LockOrdered(allKeys...)
	defer unlock()

	sets, errFrame := loadSets(ctx, keys)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	result := combine(sets...)

	_, dstEntry, dstExisted, errFrame := fetchSet(ctx, dst)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	saveOrDeleteSet(ctx, dst, result, dstEntry, dstExisted)
	return resp.NewInt(int64(result.Card()))
}

func cmdSScan(ctx *CommandContext, args [][]byte) resp.Frame {
	s, _, existed, errFrame := fetchSet(ctx, string(args[0]))
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
	members, next := s.Scan(values.Cursor(cursor), count)
	var elems []resp.Frame
	for _, m := range members {
		if matchesPattern(pattern, m) {
			elems = append(elems, resp.NewBulk([]byte(m)))
		}
	}
	return resp.NewArray(resp.NewBulk([]byte(strconv.FormatUint(uint64(next), 10))), resp.NewArray(elems...))
}
