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
	"errors"
	"strconv"
	"strings"

	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/keyspace"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/values"
)

var errLexSyntax = errors.New("syntax error")

func init() {
	Declare(&Command{Name: "ZADD", Arity: -4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZAdd})
	Declare(&Command{Name: "ZREM", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZRem})
	Declare(&Command{Name: "ZSCORE", Arity: 3, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZScore})
	Declare(&Command{Name: "ZMSCORE", Arity: -3, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZMScore})
	Declare(&Command{Name: "ZINCRBY", Arity: 4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZIncrBy})
	Declare(&Command{Name: "ZCARD", Arity: 2, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZCard})
	Declare(&Command{Name: "ZCOUNT", Arity: 4, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZCount})
	Declare(&Command{Name: "ZRANGE", Arity: -4, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZRange})
	Declare(&Command{Name: "ZREVRANGE", Arity: -4, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZRevRange})
	Declare(&Command{Name: "ZRANGEBYSCORE", Arity: -4, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZRangeByScore})
	Declare(&Command{Name: "ZREVRANGEBYSCORE", Arity: -4, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZRevRangeByScore})
	Declare(&Command{Name: "ZRANGEBYLEX", Arity: -4, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZRangeByLex})
	Declare(&Command{Name: "ZRANK", Arity: -3, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZRank})
	Declare(&Command{Name: "ZREVRANK", Arity: -3, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZRevRank})
	Declare(&Command{Name: "ZPOPMIN", Arity: -2, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZPopMin})
	Declare(&Command{Name: "ZPOPMAX", Arity: -2, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZPopMax})
	Declare(&Command{Name: "ZUNIONSTORE", Arity: -4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZUnionStore})
	Declare(&Command{Name: "ZINTERSTORE", Arity: -4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZInterStore})
	Declare(&Command{Name: "ZDIFFSTORE", Arity: -4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZDiffStore})
	Declare(&Command{Name: "ZSCAN", Arity: -3, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdZScan})
}

func fetchZSet(ctx *CommandContext, key string) (z *values.ZSet, entry *keyspace.Entry, found bool, errFrame resp.Frame) {
	e, ok := liveEntry(ctx, key)
	if !ok {
		return nil, nil, false, resp.Frame{}
	}
	zv, ok := e.Value.(*values.ZSet)
	if !ok {
		return nil, nil, true, resp.NewError(values.ErrWrongType.Error())
	}
	return zv, e, true, resp.Frame{}
}

func saveOrDeleteZSet(ctx *CommandContext, key string, z *values.ZSet, old *keyspace.Entry, existed bool) {
	if z.Card() == 0 {
		if existed {
			deleteEntry(ctx, key, old)
		}
		return
	}
	var next *keyspace.Entry
	if existed {
		next = old.WithValue(z)
	} else {
		next = keyspace.NewEntry(z)
	}
	ctx.DB.Keys.Insert(key, next)
	ctx.Storage.Fire(ctx.DBIndex, database.OpSet, key, old, next)
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func zmembersToFrames(members []values.ZMember, withScores bool) []resp.Frame {
	if !withScores {
		elems := make([]resp.Frame, len(members))
		for i, m := range members {
			elems[i] = resp.NewBulk([]byte(m.Member))
		}
		return elems
	}
	elems := make([]resp.Frame, 0, len(members)*2)
	for _, m := range members {
		elems = append(elems, resp.NewBulk([]byte(m.Member)), resp.NewBulk([]byte(formatScore(m.Score))))
	}
	return elems
}

func cmdZAdd(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])
	var opts values.AddOptions
	incr := false
	i := 1
	for i < len(args) {
		switch strings.ToUpper(string(args[i])) {
		case "NX":
			opts.NX = true
		case "XX":
			opts.XX = true
		case "GT":
			opts.GT = true
		case "LT":
			opts.LT = true
		case "CH":
			opts.CH = true
		case "INCR":
			incr = true
		default:
			goto pairs
		}
		i++
	}
pairs:
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return resp.NewError("ERR syntax error")
	}
	if incr && len(rest) != 2 {
		return resp.NewError("ERR INCR option supports a single increment-element pair")
	}
	if opts.NX && (opts.GT || opts.LT) {
		return resp.NewError("ERR GT, LT, and/or NX options at the same time are not compatible")
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	z, entry, existed, errFrame := fetchZSet(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		z = values.NewZSet()
	}

	if incr {
		score, err := strconv.ParseFloat(string(rest[0]), 64)
		if err != nil {
			return resp.NewError("ERR value is not a valid float")
		}
		member := string(rest[1])
		old, had := z.Score(member)
		if (opts.NX && had) || (opts.XX && !had) {
			saveOrDeleteZSet(ctx, key, z, entry, existed)
			return resp.NewNilBulk()
		}
		newScore := score
		if had {
			newScore = old + score
		}
		if opts.GT && had && newScore <= old {
			saveOrDeleteZSet(ctx, key, z, entry, existed)
			return resp.NewNilBulk()
		}
		if opts.LT && had && newScore >= old {
			saveOrDeleteZSet(ctx, key, z, entry, existed)
			return resp.NewNilBulk()
		}
		z.Add(member, newScore, values.AddOptions{})
		saveOrDeleteZSet(ctx, key, z, entry, existed)
		return resp.NewBulk([]byte(formatScore(newScore)))
	}

	var added, changed int64
	for j := 0; j+1 < len(rest); j += 2 {
		score, err := strconv.ParseFloat(string(rest[j]), 64)
		if err != nil {
			return resp.NewError("ERR value is not a valid float")
		}
		member := string(rest[j+1])
		switch z.Add(member, score, opts) {
		case values.AddedNew:
			added++
			changed++
		case values.AddedUpdated:
			changed++
		}
	}
	saveOrDeleteZSet(ctx, key, z, entry, existed)
	if opts.CH {
		return resp.NewInt(changed)
	}
	return resp.NewInt(added)
}

func cmdZRem(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	z, entry, existed, errFrame := fetchZSet(ctx, key)
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
	n := z.Rem(members...)
	saveOrDeleteZSet(ctx, key, z, entry, true)
	return resp.NewInt(int64(n))
}

func cmdZScore(ctx *CommandContext, args [][]byte) resp.Frame {
	z, _, existed, errFrame := fetchZSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewNilBulk()
	}
	score, ok := z.Score(string(args[1]))
	if !ok {
		return resp.NewNilBulk()
	}
	return resp.NewBulk([]byte(formatScore(score)))
}

func cmdZMScore(ctx *CommandContext, args [][]byte) resp.Frame {
	z, _, existed, errFrame := fetchZSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	elems := make([]resp.Frame, len(args)-1)
	for i, a := range args[1:] {
		if !existed {
			elems[i] = resp.NewNilBulk()
			continue
		}
		score, ok := z.Score(string(a))
		if !ok {
			elems[i] = resp.NewNilBulk()
			continue
		}
		elems[i] = resp.NewBulk([]byte(formatScore(score)))
	}
	return resp.NewArray(elems...)
}

func cmdZIncrBy(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])
	delta, err := strconv.ParseFloat(string(args[1]), 64)
	if err != nil {
		return resp.NewError("ERR value is not a valid float")
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	z, entry, existed, errFrame := fetchZSet(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		z = values.NewZSet()
	}
	newScore := z.IncrBy(string(args[2]), delta)
	saveOrDeleteZSet(ctx, key, z, entry, existed)
	return resp.NewBulk([]byte(formatScore(newScore)))
}

func cmdZCard(ctx *CommandContext, args [][]byte) resp.Frame {
	z, _, existed, errFrame := fetchZSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}
	return resp.NewInt(int64(z.Card()))
}

func cmdZCount(ctx *CommandContext, args [][]byte) resp.Frame {
	z, _, existed, errFrame := fetchZSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}
	min, _, _, err := parseScoreBound(string(args[1]))
	if err != nil {
		return resp.NewError("ERR min or max is not a float")
	}
	max, _, _, err := parseScoreBound(string(args[2]))
	if err != nil {
		return resp.NewError("ERR min or max is not a float")
	}
	return resp.NewInt(int64(z.Count(min, max)))
}

// parseScoreBound decodes a ZRANGEBYSCORE-style bound: a leading "("
// marks exclusive, "+inf"/"-inf" the unbounded ends.
func parseScoreBound(s string) (value float64, exclusive bool, unbounded bool, err error) {
	if strings.HasPrefix(s, "(") {
		exclusive = true
		s = s[1:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, false, err
	}
	return v, exclusive, false, nil
}

func parseLexBound(s string) (value string, inclusive bool, unbounded bool, err error) {
	switch {
	case s == "-":
		return "", false, true, nil
	case s == "+":
		return "", false, true, nil
	case strings.HasPrefix(s, "["):
		return s[1:], true, false, nil
	case strings.HasPrefix(s, "("):
		return s[1:], false, false, nil
	default:
		return "", false, false, errLexSyntax
	}
}

func cmdZRange(ctx *CommandContext, args [][]byte) resp.Frame {
	return zRangeByRank(ctx, args, false)
}

func cmdZRevRange(ctx *CommandContext, args [][]byte) resp.Frame {
	return zRangeByRank(ctx, args, true)
}

func zRangeByRank(ctx *CommandContext, args [][]byte, rev bool) resp.Frame {
	z, _, existed, errFrame := fetchZSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	start, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}
	end, err := strconv.Atoi(string(args[2]))
	if err != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}
	withScores := false
	if len(args) > 3 && strings.EqualFold(string(args[3]), "WITHSCORES") {
		withScores = true
	}
	if !existed {
		return resp.NewArray()
	}
	members := z.RangeByRank(start, end, rev)
	return resp.NewArray(zmembersToFrames(members, withScores)...)
}

func cmdZRangeByScore(ctx *CommandContext, args [][]byte) resp.Frame {
	return zRangeByScoreImpl(ctx, args, false)
}

func cmdZRevRangeByScore(ctx *CommandContext, args [][]byte) resp.Frame {
	return zRangeByScoreImpl(ctx, args, true)
}

func zRangeByScoreImpl(ctx *CommandContext, args [][]byte, rev bool) resp.Frame {
	z, _, existed, errFrame := fetchZSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	minArg, maxArg := string(args[1]), string(args[2])
	if rev {
		minArg, maxArg = maxArg, minArg
	}
	min, _, _, err := parseScoreBound(minArg)
	if err != nil {
		return resp.NewError("ERR min or max is not a float")
	}
	max, _, _, err := parseScoreBound(maxArg)
	if err != nil {
		return resp.NewError("ERR min or max is not a float")
	}
	withScores := false
	offset, count := 0, -1
	for i := 3; i < len(args); i++ {
		switch strings.ToUpper(string(args[i])) {
		case "WITHSCORES":
			withScores = true
		case "LIMIT":
			if i+2 >= len(args) {
				return resp.NewError("ERR syntax error")
			}
			offset, err = strconv.Atoi(string(args[i+1]))
			if err != nil {
				return resp.NewError("ERR value is not an integer or out of range")
			}
			count, err = strconv.Atoi(string(args[i+2]))
			if err != nil {
				return resp.NewError("ERR value is not an integer or out of range")
			}
			i += 2
		default:
			return resp.NewError("ERR syntax error")
		}
	}
	if !existed {
		return resp.NewArray()
	}
	members := z.RangeByScore(min, max, rev, offset, count)
	return resp.NewArray(zmembersToFrames(members, withScores)...)
}

func cmdZRangeByLex(ctx *CommandContext, args [][]byte) resp.Frame {
	z, _, existed, errFrame := fetchZSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	minVal, minIncl, minUnb, err := parseLexBound(string(args[1]))
	if err != nil {
		return resp.NewError("ERR min or max not valid string range item")
	}
	maxVal, maxIncl, maxUnb, err := parseLexBound(string(args[2]))
	if err != nil {
		return resp.NewError("ERR min or max not valid string range item")
	}
	if !existed {
		return resp.NewArray()
	}
	members := z.RangeByLex(minVal, minIncl, minUnb, maxVal, maxIncl, maxUnb, false)
	return resp.NewArray(zmembersToFrames(members, false)...)
}

func cmdZRank(ctx *CommandContext, args [][]byte) resp.Frame {
	return zRank(ctx, args, false)
}

func cmdZRevRank(ctx *CommandContext, args [][]byte) resp.Frame {
	return zRank(ctx, args, true)
}

func zRank(ctx *CommandContext, args [][]byte, rev bool) resp.Frame {
	z, _, existed, errFrame := fetchZSet(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewNilBulk()
	}
	rank := z.Rank(string(args[1]), rev)
	if rank < 0 {
		return resp.NewNilBulk()
	}
	return resp.NewInt(int64(rank))
}

func cmdZPopMin(ctx *CommandContext, args [][]byte) resp.Frame {
	return zPop(ctx, args, true)
}

func cmdZPopMax(ctx *CommandContext, args [][]byte) resp.Frame {
	return zPop(ctx, args, false)
}

func zPop(ctx *CommandContext, args [][]byte, min bool) resp.Frame {
	key := string(args[0])
	count := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(string(args[1]))
		if err != nil || n < 0 {
			return resp.NewError("ERR value is out of range, must be positive")
		}
		count = n
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	z, entry, existed, errFrame := fetchZSet(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewArray()
	}
	var popped []values.ZMember
	if min {
		popped = z.PopMin(count)
	} else {
		popped = z.PopMax(count)
	}
	saveOrDeleteZSet(ctx, key, z, entry, true)
	return resp.NewArray(zmembersToFrames(popped, true)...)
}

func loadZSetsWithWeights(ctx *CommandContext, args [][]byte) (srcs []*values.ZSet, weights []float64, agg values.ZSetAggregate, tail int, errFrame resp.Frame) {
	numKeys, err := strconv.Atoi(string(args[0]))
	if err != nil || numKeys <= 0 {
		return nil, nil, 0, 0, resp.NewError("ERR at least 1 input key is needed")
	}
	if len(args) < 1+numKeys {
		return nil, nil, 0, 0, resp.NewError("ERR syntax error")
	}
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = string(args[1+i])
	}
	srcs = make([]*values.ZSet, numKeys)
	for i, k := range keys {
		z, _, existed, ef := fetchZSet(ctx, k)
		if ef.Type == resp.Error {
			return nil, nil, 0, 0, ef
		}
		if !existed {
			z = values.NewZSet()
		}
		srcs[i] = z
	}
	i := 1 + numKeys
	for i < len(args) {
		switch strings.ToUpper(string(args[i])) {
		case "WEIGHTS":
			weights = make([]float64, numKeys)
			for j := 0; j < numKeys; j++ {
				i++
				if i >= len(args) {
					return nil, nil, 0, 0, resp.NewError("ERR syntax error")
				}
				w, err := strconv.ParseFloat(string(args[i]), 64)
				if err != nil {
					return nil, nil, 0, 0, resp.NewError("ERR weight value is not a float")
				}
				weights[j] = w
			}
			i++
		case "AGGREGATE":
			i++
			if i >= len(args) {
				return nil, nil, 0, 0, resp.NewError("ERR syntax error")
			}
			switch strings.ToUpper(string(args[i])) {
			case "SUM":
				agg = values.AggregateSum
			case "MIN":
				agg = values.AggregateMin
			case "MAX":
				agg = values.AggregateMax
			default:
				return nil, nil, 0, 0, resp.NewError("ERR syntax error")
			}
			i++
		default:
			return nil, nil, 0, 0, resp.NewError("ERR syntax error")
		}
	}
	return srcs, weights, agg, i, resp.Frame{}
}

func cmdZUnionStore(ctx *CommandContext, args [][]byte) resp.Frame {
	dst := string(args[0])
	srcs, weights, agg, _, errFrame := loadZSetsWithWeights(ctx, args[1:])
	if errFrame.Type == resp.Error {
		return errFrame
	}
	result := values.UnionStore(agg, srcs, weights)
	return storeZSetResult(ctx, dst, result)
}

func cmdZInterStore(ctx *CommandContext, args [][]byte) resp.Frame {
	dst := string(args[0])
	srcs, weights, agg, _, errFrame := loadZSetsWithWeights(ctx, args[1:])
	if errFrame.Type == resp.Error {
		return errFrame
	}
	result := values.InterStore(agg, srcs, weights)
	return storeZSetResult(ctx, dst, result)
}

func cmdZDiffStore(ctx *CommandContext, args [][]byte) resp.Frame {
	dst := string(args[0])
	numKeys, err := strconv.Atoi(string(args[1]))
	if err != nil || numKeys <= 0 {
		return resp.NewError("ERR at least 1 input key is needed")
	}
	if len(args) < 2+numKeys {
		return resp.NewError("ERR syntax error")
	}
	srcs := make([]*values.ZSet, numKeys)
	for i := 0; i < numKeys; i++ {
		z, _, existed, errFrame := fetchZSet(ctx, string(args[2+i]))
		if errFrame.Type == resp.Error {
			return errFrame
		}
		if !existed {
			z = values.NewZSet()
		}
		srcs[i] = z
	}
	result := values.DiffStore(srcs)
	return storeZSetResult(ctx, dst, result)
}

func storeZSetResult(ctx *CommandContext, dst string, result *values.ZSet) resp.Frame {
	unlock := ctx.DB.Keys.LockOrdered(dst)
	defer unlock()

	_, dstEntry, dstExisted, errFrame := fetchZSet(ctx, dst)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	saveOrDeleteZSet(ctx, dst, result, dstEntry, dstExisted)
	return resp.NewInt(int64(result.Card()))
}

func cmdZScan(ctx *CommandContext, args [][]byte) resp.Frame {
	z, _, existed, errFrame := fetchZSet(ctx, string(args[0]))
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
	members, next := z.Scan(values.Cursor(cursor), count)
	var elems []resp.Frame
	for _, m := range members {
		if matchesPattern(pattern, m.Member) {
			elems = append(elems, resp.NewBulk([]byte(m.Member)), resp.NewBulk([]byte(formatScore(m.Score))))
		}
	}
	return resp.NewArray(resp.NewBulk([]byte(strconv.FormatUint(uint64(next), 10))), resp.NewArray(elems...))
}
