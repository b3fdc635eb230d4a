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
	"time"

	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/keyspace"
	"github.com/ferritelabs/ferrite/resp"
	"github.com/ferritelabs/ferrite/values"
)

func init() {
	Declare(&Command{Name: "XADD", Arity: -5, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdXAdd})
	Declare(&Command{Name: "XLEN", Arity: 2, Flags: ReadFlag | FastFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdXLen})
	Declare(&Command{Name: "XRANGE", Arity: -4, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdXRange})
	Declare(&Command{Name: "XREVRANGE", Arity: -4, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdXRevRange})
	Declare(&Command{Name: "XDEL", Arity: -3, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdXDel})
	Declare(&Command{Name: "XTRIM", Arity: -4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdXTrim})
	Declare(&Command{Name: "XREAD", Arity: -4, Flags: ReadFlag, Handler: cmdXRead})
	Declare(&Command{Name: "XGROUP", Arity: -2, Flags: WriteFlag, FirstKey: 2, LastKey: 2, KeyStep: 1, Handler: cmdXGroup})
	Declare(&Command{Name: "XREADGROUP", Arity: -7, Flags: WriteFlag, Handler: cmdXReadGroup})
	Declare(&Command{Name: "XACK", Arity: -4, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdXAck})
	Declare(&Command{Name: "XPENDING", Arity: -3, Flags: ReadFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdXPending})
	Declare(&Command{Name: "XCLAIM", Arity: -6, Flags: WriteFlag, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdXClaim})
}

func fetchStream(ctx *CommandContext, key string) (s *values.Stream, entry *keyspace.Entry, found bool, errFrame resp.Frame) {
	e, ok := liveEntry(ctx, key)
	if !ok {
		return nil, nil, false, resp.Frame{}
	}
	sv, ok := e.Value.(*values.Stream)
	if !ok {
		return nil, nil, true, resp.NewError(values.ErrWrongType.Error())
	}
	return sv, e, true, resp.Frame{}
}

// saveStream publishes a stream update; unlike the other container
// kinds, an emptied stream still exists as a key (XDEL/XTRIM never
// delete it), so there is no auto-delete-on-empty helper here.
func saveStream(ctx *CommandContext, key string, s *values.Stream, old *keyspace.Entry, existed bool) {
	var next *keyspace.Entry
	if existed {
		next = old.WithValue(s)
	} else {
		next = keyspace.NewEntry(s)
	}
	ctx.DB.Keys.Insert(key, next)
	ctx.Storage.Fire(ctx.DBIndex, database.OpSet, key, old, next)
}

var errInvalidStreamID = errors.New("invalid stream ID")

func parseFullStreamID(s string) (values.StreamID, error) {
	parts := strings.SplitN(s, "-", 2)
	ms, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return values.StreamID{}, errInvalidStreamID
	}
	if len(parts) == 1 {
		return values.StreamID{Ms: ms}, nil
	}
	seq, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return values.StreamID{}, errInvalidStreamID
	}
	return values.StreamID{Ms: ms, Seq: seq}, nil
}

// parseRangeID decodes an XRANGE/XREVRANGE endpoint: "-" and "+" are
// the stream's own open bounds, a bare ms expands to seq 0 (start) or
// seq max (end) per Redis's own convention.
func parseRangeID(s string, isStart bool) (values.StreamID, error) {
	switch s {
	case "-":
		return values.StreamID{}, nil
	case "+":
		return values.StreamID{Ms: ^uint64(0), Seq: ^uint64(0)}, nil
	}
	excl := false
	if strings.HasPrefix(s, "(") {
		excl = true
		s = s[1:]
	}
	parts := strings.SplitN(s, "-", 2)
	ms, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return values.StreamID{}, err
	}
	var id values.StreamID
	if len(parts) == 2 {
		seq, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return values.StreamID{}, err
		}
		id = values.StreamID{Ms: ms, Seq: seq}
	} else if isStart {
		id = values.StreamID{Ms: ms, Seq: 0}
	} else {
		id = values.StreamID{Ms: ms, Seq: ^uint64(0)}
	}
	if excl {
		if isStart {
			id.Seq++
		} else if id.Seq > 0 {
			id.Seq--
		}
	}
	return id, nil
}

func entriesToFrames(entries []values.StreamEntry) []resp.Frame {
	elems := make([]resp.Frame, len(entries))
	for i, e := range entries {
		fields := make([]resp.Frame, len(e.Fields))
		for j, f := range e.Fields {
			fields[j] = resp.NewBulk([]byte(f))
		}
		elems[i] = resp.NewArray(resp.NewBulk([]byte(e.ID.String())), resp.NewArray(fields...))
	}
	return elems
}

func cmdXAdd(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])
	idArg := string(args[1])
	rest := args[2:]

	maxLen := -1
	minID := ""
	i := 0
	for i < len(rest) {
		switch strings.ToUpper(string(rest[i])) {
		case "MAXLEN":
			i++
			if i < len(rest) && (string(rest[i]) == "~" || string(rest[i]) == "=") {
				i++
			}
			if i >= len(rest) {
				return resp.NewError("ERR syntax error")
			}
			n, err := strconv.Atoi(string(rest[i]))
			if err != nil {
				return resp.NewError("ERR value is not an integer or out of range")
			}
			maxLen = n
			i++
		case "MINID":
			i++
			if i < len(rest) && (string(rest[i]) == "~" || string(rest[i]) == "=") {
				i++
			}
			if i >= len(rest) {
				return resp.NewError("ERR syntax error")
			}
			minID = string(rest[i])
			i++
		default:
			goto fields
		}
	}
fields:
	fieldArgs := rest[i:]
	if len(fieldArgs) == 0 || len(fieldArgs)%2 != 0 {
		return resp.NewError("ERR wrong number of arguments for 'xadd' command")
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	s, entry, existed, errFrame := fetchStream(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		s = values.NewStream()
	}

	var id values.StreamID
	if idArg == "*" {
		id, _ = s.NextID(nil, nil)
	} else {
		ms, seq, hasSeq, err := splitStreamIDArg(idArg)
		if err != nil {
			return resp.NewError("ERR Invalid stream ID specified as stream command argument")
		}
		if hasSeq {
			id, err = s.NextID(&ms, &seq)
		} else {
			id, err = s.NextID(&ms, nil)
		}
		if err != nil {
			return resp.NewError(err.Error())
		}
	}

	fields := make([]string, len(fieldArgs))
	for j, a := range fieldArgs {
		fields[j] = string(a)
	}
	s.Add(id, fields)

	if maxLen >= 0 {
		s.Trim(maxLen)
	}
	if minID != "" {
		if boundID, err := parseRangeID(minID, true); err == nil {
			s.TrimMinID(boundID)
		}
	}

	saveStream(ctx, key, s, entry, existed)
	return resp.NewBulk([]byte(id.String()))
}

// splitStreamIDArg decodes an XADD id argument, which may be "ms",
// "ms-*", or "ms-seq".
func splitStreamIDArg(s string) (ms, seq uint64, hasSeq bool, err error) {
	parts := strings.SplitN(s, "-", 2)
	ms, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false, err
	}
	if len(parts) == 1 || parts[1] == "*" {
		return ms, 0, false, nil
	}
	seq, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false, err
	}
	return ms, seq, true, nil
}

func cmdXLen(ctx *CommandContext, args [][]byte) resp.Frame {
	s, _, existed, errFrame := fetchStream(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}
	return resp.NewInt(int64(s.Len()))
}

func cmdXRange(ctx *CommandContext, args [][]byte) resp.Frame {
	return xRangeImpl(ctx, args, false)
}

func cmdXRevRange(ctx *CommandContext, args [][]byte) resp.Frame {
	return xRangeImpl(ctx, args, true)
}

func xRangeImpl(ctx *CommandContext, args [][]byte, rev bool) resp.Frame {
	s, _, existed, errFrame := fetchStream(ctx, string(args[0]))
	if errFrame.Type == resp.Error {
		return errFrame
	}
	startArg, endArg := string(args[1]), string(args[2])
	if rev {
		startArg, endArg = endArg, startArg
	}
	start, err := parseRangeID(startArg, true)
	if err != nil {
		return resp.NewError("ERR Invalid stream ID specified as stream command argument")
	}
	end, err := parseRangeID(endArg, false)
	if err != nil {
		return resp.NewError("ERR Invalid stream ID specified as stream command argument")
	}
	count := -1
	if len(args) > 3 {
		if !strings.EqualFold(string(args[3]), "COUNT") || len(args) < 5 {
			return resp.NewError("ERR syntax error")
		}
		n, err := strconv.Atoi(string(args[4]))
		if err != nil {
			return resp.NewError("ERR value is not an integer or out of range")
		}
		count = n
	}
	if !existed {
		return resp.NewArray()
	}
	var entries []values.StreamEntry
	if rev {
		entries = s.RevRange(start, end, count)
	} else {
		entries = s.Range(start, end, count)
	}
	return resp.NewArray(entriesToFrames(entries)...)
}

func cmdXDel(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	s, entry, existed, errFrame := fetchStream(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}
	ids := make([]values.StreamID, len(args)-1)
	for i, a := range args[1:] {
		id, err := parseFullStreamID(string(a))
		if err != nil {
			return resp.NewError("ERR Invalid stream ID specified as stream command argument")
		}
		ids[i] = id
	}
	n := s.Del(ids...)
	saveStream(ctx, key, s, entry, true)
	return resp.NewInt(int64(n))
}

func cmdXTrim(ctx *CommandContext, args [][]byte) resp.Frame {
	key := string(args[0])

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	s, entry, existed, errFrame := fetchStream(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}

	strategy := strings.ToUpper(string(args[1]))
	i := 2
	if i < len(args) && (string(args[i]) == "~" || string(args[i]) == "=") {
		i++
	}
	if i >= len(args) {
		return resp.NewError("ERR syntax error")
	}
	var n int
	switch strategy {
	case "MAXLEN":
		maxLen, err := strconv.Atoi(string(args[i]))
		if err != nil {
			return resp.NewError("ERR value is not an integer or out of range")
		}
		n = s.Trim(maxLen)
	case "MINID":
		minID, err := parseRangeID(string(args[i]), true)
		if err != nil {
			return resp.NewError("ERR Invalid stream ID specified as stream command argument")
		}
		n = s.TrimMinID(minID)
	default:
		return resp.NewError("ERR syntax error")
	}
	saveStream(ctx, key, s, entry, true)
	return resp.NewInt(int64(n))
}

func cmdXRead(ctx *CommandContext, args [][]byte) resp.Frame {
	i := 0
	count := -1
	if i < len(args) && strings.EqualFold(string(args[i]), "COUNT") {
		i++
		if i >= len(args) {
			return resp.NewError("ERR syntax error")
		}
		n, err := strconv.Atoi(string(args[i]))
		if err != nil {
			return resp.NewError("ERR value is not an integer or out of range")
		}
		count = n
		i++
	}
	if i < len(args) && strings.EqualFold(string(args[i]), "BLOCK") {
		i += 2
	}
	if i >= len(args) || !strings.EqualFold(string(args[i]), "STREAMS") {
		return resp.NewError("ERR syntax error")
	}
	i++
	rest := args[i:]
	if len(rest)%2 != 0 {
		return resp.NewError("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	n := len(rest) / 2
	keys := rest[:n]
	ids := rest[n:]

	var replies []resp.Frame
	for j, keyArg := range keys {
		key := string(keyArg)
		s, _, existed, errFrame := fetchStream(ctx, key)
		if errFrame.Type == resp.Error {
			return errFrame
		}
		if !existed {
			continue
		}
		idArg := string(ids[j])
		var after values.StreamID
		if idArg == "$" {
			after = s.LastID()
		} else {
			id, err := parseFullStreamID(idArg)
			if err != nil {
				return resp.NewError("ERR Invalid stream ID specified as stream command argument")
			}
			after = id
		}
		start := values.StreamID{Ms: after.Ms, Seq: after.Seq + 1}
		entries := s.Range(start, values.StreamID{Ms: ^uint64(0), Seq: ^uint64(0)}, count)
		if len(entries) == 0 {
			continue
		}
		replies = append(replies, resp.NewArray(resp.NewBulk([]byte(key)), resp.NewArray(entriesToFrames(entries)...)))
	}
	if len(replies) == 0 {
		return resp.NewNilArray()
	}
	return resp.NewArray(replies...)
}

func cmdXGroup(ctx *CommandContext, args [][]byte) resp.Frame {
	sub := strings.ToUpper(string(args[0]))
	switch sub {
	case "CREATE":
		if len(args) < 4 {
			return resp.NewError("ERR wrong number of arguments for 'xgroup' command")
		}
		key, groupName, idArg := string(args[1]), string(args[2]), string(args[3])

		unlock := ctx.DB.Keys.LockOrdered(key)
		defer unlock()

		s, entry, existed, errFrame := fetchStream(ctx, key)
		if errFrame.Type == resp.Error {
			return errFrame
		}
		mkstream := false
		for _, a := range args[4:] {
			if strings.EqualFold(string(a), "MKSTREAM") {
				mkstream = true
			}
		}
		if !existed {
			if !mkstream {
				return resp.NewError("ERR The XGROUP subcommand requires the key to exist. Note that for CREATE you may want to use the MKSTREAM option to create an empty stream automatically.")
			}
			s = values.NewStream()
		}
		var start values.StreamID
		if idArg != "$" {
			id, err := parseFullStreamID(idArg)
			if err != nil {
				return resp.NewError("ERR Invalid stream ID specified as stream command argument")
			}
			start = id
		} else {
			start = s.LastID()
		}
		if err := s.GroupCreate(groupName, start); err != nil {
			return resp.NewError(err.Error())
		}
		saveStream(ctx, key, s, entry, existed)
		return resp.NewSimple("OK")
	case "DESTROY":
		if len(args) < 3 {
			return resp.NewError("ERR wrong number of arguments for 'xgroup' command")
		}
		key, groupName := string(args[1]), string(args[2])

		unlock := ctx.DB.Keys.LockOrdered(key)
		defer unlock()

		s, entry, existed, errFrame := fetchStream(ctx, key)
		if errFrame.Type == resp.Error {
			return errFrame
		}
		if !existed {
			return resp.NewInt(0)
		}
		if s.GroupDestroy(groupName) {
			saveStream(ctx, key, s, entry, true)
			return resp.NewInt(1)
		}
		return resp.NewInt(0)
	default:
		return resp.NewError("ERR unknown XGROUP subcommand")
	}
}

func cmdXReadGroup(ctx *CommandContext, args [][]byte) resp.Frame {
	if !strings.EqualFold(string(args[0]), "GROUP") {
		return resp.NewError("ERR syntax error")
	}
	groupName, consumer := string(args[1]), string(args[2])
	i := 3
	count := -1
	if i < len(args) && strings.EqualFold(string(args[i]), "COUNT") {
		i++
		if i >= len(args) {
			return resp.NewError("ERR syntax error")
		}
		n, err := strconv.Atoi(string(args[i]))
		if err != nil {
			return resp.NewError("ERR value is not an integer or out of range")
		}
		count = n
		i++
	}
	if i < len(args) && strings.EqualFold(string(args[i]), "NOACK") {
		i++
	}
	if i >= len(args) || !strings.EqualFold(string(args[i]), "STREAMS") {
		return resp.NewError("ERR syntax error")
	}
	i++
	rest := args[i:]
	if len(rest)%2 != 0 {
		return resp.NewError("ERR Unbalanced XREADGROUP list of streams: for each stream key an ID or '>' must be specified.")
	}
	n := len(rest) / 2
	keys := rest[:n]

	var replies []resp.Frame
	for _, keyArg := range keys {
		key := string(keyArg)

		unlock := ctx.DB.Keys.LockOrdered(key)
		s, entry, existed, errFrame := fetchStream(ctx, key)
		if errFrame.Type == resp.Error {
			unlock()
			return errFrame
		}
		if !existed {
			unlock()
			return resp.NewError("NOGROUP No such key '" + key + "' or consumer group '" + groupName + "'")
		}
		entries, err := s.ReadGroup(groupName, consumer, count)
		if err != nil {
			unlock()
			return resp.NewError(err.Error())
		}
		saveStream(ctx, key, s, entry, true)
		unlock()
		if len(entries) == 0 {
			continue
		}
		replies = append(replies, resp.NewArray(resp.NewBulk([]byte(key)), resp.NewArray(entriesToFrames(entries)...)))
	}
	if len(replies) == 0 {
		return resp.NewNilArray()
	}
	return resp.NewArray(replies...)
}

func cmdXAck(ctx *CommandContext, args [][]byte) resp.Frame {
	key, groupName := string(args[0]), string(args[1])

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	s, entry, existed, errFrame := fetchStream(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewInt(0)
	}
	ids := make([]values.StreamID, len(args)-2)
	for i, a := range args[2:] {
		id, err := parseFullStreamID(string(a))
		if err != nil {
			return resp.NewError("ERR Invalid stream ID specified as stream command argument")
		}
		ids[i] = id
	}
	n, err := s.Ack(groupName, ids...)
	if err != nil {
		return resp.NewError(err.Error())
	}
	saveStream(ctx, key, s, entry, true)
	return resp.NewInt(int64(n))
}

func cmdXPending(ctx *CommandContext, args [][]byte) resp.Frame {
	key, groupName := string(args[0]), string(args[1])
	s, _, existed, errFrame := fetchStream(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewError("NOGROUP No such key '" + key + "' or consumer group '" + groupName + "'")
	}
	ids, pending, err := s.Pending(groupName)
	if err != nil {
		return resp.NewError(err.Error())
	}
	if len(args) == 2 {
		if len(ids) == 0 {
			return resp.NewArray(resp.NewInt(0), resp.NewNilBulk(), resp.NewNilBulk(), resp.NewNilArray())
		}
		consumers := map[string]int64{}
		for _, id := range ids {
			consumers[pending[id].Consumer]++
		}
		consumerElems := make([]resp.Frame, 0, len(consumers))
		for c, n := range consumers {
			consumerElems = append(consumerElems, resp.NewArray(resp.NewBulk([]byte(c)), resp.NewBulk([]byte(strconv.FormatInt(n, 10)))))
		}
		return resp.NewArray(
			resp.NewInt(int64(len(ids))),
			resp.NewBulk([]byte(ids[0].String())),
			resp.NewBulk([]byte(ids[len(ids)-1].String())),
			resp.NewArray(consumerElems...),
		)
	}
	elems := make([]resp.Frame, 0, len(ids))
	for _, id := range ids {
		p := pending[id]
		idleMs := time.Since(p.DeliveryTime).Milliseconds()
		elems = append(elems, resp.NewArray(
			resp.NewBulk([]byte(id.String())),
			resp.NewBulk([]byte(p.Consumer)),
			resp.NewInt(idleMs),
			resp.NewInt(int64(p.DeliveryCount)),
		))
	}
	return resp.NewArray(elems...)
}

func cmdXClaim(ctx *CommandContext, args [][]byte) resp.Frame {
	key, groupName, consumer := string(args[0]), string(args[1]), string(args[2])
	minIdleMs, err := strconv.ParseInt(string(args[3]), 10, 64)
	if err != nil {
		return resp.NewError("ERR value is not an integer or out of range")
	}

	unlock := ctx.DB.Keys.LockOrdered(key)
	defer unlock()

	s, entry, existed, errFrame := fetchStream(ctx, key)
	if errFrame.Type == resp.Error {
		return errFrame
	}
	if !existed {
		return resp.NewArray()
	}
	ids := make([]values.StreamID, 0, len(args)-4)
	for _, a := range args[4:] {
		id, err := parseFullStreamID(string(a))
		if err != nil {
			break
		}
		ids = append(ids, id)
	}
	claimed, err := s.Claim(groupName, consumer, time.Duration(minIdleMs)*time.Millisecond, ids...)
	if err != nil {
		return resp.NewError(err.Error())
	}
	saveStream(ctx, key, s, entry, true)
	return resp.NewArray(entriesToFrames(claimed)...)
}
