package dispatch

import (
	"context"
	"strconv"
	"strings"
	"time"

	"redisserver/internal/resp"
	"redisserver/internal/streams"
)

func cmdXAdd(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) < 4 || len(args)%2 != 0 {
		return arityError("xadd")
	}
	key, _ := args[0].AsString()
	idTok, _ := args[1].AsString()
	if _, ok := d.Keyspace.Type(key); ok {
		return typeError("xadd")
	}

	fieldArgs := args[2:]
	fields := make([]streams.Field, 0, len(fieldArgs)/2)
	for i := 0; i < len(fieldArgs); i += 2 {
		k, _ := fieldArgs[i].AsString()
		v, _ := fieldArgs[i+1].AsString()
		fields = append(fields, streams.Field{Key: k, Value: v})
	}

	id, err := d.Streams.Add(key, idTok, fields)
	if err != nil {
		return resp.Err(err.Error())
	}
	return resp.BulkString(id.String())
}

func cmdXRange(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 3 {
		return arityError("xrange")
	}
	key, _ := args[0].AsString()
	start, _ := args[1].AsString()
	end, _ := args[2].AsString()

	if _, ok := d.Keyspace.Type(key); ok {
		return typeError("xrange")
	}
	entries, err := d.Streams.Range(key, start, end)
	if err != nil {
		return resp.Err(err.Error())
	}
	return encodeEntries(entries)
}

func encodeEntries(entries []streamsEntry) resp.Value {
	out := make([]resp.Value, 0, len(entries))
	for _, e := range entries {
		fieldVals := make([]resp.Value, 0, len(e.Fields)*2)
		for _, f := range e.Fields {
			fieldVals = append(fieldVals, resp.BulkString(f.Key), resp.BulkString(f.Value))
		}
		out = append(out, resp.Array(resp.BulkString(e.ID.String()), resp.Array(fieldVals...)))
	}
	return resp.Array(out...)
}

// streamsEntry is a local alias so this file doesn't need to repeat the
// streams import qualifier everywhere encodeEntries is used.
type streamsEntry = streams.Entry

// cmdXRead implements XREAD [BLOCK ms] STREAMS key... id..., including the
// blocking poll loop and one-time "$" resolution, per spec.md §4.3/§4.5.
func cmdXRead(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	strs := argStrings(args)

	var blockMs int64 = -1
	i := 0
	if len(strs) >= 2 && strings.EqualFold(strs[0], "BLOCK") {
		n, err := strconv.ParseInt(strs[1], 10, 64)
		if err != nil {
			return resp.Err("ERR timeout is not an integer or out of range")
		}
		blockMs = n
		i = 2
	}
	if i >= len(strs) || !strings.EqualFold(strs[i], "STREAMS") {
		return resp.Err("ERR syntax error")
	}
	i++

	remaining := strs[i:]
	if len(remaining) == 0 || len(remaining)%2 != 0 {
		return resp.Err("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	n := len(remaining) / 2
	keys := remaining[:n]
	idToks := remaining[n:]

	after := make([]streams.ID, n)
	for j := 0; j < n; j++ {
		if idToks[j] == "$" {
			after[j] = d.Streams.LastID(keys[j])
			continue
		}
		id, err := parsePublicID(idToks[j])
		if err != nil {
			return resp.Err("ERR Invalid stream ID specified as stream command argument")
		}
		after[j] = id
	}

	var results []streams.StreamResult
	if blockMs < 0 {
		results = d.Streams.ReadOnce(keys, after)
	} else {
		timeout := time.Duration(blockMs) * time.Millisecond
		if blockMs == 0 {
			timeout = 0
		}
		var err error
		results, err = d.Streams.BlockingRead(ctx, keys, after, timeout)
		if err != nil {
			return resp.NullArray()
		}
	}

	if len(results) == 0 {
		return resp.NullArray()
	}

	out := make([]resp.Value, 0, len(results))
	for _, r := range results {
		out = append(out, resp.Array(resp.BulkString(r.Key), encodeEntries(r.Entries)))
	}
	return resp.Array(out...)
}

// parsePublicID parses a fully-specified "ms-seq" or bare "ms" ID as given
// by an XREAD caller (never "*", which only XADD accepts).
func parsePublicID(s string) (streams.ID, error) {
	ms, seq, hasHyphen := strings.Cut(s, "-")
	msVal, err := strconv.ParseUint(ms, 10, 64)
	if err != nil {
		return streams.ID{}, err
	}
	if !hasHyphen {
		return streams.ID{Ms: msVal}, nil
	}
	seqVal, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return streams.ID{}, err
	}
	return streams.ID{Ms: msVal, Seq: seqVal}, nil
}
