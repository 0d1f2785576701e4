package dispatch

import (
	"context"
	"strconv"
	"strings"
	"time"

	"redisserver/internal/keyspace"
	"redisserver/internal/resp"
)

func cmdPing(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) > 0 {
		s, _ := args[0].AsString()
		return resp.BulkString(s)
	}
	return resp.SimpleString("PONG")
}

func cmdEcho(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 1 {
		return arityError("echo")
	}
	s, _ := args[0].AsString()
	return resp.BulkString(s)
}

// cmdSet implements SET key value [PX ms|EX s]*, parsing options greedily
// per spec.md §4.5.
func cmdSet(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) < 2 {
		return arityError("set")
	}
	key, _ := args[0].AsString()
	val, _ := args[1].AsString()

	opts := keyspace.SetOptions{}
	rest := args[2:]
	for i := 0; i < len(rest); i++ {
		opt, _ := rest[i].AsString()
		switch strings.ToUpper(opt) {
		case "PX":
			if i+1 >= len(rest) {
				return arityError("set")
			}
			ms, _ := rest[i+1].AsString()
			n, err := strconv.ParseInt(ms, 10, 64)
			if err != nil {
				return resp.Err("ERR value is not an integer or out of range")
			}
			opts.HasExpiry = true
			opts.ExpiresAt = time.Now().Add(time.Duration(n) * time.Millisecond)
			i++
		case "EX":
			if i+1 >= len(rest) {
				return arityError("set")
			}
			secs, _ := rest[i+1].AsString()
			n, err := strconv.ParseInt(secs, 10, 64)
			if err != nil {
				return resp.Err("ERR value is not an integer or out of range")
			}
			opts.HasExpiry = true
			opts.ExpiresAt = time.Now().Add(time.Duration(n) * time.Second)
			i++
		default:
			return unknownOption(opt)
		}
	}

	return d.Keyspace.Set(key, val, opts)
}

func cmdGet(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 1 {
		return arityError("get")
	}
	key, _ := args[0].AsString()
	if d.Streams.Exists(key) {
		return typeError("get")
	}
	return d.Keyspace.Get(key)
}

func cmdDel(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 1 {
		return arityError("del")
	}
	key, _ := args[0].AsString()
	return d.Keyspace.Del(key)
}

func cmdExists(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 1 {
		return arityError("exists")
	}
	key, _ := args[0].AsString()
	return d.Keyspace.Exists(key)
}

func cmdIncr(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 1 {
		return arityError("incr")
	}
	key, _ := args[0].AsString()
	if d.Streams.Exists(key) {
		return typeError("incr")
	}
	return d.Keyspace.Incr(key, 1)
}

func cmdDecr(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 1 {
		return arityError("decr")
	}
	key, _ := args[0].AsString()
	if d.Streams.Exists(key) {
		return typeError("decr")
	}
	return d.Keyspace.Incr(key, -1)
}

func cmdType(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 1 {
		return arityError("type")
	}
	key, _ := args[0].AsString()
	if d.Streams.Exists(key) {
		return resp.SimpleString("stream")
	}
	if _, ok := d.Keyspace.Type(key); ok {
		return resp.SimpleString("string")
	}
	return resp.SimpleString("none")
}

func cmdKeys(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 1 {
		return arityError("keys")
	}
	pattern, _ := args[0].AsString()
	return d.Keyspace.Keys(pattern)
}

func cmdExpire(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 2 {
		return arityError("expire")
	}
	key, _ := args[0].AsString()
	secsStr, _ := args[1].AsString()
	secs, err := strconv.ParseInt(secsStr, 10, 64)
	if err != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	return d.Keyspace.Expire(key, time.Duration(secs)*time.Second)
}

func cmdPexpire(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 2 {
		return arityError("pexpire")
	}
	key, _ := args[0].AsString()
	msStr, _ := args[1].AsString()
	ms, err := strconv.ParseInt(msStr, 10, 64)
	if err != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	return d.Keyspace.Expire(key, time.Duration(ms)*time.Millisecond)
}

func cmdTTL(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 1 {
		return arityError("ttl")
	}
	key, _ := args[0].AsString()
	return d.Keyspace.TTL(key)
}

func cmdPTTL(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 1 {
		return arityError("pttl")
	}
	key, _ := args[0].AsString()
	return d.Keyspace.PTTL(key)
}

func cmdFlushAll(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	d.Keyspace.FlushAll()
	return resp.SimpleString("OK")
}

func cmdCommand(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	return resp.Array()
}
