package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"redisserver/internal/replication"
	"redisserver/internal/resp"
)

func cmdReplconf(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) < 1 {
		return arityError("replconf")
	}
	sub, _ := args[0].AsString()
	switch strings.ToUpper(sub) {
	case "LISTENING-PORT":
		if len(args) != 2 {
			return arityError("replconf")
		}
		port, _ := args[1].AsString()
		c.ListenPort = port
		return resp.SimpleString("OK")
	case "CAPA":
		return resp.SimpleString("OK")
	default:
		return resp.SimpleString("OK")
	}
}

// cmdPsync handles PSYNC ? -1: it replies FULLRESYNC, arranges for the
// snapshot frame to be sent after it via Handle's ExtraFrame, and
// marks the connection detached so the server loop hands its socket to the
// replication registry instead of continuing the normal read loop.
func cmdPsync(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if d.Repl == nil || c.NetConn == nil {
		return resp.Err("ERR replication is not enabled")
	}

	reply := resp.SimpleString(fmt.Sprintf("FULLRESYNC %s %d", d.Repl.ReplID(), d.Repl.Offset()))
	c.Detached = true
	c.pendingSnapshot = resp.Encode(resp.Snapshot(replication.EmptySnapshot()))
	c.pendingRegister = true
	return reply
}

func cmdWait(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 2 {
		return arityError("wait")
	}
	if d.Repl == nil {
		return resp.Integer(0)
	}
	numStr, _ := args[0].AsString()
	timeoutStr, _ := args[1].AsString()
	num, err := strconv.Atoi(numStr)
	if err != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	timeoutMs, err := strconv.ParseInt(timeoutStr, 10, 64)
	if err != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	n := d.Repl.Wait(ctx, num, time.Duration(timeoutMs)*time.Millisecond)
	return resp.Integer(int64(n))
}
