package dispatch

import (
	"context"

	"redisserver/internal/resp"
)

func cmdMulti(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if c.InMulti {
		return resp.Err("ERR MULTI calls can not be nested")
	}
	c.InMulti = true
	c.Queue = nil
	return resp.SimpleString("OK")
}

func cmdDiscard(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if !c.InMulti {
		return resp.Err("ERR DISCARD without MULTI")
	}
	c.InMulti = false
	c.Queue = nil
	return resp.SimpleString("OK")
}

// cmdExec runs every queued command as a single critical section with
// respect to the shared subsystem locks (spec.md §5: "EXEC executes all
// queued commands atomically... single critical section over the batch").
// Each individual write inside the batch is appended to the replication
// log directly here, since the EXEC frame itself is not in writeCommands.
func cmdExec(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if !c.InMulti {
		return resp.Err("ERR EXEC without MULTI")
	}
	queued := c.Queue
	c.InMulti = false
	c.Queue = nil

	results := make([]resp.Value, 0, len(queued))
	for _, qc := range queued {
		v, isWrite := d.execQueued(ctx, c, qc)
		results = append(results, v)
		if isWrite && d.Repl != nil {
			commandArgs := make([]resp.Value, 0, len(qc.Args)+1)
			commandArgs = append(commandArgs, resp.BulkString(qc.Name))
			commandArgs = append(commandArgs, qc.Args...)
			d.Repl.Propagate(resp.Encode(resp.Array(commandArgs...)))
		}
	}
	return resp.Array(results...)
}
