// Package dispatch implements the command table (C6): arity/type checking,
// per-connection transaction state, and routing into keyspace, streams,
// and replication. Grounded on the teacher's internal/handler package's
// map[string]CommandFunc registration pattern, generalized to this spec's
// command set.
package dispatch

import (
	"context"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"redisserver/internal/config"
	"redisserver/internal/keyspace"
	"redisserver/internal/replication"
	"redisserver/internal/resp"
	"redisserver/internal/streams"
)

// CommandFunc executes one command's body given its argument values (the
// command name already stripped) and the requesting connection's state. ctx
// is the server's context, cancelled on shutdown, which also ends blocking
// commands like XREAD BLOCK; a client disconnecting mid-block is not
// noticed until the command returns.
type CommandFunc func(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value

// QueuedCommand is one command deferred by MULTI until EXEC.
type QueuedCommand struct {
	Name string
	Args []resp.Value
}

// Conn is per-connection state the dispatcher needs across calls: the
// transaction queue, the replica listening-port negotiated via REPLCONF,
// and whether this connection has just been promoted to a replica stream.
type Conn struct {
	RemoteAddr net.Addr
	NetConn    net.Conn

	InMulti bool
	Queue   []QueuedCommand

	ListenPort string

	// Detached is set once this connection has been handed off to the
	// replication registry via PSYNC; the server loop must stop reading
	// from NetConn once this is true.
	Detached bool

	pendingSnapshot []byte
	pendingRegister bool
}

// Result is what Handle returns: the reply to write, whether the command
// that produced it must be appended to the replication log, and any extra
// raw frames (used only by PSYNC's snapshot frame) to write after Value.
type Result struct {
	Value      resp.Value
	IsWrite    bool
	ExtraFrame []byte
	Detached   bool
}

// Dispatcher holds the shared subsystems every command handler touches.
type Dispatcher struct {
	Keyspace *keyspace.Keyspace
	Streams  *streams.Engine
	Config   config.Config
	Repl     *replication.Manager
	Log      *logrus.Logger

	table map[string]CommandFunc

	// mu is the single logical lock spec.md §5 describes: every
	// non-blocking command runs while holding it, so EXEC's batch loop
	// (which calls execQueued directly, without re-entering Handle) holds
	// it for the whole batch and other connections cannot interleave a
	// write mid-transaction.
	mu sync.Mutex
}

func New(ks *keyspace.Keyspace, st *streams.Engine, cfg config.Config, repl *replication.Manager, log *logrus.Logger) *Dispatcher {
	d := &Dispatcher{Keyspace: ks, Streams: st, Config: cfg, Repl: repl, Log: log}
	d.table = map[string]CommandFunc{
		"PING":    cmdPing,
		"ECHO":    cmdEcho,
		"SET":     cmdSet,
		"GET":     cmdGet,
		"DEL":     cmdDel,
		"EXISTS":  cmdExists,
		"INCR":    cmdIncr,
		"DECR":    cmdDecr,
		"TYPE":    cmdType,
		"KEYS":    cmdKeys,
		"EXPIRE":  cmdExpire,
		"PEXPIRE": cmdPexpire,
		"TTL":     cmdTTL,
		"PTTL":    cmdPTTL,
		"FLUSHALL": cmdFlushAll,
		"COMMAND":  cmdCommand,
		"CONFIG":   cmdConfig,
		"INFO":     cmdInfo,
		"XADD":     cmdXAdd,
		"XRANGE":   cmdXRange,
		"XREAD":    cmdXRead,
		"MULTI":    cmdMulti,
		"EXEC":     cmdExec,
		"DISCARD":  cmdDiscard,
		"REPLCONF": cmdReplconf,
		"PSYNC":    cmdPsync,
		"WAIT":     cmdWait,
	}
	return d
}

// writeCommands is the exact set spec.md §4.6 names for the master
// command log: "any successfully executed write command (SET, DEL)".
var writeCommands = map[string]bool{"SET": true, "DEL": true}

// unlocked holds commands that must not run under Dispatcher.mu: both can
// block for as long as their timeout, and holding the shared lock across
// that wait would stall every other connection, not just the caller's,
// which spec.md §5's single-critical-section model never asks for.
var unlocked = map[string]bool{"XREAD": true, "WAIT": true}

// Handle parses and executes one already-decoded command frame (an Array
// of BulkStrings), honoring MULTI/EXEC/DISCARD queuing.
func (d *Dispatcher) Handle(ctx context.Context, c *Conn, frame resp.Value) Result {
	if frame.Type != resp.TypeArray || len(frame.Array) == 0 {
		return Result{Value: resp.Err("ERR invalid command frame")}
	}

	rawName, _ := frame.Array[0].AsString()
	name := strings.ToUpper(rawName)
	args := frame.Array[1:]

	if c.InMulti && name != "MULTI" && name != "EXEC" && name != "DISCARD" {
		if _, ok := d.table[name]; !ok {
			return Result{Value: unknownCommand(rawName)}
		}
		c.Queue = append(c.Queue, QueuedCommand{Name: name, Args: args})
		return Result{Value: resp.SimpleString("QUEUED")}
	}

	fn, ok := d.table[name]
	if !ok {
		return Result{Value: unknownCommand(rawName)}
	}

	var value resp.Value
	if unlocked[name] {
		value = fn(ctx, d, c, args)
	} else {
		d.mu.Lock()
		value = fn(ctx, d, c, args)
		d.mu.Unlock()
	}
	res := Result{Value: value, IsWrite: writeCommands[name] && value.Type != resp.TypeError}

	if c.pendingRegister {
		res.ExtraFrame = c.pendingSnapshot
		res.Detached = true
		c.pendingSnapshot = nil
		c.pendingRegister = false
		if d.Repl != nil && c.NetConn != nil {
			ip := peerIP(c.RemoteAddr)
			d.Repl.Register(c.NetConn, ip, ip+":"+c.ListenPort)
		}
	}
	return res
}

func peerIP(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	return addr.String()
}

// execQueued runs one queued command outside of the MULTI intercept path
// (EXEC's batch loop), still tracking whether it was a replicated write.
func (d *Dispatcher) execQueued(ctx context.Context, c *Conn, qc QueuedCommand) (resp.Value, bool) {
	fn, ok := d.table[qc.Name]
	if !ok {
		return unknownCommand(qc.Name), false
	}
	v := fn(ctx, d, c, qc.Args)
	return v, writeCommands[qc.Name] && v.Type != resp.TypeError
}

func argStrings(args []resp.Value) []string {
	out := make([]string, len(args))
	for i, a := range args {
		s, _ := a.AsString()
		out[i] = s
	}
	return out
}
