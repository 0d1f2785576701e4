package replication

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"redisserver/internal/resp"
)

// handshakeTimeout is the 1-second read deadline spec.md §5 imposes on
// each master response during the replica-side handshake.
const handshakeTimeout = time.Second

// ApplyFunc dispatches one command array decoded from the master's stream
// into the local command table. Kept as a callback, rather than an import
// of the dispatch package, to avoid a dependency cycle (dispatch in turn
// needs to reach this package to serve REPLCONF/PSYNC/WAIT).
type ApplyFunc func(args []resp.Value) resp.Value

// Client drives the replica side of the protocol: the initial handshake
// and the subsequent apply loop reading the master's command stream.
type Client struct {
	masterAddr string
	ownPort    int
	log        *logrus.Logger

	bytesApplied atomic.Int64
}

func NewClient(masterAddr string, ownPort int, log *logrus.Logger) *Client {
	return &Client{masterAddr: masterAddr, ownPort: ownPort, log: log}
}

func (c *Client) BytesApplied() int64 { return c.bytesApplied.Load() }

// Run connects to the master, performs the handshake, and then applies the
// replicated command stream until ctx is cancelled or the connection
// drops. It returns nil on a clean upstream EOF.
func (c *Client) Run(ctx context.Context, apply ApplyFunc) error {
	conn, err := net.Dial("tcp", c.masterAddr)
	if err != nil {
		return fmt.Errorf("replication: dial master: %w", err)
	}
	defer conn.Close()

	r := resp.NewReader(conn)
	if err := c.handshake(conn, r); err != nil {
		return fmt.Errorf("replication: handshake: %w", err)
	}

	if c.log != nil {
		c.log.WithField("master", c.masterAddr).Info("replica handshake complete, entering apply loop")
	}

	return c.applyLoop(ctx, conn, r, apply)
}

func (c *Client) handshake(conn net.Conn, r *resp.Reader) error {
	send := func(args ...string) error {
		items := make([]resp.Value, len(args))
		for i, a := range args {
			items[i] = resp.BulkString(a)
		}
		return resp.WriteValue(conn, resp.Array(items...))
	}

	if err := send("PING"); err != nil {
		return err
	}
	if _, err := r.ReadFrameTimeout(false, handshakeTimeout); err != nil {
		return fmt.Errorf("PING: %w", err)
	}

	if err := send("REPLCONF", "listening-port", fmt.Sprintf("%d", c.ownPort)); err != nil {
		return err
	}
	if _, err := r.ReadFrameTimeout(false, handshakeTimeout); err != nil {
		return fmt.Errorf("REPLCONF listening-port: %w", err)
	}

	if err := send("REPLCONF", "capa", "psync2"); err != nil {
		return err
	}
	if _, err := r.ReadFrameTimeout(false, handshakeTimeout); err != nil {
		return fmt.Errorf("REPLCONF capa: %w", err)
	}

	if err := send("PSYNC", "?", "-1"); err != nil {
		return err
	}
	if _, err := r.ReadFrameTimeout(false, handshakeTimeout); err != nil {
		return fmt.Errorf("PSYNC: %w", err)
	}

	snap, err := r.ReadFrameTimeout(true, handshakeTimeout)
	if err != nil {
		return fmt.Errorf("snapshot frame: %w", err)
	}
	if snap.Type != resp.TypeSnapshot {
		return fmt.Errorf("expected snapshot frame, got type %v", snap.Type)
	}
	return nil
}

// applyLoop reads RESP frames from the master and dispatches each one,
// tracking bytesApplied by serialized frame length and answering
// REPLCONF GETACK * on the same socket, per spec.md §4.6 step 7.
func (c *Client) applyLoop(ctx context.Context, conn net.Conn, r *resp.Reader, apply ApplyFunc) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		v, err := r.ReadFrame(false)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if v.Type != resp.TypeArray {
			continue
		}

		frameLen := len(resp.Encode(v))
		name, _ := commandName(v)

		if name == "REPLCONF" && len(v.Array) >= 2 {
			if sub, _ := v.Array[1].AsString(); strings.EqualFold(sub, "GETACK") {
				c.bytesApplied.Add(int64(frameLen))
				reply := resp.Array(resp.BulkString("REPLCONF"), resp.BulkString("ACK"), resp.BulkString(fmt.Sprintf("%d", c.bytesApplied.Load())))
				if err := resp.WriteValue(conn, reply); err != nil {
					return err
				}
				continue
			}
		}

		apply(v.Array)
		c.bytesApplied.Add(int64(frameLen))
	}
}

func commandName(v resp.Value) (string, bool) {
	if len(v.Array) == 0 {
		return "", false
	}
	s, ok := v.Array[0].AsString()
	return strings.ToUpper(s), ok
}
