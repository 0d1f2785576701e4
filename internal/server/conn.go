package server

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"redisserver/internal/dispatch"
	"redisserver/internal/resp"
)

// snapshotPause is the post-handshake delay before shipping the PSYNC
// snapshot frame, giving the replica time to drain its read buffer after
// FULLRESYNC, per spec.md §5 and the literal sleep(Duration::from_millis(50))
// in original_source's add_new_slave_handler.
const snapshotPause = 50 * time.Millisecond

// serveConn runs the per-connection loop described in spec.md §4.7: read
// one frame, dispatch, write the reply, optionally append to the
// replication log, and detach to the replica registry on PSYNC.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("connection handler panicked")
		}
	}()

	reader := resp.NewReader(conn)
	c := &dispatch.Conn{RemoteAddr: conn.RemoteAddr(), NetConn: conn}

	for {
		frame, err := reader.ReadFrame(false)
		if err != nil {
			if err != io.EOF {
				s.log.WithFields(logrus.Fields{"peer": conn.RemoteAddr(), "err": err}).Debug("connection read failed")
			}
			conn.Close()
			return
		}

		result := s.dispatcher.Handle(ctx, c, frame)

		if err := resp.WriteValue(conn, result.Value); err != nil {
			conn.Close()
			return
		}
		if len(result.ExtraFrame) > 0 {
			time.Sleep(snapshotPause)
			if _, err := conn.Write(result.ExtraFrame); err != nil {
				conn.Close()
				return
			}
		}

		if result.IsWrite {
			s.repl.Propagate(resp.Encode(frame))
		}

		if result.Detached {
			// Ownership of conn now belongs to the replication fan-out
			// loop; stop reading from it here.
			return
		}
	}
}
