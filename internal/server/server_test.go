package server

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redisserver/internal/config"
	"redisserver/internal/resp"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func frame(parts ...string) resp.Value {
	items := make([]resp.Value, len(parts))
	for i, p := range parts {
		items[i] = resp.BulkString(p)
	}
	return resp.Array(items...)
}

// TestServeConnPingSetGet drives a real loopback connection through
// Listen/Run/serveConn end to end, the way a client library would.
func TestServeConnPingSetGet(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 0
	cfg.DBFilename = ""

	srv := New(cfg, quietLog())
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	conn, err := dialWithRetry(srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	reader := resp.NewReader(conn)

	require.NoError(t, resp.WriteValue(conn, frame("PING")))
	reply, err := reader.ReadFrame(false)
	require.NoError(t, err)
	assert.Equal(t, resp.SimpleString("PONG"), reply)

	require.NoError(t, resp.WriteValue(conn, frame("SET", "k", "v")))
	reply, err = reader.ReadFrame(false)
	require.NoError(t, err)
	assert.Equal(t, resp.SimpleString("OK"), reply)

	require.NoError(t, resp.WriteValue(conn, frame("GET", "k")))
	reply, err = reader.ReadFrame(false)
	require.NoError(t, err)
	s, ok := reply.AsString()
	require.True(t, ok)
	assert.Equal(t, "v", s)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}

func dialWithRetry(addr string) (net.Conn, error) {
	var lastErr error
	for i := 0; i < 50; i++ {
		c, err := net.Dial("tcp", addr)
		if err == nil {
			return c, nil
		}
		lastErr = err
		time.Sleep(5 * time.Millisecond)
	}
	return nil, lastErr
}

func lengthPrefixed(s string) []byte {
	return append([]byte{byte(len(s))}, []byte(s)...)
}

// buildMiniSnapshot hand-builds a snapshot with one already-expired string
// entry and one live integer-valued entry, mirroring the fixture shape used
// by the snapshot package's own tests.
func buildMiniSnapshot() []byte {
	var buf bytes.Buffer
	buf.WriteString("REDIS0011")

	// stale: ms-expiry in the past (opcode 0xFC)
	buf.WriteByte(0xFC)
	buf.Write([]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}) // 1ms since epoch
	buf.WriteByte(0x00)
	buf.Write(lengthPrefixed("stale"))
	buf.Write(lengthPrefixed("gone"))

	// fresh: plain entry, inline-int encoded
	buf.WriteByte(0x00)
	buf.Write(lengthPrefixed("fresh"))
	buf.WriteByte(0xC0)
	buf.WriteByte(42)

	buf.WriteByte(0xFF)
	buf.Write(make([]byte, 8))
	return buf.Bytes()
}

func TestLoadSnapshotDropsExpiredAndCoercesIntegers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")
	require.NoError(t, os.WriteFile(path, buildMiniSnapshot(), 0o644))

	cfg := config.Default()
	cfg.Dir = dir
	cfg.DBFilename = "dump.rdb"
	srv := New(cfg, quietLog())
	srv.LoadSnapshot()

	v := srv.keyspace.Get("fresh")
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "42", s)

	assert.Equal(t, resp.Integer(0), srv.keyspace.Exists("stale"))
}
