package replication

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptySnapshotStartsWithMagic(t *testing.T) {
	b := EmptySnapshot()
	require.True(t, len(b) >= 50)
	assert.Equal(t, "REDIS", string(b[:5]))
}

func TestReplIDIsFortyHexChars(t *testing.T) {
	id := generateReplID()
	assert.Len(t, id, 40)
}

func TestWaitReturnsImmediatelyWhenSatisfied(t *testing.T) {
	m := NewManager(nil)
	n := m.Wait(context.Background(), 0, 100*time.Millisecond)
	assert.Equal(t, 0, n)
}

func TestWaitCountsAckedReplicas(t *testing.T) {
	m := NewManager(nil)
	m.Propagate([]byte("hello"))

	c1, c2 := net.Pipe()
	go func() { _, _ = c2.Read(make([]byte, 64)) }()
	s := m.Register(c1, "127.0.0.1", "127.0.0.1:1111")
	s.ackedOffset.Store(m.Offset())

	n := m.Wait(context.Background(), 1, 200*time.Millisecond)
	assert.Equal(t, 1, n)
}

func TestInfoContainsDefaultFields(t *testing.T) {
	m := NewManager(nil)
	info := m.Info("master")
	assert.Contains(t, info, "role:master\n")
	assert.Contains(t, info, "master_replid:"+m.ReplID())
	assert.Contains(t, info, "second_repl_offset:-1\n")
}

func TestPropagateAdvancesOffset(t *testing.T) {
	m := NewManager(nil)
	assert.Equal(t, int64(0), m.Offset())
	m.Propagate([]byte("12345"))
	assert.Equal(t, int64(5), m.Offset())
}
