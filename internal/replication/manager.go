package replication

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"redisserver/internal/resp"
)

// fanoutInterval matches spec.md §5's "fan-out at ~1 ms" cadence.
const fanoutInterval = time.Millisecond

// getackEvery is how often the fan-out loop sends a REPLCONF GETACK *
// offset solicitation, whether or not any commands were forwarded since the
// previous one; each one is counted into master_repl_offset.
const getackEvery = 100 * time.Millisecond

// Session is one connected replica as tracked by the master.
type Session struct {
	ID         int64
	PeerIP     string
	ListenAddr string

	conn net.Conn

	mu     sync.Mutex
	cursor int64 // index into Manager.log already forwarded to this replica

	ackedOffset atomic.Int64
}

func (s *Session) write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Write(b)
	return err
}

// Manager is the master-side replication controller: the command log,
// replica registry, and fan-out loop.
type Manager struct {
	replID string
	log    *logrus.Logger

	mu         sync.Mutex
	entries    [][]byte
	offset     atomic.Int64
	replicas   map[int64]*Session
	nextID     int64
	lastGetack time.Time
}

func NewManager(log *logrus.Logger) *Manager {
	return &Manager{
		replID:   generateReplID(),
		replicas: make(map[int64]*Session),
		log:      log,
	}
}

func (m *Manager) ReplID() string { return m.replID }

func (m *Manager) Offset() int64 { return m.offset.Load() }

// Register adds a new replica session, initializing its cursor to the
// current log length, so it only receives commands appended after this
// point. Call after sending the FULLRESYNC reply and snapshot frame.
func (m *Manager) Register(conn net.Conn, peerIP, listenAddr string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	s := &Session{ID: m.nextID, PeerIP: peerIP, ListenAddr: listenAddr, conn: conn, cursor: int64(len(m.entries))}
	m.replicas[s.ID] = s
	if m.log != nil {
		m.log.WithFields(logrus.Fields{"replica": listenAddr}).Info("replica registered")
	}
	return s
}

// Unregister drops a replica, e.g. after a write failure.
func (m *Manager) Unregister(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.replicas, id)
}

// ReplicaCount reports how many replicas are currently registered.
func (m *Manager) ReplicaCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replicas)
}

// Propagate appends a write command's serialized frame to the master log,
// advancing master_repl_offset by its byte length.
func (m *Manager) Propagate(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, frame)
	m.offset.Add(int64(len(frame)))
}

// ReportAck records a replica's self-reported applied-bytes offset in
// response to REPLCONF GETACK *.
func (m *Manager) ReportAck(id int64, offset int64) {
	m.mu.Lock()
	s, ok := m.replicas[id]
	m.mu.Unlock()
	if ok {
		s.ackedOffset.Store(offset)
	}
}

// Run drives the fan-out loop until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(fanoutInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Manager) tick() {
	m.mu.Lock()
	logLen := int64(len(m.entries))
	dueGetack := time.Since(m.lastGetack) >= getackEvery
	if dueGetack {
		m.lastGetack = time.Now()
	}
	sessions := make([]*Session, 0, len(m.replicas))
	for _, s := range m.replicas {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		cursor := s.cursor
		s.mu.Unlock()
		if cursor >= logLen {
			continue
		}

		m.mu.Lock()
		pending := m.entries[cursor:logLen]
		var combined []byte
		for _, frame := range pending {
			combined = append(combined, frame...)
		}
		m.mu.Unlock()

		if err := s.write(combined); err != nil {
			m.Unregister(s.ID)
			continue
		}
		s.mu.Lock()
		s.cursor = logLen
		s.mu.Unlock()
	}

	if dueGetack {
		getack := resp.Encode(resp.Array(resp.BulkString("REPLCONF"), resp.BulkString("GETACK"), resp.BulkString("*")))
		m.Propagate(getack)
		newLen := int64(len(m.entries))
		for _, s := range sessions {
			if err := s.write(getack); err != nil {
				m.Unregister(s.ID)
				continue
			}
			s.mu.Lock()
			s.cursor = newLen
			s.mu.Unlock()
		}
	}
}

// Wait implements WAIT numreplicas timeout_ms: poll every 100ms for
// replicas whose acknowledged offset has caught up to master_repl_offset.
func (m *Manager) Wait(ctx context.Context, numReplicas int, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	target := m.Offset()
	for {
		count := m.countCaughtUp(target)
		if count >= numReplicas || time.Now().After(deadline) {
			return count
		}
		select {
		case <-ctx.Done():
			return count
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (m *Manager) countCaughtUp(target int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.replicas {
		if s.ackedOffset.Load() == target {
			n++
		}
	}
	return n
}

// Info renders the INFO replication field set, ordered and defaulted per
// original_source's RCliInfo/get_replication_info.
func (m *Manager) Info(role string) string {
	fields := []struct{ key, val string }{
		{"role", role},
		{"connected_slaves", strconv.Itoa(m.ReplicaCount())},
		{"master_replid", m.replID},
		{"master_repl_offset", strconv.FormatInt(m.Offset(), 10)},
		{"second_repl_offset", "-1"},
		{"repl_backlog_active", "0"},
		{"repl_backlog_size", "1048576"},
		{"repl_backlog_first_byte_offset", "0"},
		{"repl_backlog_histlen", "0"},
	}
	var out string
	for _, f := range fields {
		out += f.key + ":" + f.val + "\n"
	}
	return out
}
