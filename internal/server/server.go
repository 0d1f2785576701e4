// Package server implements the per-connection accept loop and startup
// wiring (C8, plus the startup half of C9), grounded on the teacher's
// HandleLegacy-style connection loop in internal/handler/handler.go,
// generalized to this spec's dispatcher and supervised with
// golang.org/x/sync/errgroup the way the teacher's goroutine fan-out is.
package server

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"redisserver/internal/config"
	"redisserver/internal/dispatch"
	"redisserver/internal/keyspace"
	"redisserver/internal/replication"
	"redisserver/internal/resp"
	"redisserver/internal/snapshot"
	"redisserver/internal/streams"
)

// Server owns the listener and every shared subsystem.
type Server struct {
	cfg config.Config
	log *logrus.Logger

	keyspace *keyspace.Keyspace
	streams  *streams.Engine
	repl     *replication.Manager
	dispatcher *dispatch.Dispatcher

	listener net.Listener
}

func New(cfg config.Config, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	ks := keyspace.New()
	st := streams.NewEngine()
	repl := replication.NewManager(log)

	s := &Server{
		cfg:      cfg,
		log:      log,
		keyspace: ks,
		streams:  st,
		repl:     repl,
	}
	s.dispatcher = dispatch.New(ks, st, cfg, repl, log)
	return s
}

// LoadSnapshot hydrates the keyspace from the configured RDB path. A
// missing file is logged at info level and otherwise ignored, per
// spec.md §4.4.
func (s *Server) LoadSnapshot() {
	path := s.cfg.RDBPath()
	if path == "" {
		return
	}
	result, ok, err := snapshot.Load(path, s.log)
	if err != nil {
		s.log.WithError(err).Warn("snapshot load failed, starting with an empty keyspace")
		return
	}
	if !ok {
		s.log.WithField("path", path).Info("no snapshot file found, starting empty")
		return
	}

	now := time.Now()
	restored := 0
	for _, entry := range result.Strings {
		if entry.ExpiresAt != nil && !now.Before(*entry.ExpiresAt) {
			continue
		}
		var value resp.Value
		if entry.IsInteger {
			value = coerceInteger(entry.Value)
		} else {
			value = resp.BulkString(entry.Value)
		}
		s.keyspace.SetRaw(entry.Key, value, entry.ExpiresAt)
		restored++
	}
	s.log.WithFields(logrus.Fields{"path": path, "keys": restored}).Info("snapshot loaded")
}

func coerceInteger(s string) resp.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return resp.Integer(n)
	}
	return resp.BulkString(s)
}

// Listen binds the TCP listener. Callers should check the returned error
// to set a non-zero process exit code on bind failure, per spec.md §6.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.Port)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.listener = l
	s.log.WithField("addr", addr).Info("listening")
	return nil
}

// Addr returns the bound listener address. Only meaningful after Listen
// has succeeded; used by tests to dial a server started on port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run drives the accept loop and the replication fan-out loop until ctx
// is cancelled, via an errgroup the way the teacher supervises background
// goroutines.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.repl.Run(ctx)
	})

	g.Go(func() error {
		return s.acceptLoop(ctx)
	})

	if s.cfg.Role == config.RoleReplica {
		g.Go(func() error {
			return s.runReplicaClient(ctx)
		})
	}

	go func() {
		<-ctx.Done()
		if s.listener != nil {
			s.listener.Close()
		}
	}()

	return g.Wait()
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) runReplicaClient(ctx context.Context) error {
	client := replication.NewClient(s.cfg.MasterAddr(), s.cfg.Port, s.log)
	applyConn := &dispatch.Conn{}
	err := client.Run(ctx, func(args []resp.Value) resp.Value {
		return s.dispatcher.Handle(ctx, applyConn, resp.Array(args...)).Value
	})
	if err != nil && ctx.Err() == nil {
		s.log.WithError(err).Warn("replica role terminated, continuing to serve clients locally")
	}
	return nil
}
