package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/aghoras/netprim/internal/framing"
	"github.com/aghoras/netprim/internal/hooks"
	"github.com/aghoras/netprim/internal/logger"
)

// Config holds server configuration knobs, mirroring the teacher server's
// Config/applyDefaults shape.
type Config struct {
	ListenAddr  string
	HookManager *hooks.Manager
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9000"
	}
}

// Server accepts TCP connections, reassembles frames on each, and dispatches
// them to a caller-supplied handler. Adapted from the teacher's
// server.Server (accept loop, connection registry, graceful Stop,
// singleConnListener test seam), stripped of RTMP handshake/command
// handling and wired to internal/hooks instead of the teacher's bespoke
// RTMP hook triggers.
type Server struct {
	cfg Config
	l   net.Listener
	log *slog.Logger

	onMessage func(connID string, msg framing.Message)

	mu          sync.RWMutex
	conns       map[string]*Connection
	acceptingWg sync.WaitGroup
	closing     bool
}

// New builds an unstarted Server.
func New(cfg Config, onMessage func(connID string, msg framing.Message)) *Server {
	cfg.applyDefaults()
	return &Server{
		cfg:       cfg,
		conns:     make(map[string]*Connection),
		log:       logger.Logger().With("component", "tcp_server"),
		onMessage: onMessage,
	}
}

// Start begins listening and launches the accept loop. Safe to call once.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.l != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.l = ln
	s.mu.Unlock()

	s.log.Info("tcp server listening", "addr", ln.Addr().String())
	s.acceptingWg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.acceptingWg.Done()
	for {
		s.mu.RLock()
		l := s.l
		s.mu.RUnlock()
		if l == nil {
			return
		}
		raw, err := l.Accept()
		if err != nil {
			s.mu.RLock()
			closing := s.closing
			s.mu.RUnlock()
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if closing || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept error", "error", err)
			return
		}

		single := &singleConnListener{conn: raw}
		c, err := Accept(single, s.cfg.HookManager)
		if err != nil {
			continue
		}

		s.mu.Lock()
		s.conns[c.ID()] = c
		s.mu.Unlock()

		s.triggerHookEvent(hooks.EventConnectionAccept, c.ID(), map[string]interface{}{
			"peer_addr": raw.RemoteAddr().String(),
		})

		c.SetMessageHandler(func(msg framing.Message) {
			if s.onMessage != nil {
				s.onMessage(c.ID(), msg)
			}
		})
		c.Start()
	}
}

// Send transmits body to the connection identified by connID.
func (s *Server) Send(connID string, body []byte) error {
	s.mu.RLock()
	c, ok := s.conns[connID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown connection %q", connID)
	}
	return c.Send(body)
}

// Broadcast transmits body to every currently tracked connection, skipping
// (and logging) any that fail rather than aborting the whole broadcast.
func (s *Server) Broadcast(body []byte) {
	s.mu.RLock()
	targets := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(body); err != nil {
			s.log.Warn("broadcast send failed", "conn_id", c.ID(), "error", err)
		}
	}
}

// CloseConnection closes and deregisters one connection.
func (s *Server) CloseConnection(connID string) error {
	s.mu.Lock()
	c, ok := s.conns[connID]
	delete(s.conns, connID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown connection %q", connID)
	}
	s.triggerHookEvent(hooks.EventConnectionClose, connID, map[string]interface{}{"reason": "closed_by_server"})
	return c.Close()
}

// Stop gracefully shuts down the server: stops accepting, closes all
// connections, waits for the accept loop to exit.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.l == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	l := s.l
	s.l = nil
	s.mu.Unlock()
	_ = l.Close()

	s.mu.Lock()
	for id, c := range s.conns {
		s.triggerHookEvent(hooks.EventConnectionClose, id, map[string]interface{}{"reason": "server_shutdown"})
		_ = c.Close()
		delete(s.conns, id)
	}
	s.mu.Unlock()

	s.acceptingWg.Wait()
	s.log.Info("tcp server stopped")
	return nil
}

// Addr returns the bound listener address, nil if not started.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.l == nil {
		return nil
	}
	return s.l.Addr()
}

// ConnectionCount returns the number of tracked active connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *Server) triggerHookEvent(eventType hooks.EventType, connID string, data map[string]interface{}) {
	if s.cfg.HookManager == nil {
		return
	}
	event := hooks.NewEvent(eventType).WithConnID(connID)
	for k, v := range data {
		event.WithData(k, v)
	}
	s.cfg.HookManager.TriggerEvent(context.Background(), *event)
}

// singleConnListener adapts one pre-accepted net.Conn as a one-shot
// net.Listener, letting the shared Accept() helper wrap connections from
// both the server's real listener and from tests.
type singleConnListener struct{ conn net.Conn }

func (s *singleConnListener) Accept() (net.Conn, error) {
	if s.conn == nil {
		return nil, errors.New("no conn")
	}
	c := s.conn
	s.conn = nil
	return c, nil
}

func (s *singleConnListener) Close() error {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	return nil
}

func (s *singleConnListener) Addr() net.Addr {
	if s.conn != nil {
		return s.conn.LocalAddr()
	}
	return &net.TCPAddr{}
}
