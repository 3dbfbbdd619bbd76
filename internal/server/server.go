// Package server implements the TCP chat relay.
//
// Concurrency overview
// --------------------
//
//	┌─────────────────────────────────────────────────────────┐
//	│  Accept loop (Serve)                                    │
//	│  Registers each connection, capacity permitting, and    │
//	│  starts one session goroutine for it.                   │
//	└───────────────────┬─────────────────────────────────────┘
//	                    │  TryRegister / Remove
//	                    ▼
//	┌─────────────────────────────────────────────────────────┐
//	│  Registry  (sync.Mutex)                                 │
//	│  Bounded set of live clients, shared by all sessions.   │
//	└───────────────────▲─────────────────────────────────────┘
//	                    │  Each / Snapshot
//	┌───────────────────┴─────────────────────────────────────┐
//	│  Session goroutines  (one per client)                   │
//	│  Handshake, then read a line and Broadcast it, until    │
//	│  the peer goes away; teardown always releases the slot. │
//	└─────────────────────────────────────────────────────────┘
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Server ties together the accept loop, the Registry and the Broadcaster.
type Server struct {
	cfg         Config
	logger      *slog.Logger
	registry    *Registry
	broadcaster *Broadcaster

	mu       sync.Mutex
	listener net.Listener
	closing  bool
	live     map[*Client]struct{} // clients with a running session
	sessions sync.WaitGroup

	accepted atomic.Uint64
	rejected atomic.Uint64
}

// Stats is a point-in-time view of the server.
type Stats struct {
	Clients  int    `json:"clients"`
	Capacity int    `json:"capacity"`
	Policy   string `json:"policy"`
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

// ClientInfo describes one registered client.
type ClientInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Remote string `json:"remote"`
	Named  bool   `json:"named"`
}

// New creates a Server from cfg.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.logger()
	reg := NewRegistry(cfg.MaxClients)
	return &Server{
		cfg:         cfg,
		logger:      logger,
		registry:    reg,
		broadcaster: NewBroadcaster(reg, cfg.Policy, logger.With("component", "broadcast")),
		live:        make(map[*Client]struct{}),
	}, nil
}

// ListenAndServe listens on the TCP address addr and then calls Serve.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.  Accept errors are logged
// and retried; Serve returns ErrServerClosed after Shutdown, or the accept
// error if ln was closed by somebody else.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("listening",
		"addr", ln.Addr().String(),
		"capacity", s.registry.Cap(),
		"policy", s.cfg.Policy.String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("server: accept: %w", err)
			}
			backoff = nextBackoff(backoff)
			s.logger.Warn("accept failed", "err", err, "retry_in", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		s.handleConn(conn)
	}
}

// Shutdown stops accepting, closes every client connection and waits for the
// sessions to finish or ctx to expire.  It never waits on the registry lock:
// closing a connection also fails a write that is stuck holding it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	ln := s.listener
	live := make([]*Client, 0, len(s.live))
	for c := range s.live {
		live = append(live, c)
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = fmt.Errorf("server: close listener: %w", cerr)
		}
	}
	for _, c := range live {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports registry occupancy and accept counters.
func (s *Server) Stats() Stats {
	return Stats{
		Clients:  s.registry.Len(),
		Capacity: s.registry.Cap(),
		Policy:   s.cfg.Policy.String(),
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
	}
}

// Clients lists the registered clients in registration order.
func (s *Server) Clients() []ClientInfo {
	handles := s.registry.Snapshot()
	out := make([]ClientInfo, 0, len(handles))
	for _, h := range handles {
		out = append(out, ClientInfo{
			ID:     h.ID(),
			Name:   h.Name(),
			Remote: h.RemoteAddr(),
			Named:  h.Named(),
		})
	}
	return out
}

// handleConn registers conn and starts its session.  A full registry closes
// conn right away, before anything is written to it.
func (s *Server) handleConn(conn net.Conn) {
	s.accepted.Add(1)
	c := newClient(conn, s.cfg.WriteTimeout)

	if !s.registry.TryRegister(c) {
		s.rejected.Add(1)
		s.logger.Warn("client limit reached, connection rejected",
			"remote", c.RemoteAddr(), "capacity", s.registry.Cap())
		c.Close()
		return
	}
	s.logger.Info("client connected", "id", c.ID(), "remote", c.RemoteAddr(), "total", s.registry.Len())

	if !s.startSession(c) {
		s.logger.Warn("session not started, server is closing", "id", c.ID())
		s.registry.Remove(c.ID())
		c.Close()
	}
}

// startSession runs the session in its own goroutine unless Shutdown has
// begun.  The client stays in the live set until its session returns.
func (s *Server) startSession(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.live[c] = struct{}{}
	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		defer s.untrack(c)
		s.newSession(c).run()
	}()
	return true
}

func (s *Server) untrack(c *Client) {
	s.mu.Lock()
	delete(s.live, c)
	s.mu.Unlock()
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	if d *= 2; d > maxAcceptBackoff {
		d = maxAcceptBackoff
	}
	return d
}
