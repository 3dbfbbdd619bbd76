package server

import (
	"log/slog"

	"minichat/internal/protocol"
)

type state int

const (
	stateConnected state = iota
	stateAwaitingName
	stateActive
	stateClosing
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateConnected:
		return "connected"
	case stateAwaitingName:
		return "awaiting-name"
	case stateActive:
		return "active"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// session drives one registered client from greeting to teardown.  All of its
// fields are owned by the session goroutine.
type session struct {
	client      *Client
	in          *protocol.LineReader
	registry    *Registry
	broadcaster *Broadcaster
	logger      *slog.Logger

	state  state
	joined bool // join notice sent; a departure notice is owed
}

func (s *Server) newSession(c *Client) *session {
	return &session{
		client:      c,
		in:          protocol.NewLineReader(c.conn, s.cfg.BufferSize),
		registry:    s.registry,
		broadcaster: s.broadcaster,
		logger:      s.logger.With("id", c.ID(), "remote", c.RemoteAddr()),
		state:       stateConnected,
	}
}

// run blocks until the peer goes away.  Teardown runs on every exit path.
func (s *session) run() {
	defer s.teardown()

	s.state = stateAwaitingName
	s.send(protocol.Banner)
	s.send(protocol.NamePrompt)

	name, err := s.in.ReadLine()
	if err != nil {
		s.logger.Info("client left before naming itself", "err", err)
		return
	}
	s.client.SetName(name)
	s.logger = s.logger.With("name", name)

	s.state = stateActive
	s.send(protocol.Welcome(name))
	s.joined = true
	s.broadcaster.Broadcast(protocol.JoinNotice(name), s.client.ID())
	s.logger.Info("client joined")

	for {
		s.send(protocol.PromptMarker)
		line, err := s.in.ReadLine()
		if err != nil {
			s.send(protocol.TransferFailed)
			s.logger.Debug("read ended", "err", err)
			return
		}
		s.logger.Debug("message", "text", line)
		s.broadcaster.Broadcast(protocol.ChatLine(name, line), s.client.ID())
	}
}

// teardown announces the departure, closes the connection and releases the
// registry slot.  Each step runs exactly once per session.
func (s *session) teardown() {
	s.state = stateClosing

	if s.joined {
		s.broadcaster.Broadcast(protocol.LeaveNotice(s.client.Name()), s.client.ID())
	}
	if err := s.client.Close(); err != nil {
		s.logger.Debug("close failed", "err", err)
	}
	s.registry.Remove(s.client.ID())

	s.state = stateClosed
	s.logger.Info("client disconnected", "total", s.registry.Len())
}

// send writes to the own client.  Failures surface on the next read.
func (s *session) send(msg string) {
	if err := s.client.Send(msg); err != nil {
		s.logger.Debug("write failed", "state", s.state, "err", err)
	}
}
