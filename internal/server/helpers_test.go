package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minichat/internal/protocol"
)

const ioWait = 2 * time.Second

// fakeHandle is an in-memory Handle that records what it was sent.
type fakeHandle struct {
	id    string
	name  string
	named bool

	mu      sync.Mutex
	got     []string
	sendErr error
	closed  int
}

func newFake(id string) *fakeHandle {
	return &fakeHandle{id: id, name: id, named: true}
}

func (f *fakeHandle) ID() string         { return f.id }
func (f *fakeHandle) RemoteAddr() string { return "fake:" + f.id }
func (f *fakeHandle) Name() string       { return f.name }
func (f *fakeHandle) Named() bool        { return f.named }

func (f *fakeHandle) Send(msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.got = append(f.got, msg)
	return nil
}

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeHandle) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}

// peer is the client side of a connection under test.
type peer struct {
	t       *testing.T
	conn    net.Conn
	pending string
}

func dial(t *testing.T, addr string) *peer {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, ioWait)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &peer{t: t, conn: conn}
}

// expect reads until s shows up and consumes everything up to and including it.
func (p *peer) expect(s string) {
	p.t.Helper()
	buf := make([]byte, 4096)
	for {
		if i := strings.Index(p.pending, s); i >= 0 {
			p.pending = p.pending[i+len(s):]
			return
		}
		require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(ioWait)))
		n, err := p.conn.Read(buf)
		p.pending += string(buf[:n])
		if err != nil && !strings.Contains(p.pending, s) {
			require.Failf(p.t, "expected text not received", "want %q, have %q, err %v", s, p.pending, err)
		}
	}
}

// drain returns everything unread plus whatever arrives within d.
func (p *peer) drain(d time.Duration) string {
	p.t.Helper()
	buf := make([]byte, 4096)
	deadline := time.Now().Add(d)
	for {
		require.NoError(p.t, p.conn.SetReadDeadline(deadline))
		n, err := p.conn.Read(buf)
		p.pending += string(buf[:n])
		if err != nil {
			break
		}
	}
	out := p.pending
	p.pending = ""
	return out
}

func (p *peer) send(line string) {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetWriteDeadline(time.Now().Add(ioWait)))
	_, err := io.WriteString(p.conn, line+"\n")
	require.NoError(p.t, err)
}

// join completes the handshake under name.
func (p *peer) join(name string) {
	p.t.Helper()
	p.expect(protocol.NamePrompt)
	p.send(name)
	p.expect(protocol.Welcome(name))
}

// startServer serves on a loopback port and shuts the server down when the
// test ends.
func startServer(t *testing.T, mutate func(*Config)) (*Server, string) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.WriteTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ioWait)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
		assert.True(t, errors.Is(<-served, ErrServerClosed))
	})
	return srv, ln.Addr().String()
}
