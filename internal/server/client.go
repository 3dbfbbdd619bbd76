package server

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client represents one accepted TCP connection.
//
// Its identity and remote address are fixed at accept time.  The display name
// is set once, when the handshake completes.  Writes go through a mutex so
// that the owning session's prompts and concurrent broadcasts never interleave
// inside a single message.
type Client struct {
	id           string // unique connection identifier
	conn         net.Conn
	remote       string
	writeTimeout time.Duration

	writeMu sync.Mutex

	// Set once by the owning session; read by broadcasts and the admin view.
	mu    sync.RWMutex
	name  string
	named bool

	closeOnce sync.Once
	closeErr  error
}

func newClient(conn net.Conn, writeTimeout time.Duration) *Client {
	return &Client{
		id:           uuid.NewString(),
		conn:         conn,
		remote:       conn.RemoteAddr().String(),
		writeTimeout: writeTimeout,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) RemoteAddr() string { return c.remote }

func (c *Client) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Named reports whether the handshake has completed.
func (c *Client) Named() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.named
}

// SetName records the display name.  Only the first call has an effect; it
// reports whether this call set the name.
func (c *Client) SetName(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.named {
		return false
	}
	c.name = name
	c.named = true
	return true
}

// Send writes msg to the connection as is.  A write deadline is set for every
// write when the client was built with a write timeout.
func (c *Client) Send(msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.conn, msg)
	return err
}

// Close closes the connection.  Later calls return the first call's result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
