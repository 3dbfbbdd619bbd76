package server

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"minichat/internal/protocol"
)

const (
	DefaultMaxClients   = 100
	DefaultBufferSize   = 1024
	DefaultWriteTimeout = 10 * time.Second
)

// Policy selects how a broadcast walks the registry.
type Policy int

const (
	// PolicyLocked holds the registry lock for the whole fan-out.  Broadcasts
	// are serialized against each other and against registration changes, and
	// a slow recipient stalls them all for up to the write timeout.
	PolicyLocked Policy = iota

	// PolicySnapshot copies the registry under the lock and writes after
	// releasing it.  A client that leaves after the copy may still be written
	// to; that write fails silently.
	PolicySnapshot
)

func (p Policy) String() string {
	switch p {
	case PolicyLocked:
		return "locked"
	case PolicySnapshot:
		return "snapshot"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Set implements flag.Value.
func (p *Policy) Set(s string) error {
	v, err := ParsePolicy(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePolicy accepts "locked" or "snapshot", case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "locked":
		return PolicyLocked, nil
	case "snapshot":
		return PolicySnapshot, nil
	default:
		return 0, fmt.Errorf("unknown broadcast policy %q (want locked or snapshot)", s)
	}
}

// Config holds the server settings.  The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// MaxClients caps the number of registered connections.
	MaxClients int
	// BufferSize bounds a single line read; longer lines are truncated.
	BufferSize int
	// WriteTimeout is the deadline of every write to a client.  Zero disables it.
	WriteTimeout time.Duration
	// Policy is the broadcast policy.
	Policy Policy
	// Logger receives server events.  Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		MaxClients:   DefaultMaxClients,
		BufferSize:   DefaultBufferSize,
		WriteTimeout: DefaultWriteTimeout,
		Policy:       PolicyLocked,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.MaxClients < 1:
		return fmt.Errorf("%w: max clients must be at least 1, got %d", ErrInvalidConfig, c.MaxClients)
	case c.BufferSize < protocol.MinBufferSize:
		return fmt.Errorf("%w: buffer size must be at least %d, got %d", ErrInvalidConfig, protocol.MinBufferSize, c.BufferSize)
	case c.WriteTimeout < 0:
		return fmt.Errorf("%w: negative write timeout %v", ErrInvalidConfig, c.WriteTimeout)
	case c.Policy != PolicyLocked && c.Policy != PolicySnapshot:
		return fmt.Errorf("%w: unknown broadcast policy %v", ErrInvalidConfig, c.Policy)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
