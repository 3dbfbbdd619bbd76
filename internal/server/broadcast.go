package server

import (
	"context"
	"log/slog"
)

// Broadcaster fans a message out to every registered client except its sender.
//
// Delivery is best-effort and at-most-once: a failed write to one recipient is
// logged and skipped, and the recipient stays registered until its own session
// notices the broken connection.  Clients still in the handshake receive
// nothing.
type Broadcaster struct {
	registry *Registry
	policy   Policy
	logger   *slog.Logger
}

func NewBroadcaster(r *Registry, policy Policy, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: r,
		policy:   policy,
		logger:   logger,
	}
}

// Broadcast writes message to every named client whose ID differs from
// senderID and returns the number of successful writes.
func (b *Broadcaster) Broadcast(message, senderID string) int {
	delivered := 0
	switch b.policy {
	case PolicySnapshot:
		for _, h := range b.registry.Snapshot() {
			if b.deliver(h, message, senderID, slog.LevelDebug) {
				delivered++
			}
		}
	default:
		b.registry.Each(func(h Handle) {
			if b.deliver(h, message, senderID, slog.LevelWarn) {
				delivered++
			}
		})
	}
	return delivered
}

// deliver logs failures at failLevel.  A snapshot may still hold clients that
// already left, so snapshot failures only get a debug line.
func (b *Broadcaster) deliver(h Handle, message, senderID string, failLevel slog.Level) bool {
	if h.ID() == senderID || !h.Named() {
		return false
	}
	if err := h.Send(message); err != nil {
		b.logger.Log(context.Background(), failLevel, "broadcast write failed",
			"id", h.ID(), "name", h.Name(), "remote", h.RemoteAddr(), "err", err)
		return false
	}
	return true
}
