package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestBroadcaster_Broadcast(t *testing.T) {
	for _, policy := range []Policy{PolicyLocked, PolicySnapshot} {
		t.Run(policy.String(), func(t *testing.T) {
			r := NewRegistry(8)
			alice, bob, carol := newFake("alice"), newFake("bob"), newFake("carol")
			broken := newFake("broken")
			broken.sendErr = errors.New("connection reset")
			unnamed := newFake("unnamed")
			unnamed.named = false

			for _, h := range []*fakeHandle{alice, broken, bob, unnamed, carol} {
				require.True(t, r.TryRegister(h))
			}

			b := NewBroadcaster(r, policy, discard)
			n := b.Broadcast("alice >>> hi\n", alice.ID())

			assert.Equal(t, 2, n)
			assert.Empty(t, alice.received(), "sender is excluded")
			assert.Equal(t, []string{"alice >>> hi\n"}, bob.received())
			assert.Equal(t, []string{"alice >>> hi\n"}, carol.received(), "delivery continues past a failed recipient")
			assert.Empty(t, unnamed.received(), "handshake not finished")
			assert.Equal(t, 5, r.Len(), "failed recipient stays registered")
		})
	}
}

func TestBroadcaster_EmptyRegistry(t *testing.T) {
	b := NewBroadcaster(NewRegistry(1), PolicyLocked, discard)
	assert.Zero(t, b.Broadcast("nobody\n", ""))
}

// blockingHandle stalls in Send until released.
type blockingHandle struct {
	*fakeHandle
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (h *blockingHandle) Send(msg string) error {
	h.once.Do(func() { close(h.entered) })
	<-h.release
	return h.fakeHandle.Send(msg)
}

func TestBroadcaster_SnapshotDoesNotHoldRegistryDuringWrites(t *testing.T) {
	r := NewRegistry(4)
	slow := &blockingHandle{
		fakeHandle: newFake("slow"),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	require.True(t, r.TryRegister(slow))
	b := NewBroadcaster(r, PolicySnapshot, discard)

	done := make(chan int)
	go func() { done <- b.Broadcast("hello\n", "") }()
	<-slow.entered

	mutated := make(chan struct{})
	go func() {
		r.TryRegister(newFake("late"))
		r.Remove("slow")
		close(mutated)
	}()
	select {
	case <-mutated:
	case <-time.After(ioWait):
		t.Fatal("registry blocked by a stalled snapshot broadcast")
	}

	close(slow.release)
	assert.Equal(t, 1, <-done, "write to a client removed after the snapshot is still attempted")
	assert.Equal(t, []string{"late"}, ids(r.Snapshot()))
}

func TestBroadcaster_LockedHoldIsBoundedByWriteTimeout(t *testing.T) {
	// Nobody reads the far end of the pipe, so every write stalls until its
	// deadline.
	serverEnd, clientEnd := net.Pipe()
	defer clientEnd.Close()
	stuck := newClient(serverEnd, 50*time.Millisecond)
	stuck.SetName("stuck")
	defer stuck.Close()

	r := NewRegistry(4)
	require.True(t, r.TryRegister(stuck))
	b := NewBroadcaster(r, PolicyLocked, discard)

	start := time.Now()
	n := b.Broadcast("hello\n", "")
	assert.Zero(t, n)
	assert.Less(t, time.Since(start), ioWait)

	assert.True(t, r.TryRegister(newFake("after")), "registry usable once the write timed out")
}

func ids(hs []Handle) []string {
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.ID())
	}
	return out
}
