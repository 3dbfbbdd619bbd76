package server

import "sync"

// Handle is a registered connection as seen by the registry and the
// broadcaster.  *Client is the production implementation.
type Handle interface {
	ID() string
	RemoteAddr() string
	Name() string
	Named() bool
	Send(msg string) error
	Close() error
}

// Registry is the bounded set of live connections.
//
// One mutex guards everything: registration, removal and full iteration are
// mutually exclusive, and there is no reader/writer split.  The registry never
// closes the handles it holds; their sessions do.
type Registry struct {
	mu       sync.Mutex
	capacity int
	clients  []Handle // registration order
}

// NewRegistry builds an empty registry holding at most capacity handles.
// Capacities below 1 fall back to DefaultMaxClients.
func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = DefaultMaxClients
	}
	return &Registry{
		capacity: capacity,
		clients:  make([]Handle, 0, capacity),
	}
}

// TryRegister adds h if there is room and its ID is not registered yet.
// On false nothing changes and the caller still owns the connection.
func (r *Registry) TryRegister(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.clients) >= r.capacity {
		return false
	}
	if r.indexLocked(h.ID()) >= 0 {
		return false
	}
	r.clients = append(r.clients, h)
	return true
}

// Remove drops the handle with the given ID and reports whether it was
// present.  Removing an unknown ID is a no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return false
	}
	last := len(r.clients) - 1
	copy(r.clients[i:], r.clients[i+1:])
	r.clients[last] = nil
	r.clients = r.clients[:last]
	return true
}

// Snapshot returns a copy of the registered handles in registration order.
func (r *Registry) Snapshot() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Handle, len(r.clients))
	copy(out, r.clients)
	return out
}

// Each calls fn for every registered handle while holding the lock.  fn must
// not call back into the registry.
func (r *Registry) Each(fn func(Handle)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.clients {
		fn(h)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Registry) Cap() int { return r.capacity }

func (r *Registry) indexLocked(id string) int {
	for i, h := range r.clients {
		if h.ID() == id {
			return i
		}
	}
	return -1
}
