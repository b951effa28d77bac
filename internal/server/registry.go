package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
)

// ConnectionRegistry tracks live connections so they can be closed together
// on shutdown. HTTP and WebSocket sessions share one registry.
type ConnectionRegistry struct {
	mu        sync.Mutex
	live      map[io.Closer]struct{}
	accepting bool

	registered   atomic.Uint64
	deregistered atomic.Uint64
}

// NewConnectionRegistry returns an empty registry that accepts
// registrations.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		live:      make(map[io.Closer]struct{}),
		accepting: true,
	}
}

// Start re-enables registration after CloseAll.
func (r *ConnectionRegistry) Start() {
	r.mu.Lock()
	r.accepting = true
	r.mu.Unlock()
}

// Register adds c. A connection registered after CloseAll, before the next
// Start, is closed immediately instead.
func (r *ConnectionRegistry) Register(c io.Closer) {
	r.mu.Lock()
	if !r.accepting {
		r.mu.Unlock()
		_ = c.Close()
		return
	}
	r.live[c] = struct{}{}
	r.mu.Unlock()
	r.registered.Add(1)
}

// Unregister removes c. Removing an unknown connection is a no-op.
func (r *ConnectionRegistry) Unregister(c io.Closer) {
	r.mu.Lock()
	_, ok := r.live[c]
	delete(r.live, c)
	r.mu.Unlock()
	if ok {
		r.deregistered.Add(1)
	}
}

// CloseAll stops registration and closes every live connection. Connections
// are closed outside the lock, so they may unregister themselves.
func (r *ConnectionRegistry) CloseAll() error {
	r.mu.Lock()
	r.accepting = false
	snapshot := make([]io.Closer, 0, len(r.live))
	for c := range r.live {
		snapshot = append(snapshot, c)
	}
	r.live = make(map[io.Closer]struct{})
	r.mu.Unlock()
	r.deregistered.Add(uint64(len(snapshot)))

	var err error
	for _, c := range snapshot {
		if cerr := c.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}
	return err
}

// Len returns the number of live connections.
func (r *ConnectionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Registered is the cumulative number of registrations.
func (r *ConnectionRegistry) Registered() uint64 { return r.registered.Load() }

// Deregistered is the cumulative number of deregistrations, including those
// made by CloseAll.
func (r *ConnectionRegistry) Deregistered() uint64 { return r.deregistered.Load() }
