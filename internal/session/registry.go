package session

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store persists sessions beyond the in-memory registry.
type Store interface {
	Save(s *ClientSession) error
	Load(id string) (*ClientSession, bool, error)
	Delete(id string) error
	Close() error
}

// Registry maps cookie identifiers to client sessions. Store writes are
// queued and applied by a background writer so callers never wait on disk.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*ClientSession
	store    Store
	logger   *zap.Logger
	onChange func(n int)

	pending    map[string]storeOp
	closed     bool
	wake       chan struct{}
	writerDone chan struct{}
	flushMu    sync.Mutex
}

// storeOp is a queued store write. A later op for the same id replaces an
// earlier one.
type storeOp struct {
	session *ClientSession
	remove  bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore backs the registry with a persistent store.
func WithStore(s Store) Option {
	return func(r *Registry) { r.store = s }
}

// WithLogger sets the logger used for store failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithGauge registers a callback invoked with the session count after every
// change.
func WithGauge(fn func(n int)) Option {
	return func(r *Registry) { r.onChange = fn }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*ClientSession),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store != nil {
		r.pending = make(map[string]storeOp)
		r.wake = make(chan struct{}, 1)
		r.writerDone = make(chan struct{})
		go r.writeLoop()
	}
	return r
}

// Create makes and registers a new session.
func (r *Registry) Create(now time.Time) *ClientSession {
	s := New(now)
	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.enqueue(s.ID, storeOp{session: s})
	r.changed(n)
	return s
}

// Get returns the session for id. A session missing from memory but queued
// for the store or present in it is brought back into memory.
func (r *Registry) Get(id string) (*ClientSession, bool) {
	if id == "" {
		return nil, false
	}

	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok || r.store == nil {
		r.mu.Unlock()
		return s, ok
	}
	if op, queued := r.pending[id]; queued {
		if op.remove {
			r.mu.Unlock()
			return nil, false
		}
		r.sessions[id] = op.session
		n := len(r.sessions)
		r.mu.Unlock()
		r.changed(n)
		return op.session, true
	}
	r.mu.Unlock()

	s, ok, err := r.store.Load(id)
	if err != nil {
		r.logger.Warn("Failed to load client session", zap.String("session_id", id), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	if existing, raced := r.sessions[id]; raced {
		s = existing
	} else {
		r.sessions[id] = s
	}
	n := len(r.sessions)
	r.mu.Unlock()
	r.changed(n)
	return s, true
}

// GetOrCreate resolves id, creating a new session when it is unknown.
func (r *Registry) GetOrCreate(id string, now time.Time) *ClientSession {
	if s, ok := r.Get(id); ok {
		s.Touch(now)
		return s
	}
	return r.Create(now)
}

// Remove forgets the session in memory and in the store.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	r.enqueue(id, storeOp{remove: true})
	r.changed(n)
}

// Clear drops every in-memory session. Persisted sessions are kept.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.sessions = make(map[string]*ClientSession)
	r.mu.Unlock()
	r.changed(0)
}

// Len returns the number of in-memory sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Flush applies every queued store write before returning.
func (r *Registry) Flush() {
	if r.store == nil {
		return
	}
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	batch := make(map[string]storeOp, len(r.pending))
	for id, op := range r.pending {
		batch[id] = op
	}
	r.mu.Unlock()

	for id, op := range batch {
		r.apply(id, op)
	}

	// Ops stay visible to Get until written. One replaced meanwhile is
	// left for the next flush.
	r.mu.Lock()
	for id, op := range batch {
		if r.pending[id] == op {
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()
}

// Close drains the write queue, saves every in-memory session's last-seen
// time and closes the store.
func (r *Registry) Close() error {
	if r.store == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.wake)
	snapshot := make([]*ClientSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	<-r.writerDone
	for _, s := range snapshot {
		r.apply(s.ID, storeOp{session: s})
	}
	return r.store.Close()
}

// enqueue hands a store write to the writer. After Close the write is
// applied inline.
func (r *Registry) enqueue(id string, op storeOp) {
	if r.store == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.apply(id, op)
		return
	}
	r.pending[id] = op
	select {
	case r.wake <- struct{}{}:
	default:
	}
	r.mu.Unlock()
}

func (r *Registry) writeLoop() {
	defer close(r.writerDone)
	for range r.wake {
		r.Flush()
	}
	r.Flush()
}

func (r *Registry) apply(id string, op storeOp) {
	if op.remove {
		if err := r.store.Delete(id); err != nil {
			r.logger.Warn("Failed to delete client session", zap.String("session_id", id), zap.Error(err))
		}
		return
	}
	if err := r.store.Save(op.session); err != nil {
		r.logger.Warn("Failed to persist client session", zap.String("session_id", id), zap.Error(err))
	}
}

func (r *Registry) changed(n int) {
	if r.onChange != nil {
		r.onChange(n)
	}
}
