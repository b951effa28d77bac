package executor

import "sync"

// Strand serialises the tasks posted to it: at most one runs at a time and
// they run in posting order, on whichever IOContext runner picks them up.
type Strand struct {
	ioc *IOContext

	mu      sync.Mutex
	queue   []func()
	running bool
}

// NewStrand returns a strand feeding ioc.
func NewStrand(ioc *IOContext) *Strand {
	return &Strand{ioc: ioc}
}

// Post queues fn behind any task already on the strand. It reports false when
// the underlying context is stopped and nothing was scheduled.
func (s *Strand) Post(fn func()) bool {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if s.running {
		s.mu.Unlock()
		return true
	}
	s.running = true
	s.mu.Unlock()

	if s.ioc.Post(s.drain) {
		return true
	}

	s.mu.Lock()
	s.queue = nil
	s.running = false
	s.mu.Unlock()
	return false
}

func (s *Strand) drain() {
	completed := false
	defer func() {
		if completed {
			return
		}
		// A task panicked. Keep the strand usable for whatever is queued
		// behind it before the panic reaches the runner.
		s.mu.Lock()
		pending := len(s.queue) > 0
		if !pending {
			s.running = false
		}
		s.mu.Unlock()
		if pending && !s.ioc.Post(s.drain) {
			s.mu.Lock()
			s.queue = nil
			s.running = false
			s.mu.Unlock()
		}
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			completed = true
			return
		}
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		fn()
	}
}
