package executor

import (
	"sync"
	"sync/atomic"
)

// IOContext is a thread-safe task queue driven by any number of goroutines
// calling Run. Tasks posted while the context is stopped are rejected.
type IOContext struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	stopCh  chan struct{}
	notify  chan struct{}

	runners atomic.Int32
}

// NewIOContext returns a running, empty context.
func NewIOContext() *IOContext {
	return &IOContext{
		stopCh: make(chan struct{}),
		notify: make(chan struct{}, 1),
	}
}

// Post queues fn for execution by one of the Run goroutines. It reports
// false, and drops fn, when the context has been stopped.
func (c *IOContext) Post(fn func()) bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, fn)
	c.mu.Unlock()
	c.wake()
	return true
}

func (c *IOContext) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Run executes tasks until Stop is called. A panic raised by a task unwinds
// out of Run; the context itself stays usable and Run may be called again.
func (c *IOContext) Run() {
	c.runners.Add(1)
	defer c.runners.Add(-1)

	for {
		fn, stopCh, ok := c.next()
		if !ok {
			return
		}
		if fn != nil {
			fn()
			continue
		}
		select {
		case <-c.notify:
		case <-stopCh:
			return
		}
	}
}

// next pops one task. ok is false once the context is stopped. A nil fn with
// ok set means the queue is empty and the caller should wait.
func (c *IOContext) next() (fn func(), stopCh chan struct{}, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil, nil, false
	}
	if len(c.queue) == 0 {
		return nil, c.stopCh, true
	}
	fn = c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	if len(c.queue) > 0 {
		// Hand the remaining work to another idle runner.
		c.wake()
	}
	return fn, c.stopCh, true
}

// Stop makes every Run call return as soon as its current task finishes.
// Queued tasks are kept and run after Restart. Stop is idempotent.
func (c *IOContext) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
}

// Stopped reports whether Stop has been called since the last Restart.
func (c *IOContext) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Restart clears the stopped state so Run can be called again.
func (c *IOContext) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		return
	}
	c.stopped = false
	c.stopCh = make(chan struct{})
	if len(c.queue) > 0 {
		c.wake()
	}
}

// Pending returns the number of queued tasks.
func (c *IOContext) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Runners returns the number of goroutines currently inside Run.
func (c *IOContext) Runners() int {
	return int(c.runners.Load())
}
