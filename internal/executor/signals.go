package executor

import (
	"os"
	"os/signal"
	"sync"
)

// SignalSet delivers OS signals as tasks on an IOContext.
type SignalSet struct {
	ioc     *IOContext
	signals []os.Signal
	ch      chan os.Signal
	done    chan struct{}
	once    sync.Once
}

// NewSignalSet starts listening for sigs.
func NewSignalSet(ioc *IOContext, sigs ...os.Signal) *SignalSet {
	s := &SignalSet{
		ioc:     ioc,
		signals: sigs,
		ch:      make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
	signal.Notify(s.ch, sigs...)
	return s
}

// AsyncWait arranges for handler to run on the IOContext when the first
// signal arrives. Delivery is one-shot: afterwards the process reverts to
// the default disposition, so a second signal terminates it. If the context
// has already been stopped the handler runs on the listening goroutine.
func (s *SignalSet) AsyncWait(handler func(os.Signal)) {
	go func() {
		select {
		case sig := <-s.ch:
			s.Cancel()
			if !s.ioc.Post(func() { handler(sig) }) {
				handler(sig)
			}
		case <-s.done:
		}
	}()
}

// Cancel stops signal delivery. Idempotent.
func (s *SignalSet) Cancel() {
	s.once.Do(func() {
		signal.Stop(s.ch)
		close(s.done)
	})
}
