package server

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/muurk/trellis/internal/executor"
	"github.com/muurk/trellis/internal/session"
	"go.opentelemetry.io/otel"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const tracerName = "github.com/muurk/trellis/internal/server"

// Server is an HTTP/1.x server whose connections are driven by a fixed pool
// of workers sharing one I/O context.
type Server struct {
	cfg     Config
	env     *shared
	ioc     *executor.IOContext
	conns   *ConnectionRegistry
	clients *session.Registry
	logger  *zap.Logger
	workers int

	mu       sync.Mutex
	running  bool
	listener *Listener
	signals  *executor.SignalSet
	stopping chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup

	runningWorkers atomic.Int32
}

// Stats is a point-in-time view of the server.
type Stats struct {
	Address           string `json:"address"`
	Running           bool   `json:"running"`
	ActiveConnections int    `json:"active_connections"`
	Registered        uint64 `json:"connections_registered"`
	Deregistered      uint64 `json:"connections_deregistered"`
	ClientSessions    int    `json:"client_sessions"`
	Workers           int    `json:"workers"`
	RunningWorkers    int    `json:"running_workers"`
	PendingTasks      int    `json:"pending_tasks"`
}

// New validates cfg and binds the listening socket. The server does not
// accept connections until Start or Run.
func New(cfg Config) (*Server, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	clients := cfg.Sessions
	if clients == nil {
		clients = session.NewRegistry(
			session.WithLogger(cfg.Logger),
			session.WithGauge(cfg.Metrics.SetClientSessions),
		)
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	s := &Server{
		cfg:     cfg,
		ioc:     executor.NewIOContext(),
		conns:   NewConnectionRegistry(),
		clients: clients,
		logger:  cfg.Logger,
		workers: workers,
		done:    make(chan struct{}),
	}
	s.env = &shared{
		cfg:     &s.cfg,
		ioc:     s.ioc,
		conns:   s.conns,
		clients: clients,
		tracer:  tracer,
	}

	l, err := newListener(s.env)
	if err != nil {
		return nil, err
	}
	s.listener = l
	return s, nil
}

// Start launches the worker pool and begins accepting connections. It
// returns once every worker is running.
func (s *Server) Start() error {
	return s.start(s.workers)
}

// Run is Start with the calling goroutine acting as the last worker. It
// blocks until the server stops.
func (s *Server) Run() error {
	if err := s.start(s.workers - 1); err != nil {
		return err
	}
	s.worker(s.workers - 1)
	err := s.Stop(false)
	<-s.Done()
	return err
}

func (s *Server) start(spawn int) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Server already running", zap.String("addr", s.Addr().String()))
		return nil
	}

	if s.listener.isClosed() {
		l, err := newListener(s.env)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.listener = l
	}

	s.running = true
	s.stopping = make(chan struct{})
	select {
	case <-s.done:
		s.done = make(chan struct{})
	default:
	}
	s.ioc.Restart()
	s.conns.Start()

	if s.cfg.RegisterSignalHandler {
		s.signals = executor.NewSignalSet(s.ioc, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
		s.signals.AsyncWait(s.onSignal)
	}
	listener := s.listener
	stopping := s.stopping
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server",
		zap.String("server_id", s.cfg.ServerID),
		zap.String("addr", listener.Addr().String()),
		zap.Int("workers", s.workers),
		zap.Any("tls", GetTLSInfo(s.cfg.TLS)),
	)

	listener.DoAccept()

	for i := 0; i < spawn; i++ {
		s.wg.Add(1)
		go func(index int) {
			defer s.wg.Done()
			s.worker(index)
		}(i)
	}
	for int(s.runningWorkers.Load()) < spawn {
		select {
		case <-stopping:
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
	return nil
}

func (s *Server) workerName(index int) string {
	return s.cfg.WorkerPrefix + strconv.Itoa(index)
}

// worker drives the I/O context until it stops. A panic escaping a task is
// logged and the worker resumes after a back-off delay.
func (s *Server) worker(index int) {
	s.runningWorkers.Add(1)
	defer s.runningWorkers.Add(-1)

	name := s.workerName(index)
	s.logger.Debug("Worker started", zap.String("worker", name))
	defer s.logger.Debug("Worker stopped", zap.String("worker", name))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0

	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()

	for {
		if s.drive(index) {
			return
		}
		s.cfg.Metrics.WorkerRestarted()

		delay := b.NextBackOff()
		select {
		case <-time.After(delay):
		case <-stopping:
			return
		}
		if s.ioc.Stopped() {
			return
		}
	}
}

// drive runs the I/O context, reporting false if it unwound with a panic.
func (s *Server) drive(index int) (clean bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Worker recovered from panic",
				zap.String("worker", s.workerName(index)),
				zap.String("addr", s.Addr().String()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			clean = false
		}
	}()
	s.ioc.Run()
	return true
}

func (s *Server) onSignal(sig os.Signal) {
	fmt.Fprintf(os.Stderr, "\nReceived %s, shutting down.\n", sig)
	s.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if err := listener.Close(); err != nil {
		s.logger.Warn("Error closing listener", zap.Error(err))
	}
	s.ioc.Stop()
	go func() { _ = s.Stop(false) }()
}

// Stop closes the listener and every live connection, stops the I/O context
// and waits for the workers to exit. Stopping a server that is not running
// does nothing, logging a warning if warn is set.
func (s *Server) Stop(warn bool) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		if warn {
			s.logger.Warn("Stop called on a server that is not running")
		}
		return nil
	}
	s.running = false
	close(s.stopping)
	signals := s.signals
	s.signals = nil
	listener := s.listener
	done := s.done
	s.mu.Unlock()

	s.logger.Info("Stopping HTTP server", zap.String("addr", listener.Addr().String()))

	if signals != nil {
		signals.Cancel()
	}
	var err error
	err = multierr.Append(err, listener.Close())
	s.ioc.Stop()
	s.wg.Wait()
	close(done)

	s.logger.Info("HTTP server stopped")
	return err
}

// Close is Stop without the not-running warning.
func (s *Server) Close() error {
	return s.Stop(false)
}

// Done is closed once the server has fully stopped.
func (s *Server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Addr returns the bound listening address.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	return l.Addr()
}

// Running reports whether the server has been started and not stopped.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Connections exposes the connection registry.
func (s *Server) Connections() *ConnectionRegistry {
	return s.conns
}

// ClientSessions exposes the client session registry.
func (s *Server) ClientSessions() *session.Registry {
	return s.clients
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Address:           s.Addr().String(),
		Running:           s.Running(),
		ActiveConnections: s.conns.Len(),
		Registered:        s.conns.Registered(),
		Deregistered:      s.conns.Deregistered(),
		ClientSessions:    s.clients.Len(),
		Workers:           s.workers,
		RunningWorkers:    int(s.runningWorkers.Load()),
		PendingTasks:      s.ioc.Pending(),
	}
}
