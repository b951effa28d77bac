package server

import (
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Listener accepts connections and turns each into an HTTPSession.
type Listener struct {
	env  *shared
	ln   net.Listener
	addr string

	mu     sync.Mutex
	closed bool
}

func newListener(env *shared) (*Listener, error) {
	addr := net.JoinHostPort(env.cfg.Address, strconv.Itoa(env.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &NetworkError{Op: "listen", Addr: addr, Err: err}
	}
	if env.cfg.TLS != nil {
		ln = tls.NewListener(ln, env.cfg.TLS)
	}
	return &Listener{env: env, ln: ln, addr: addr}, nil
}

// Addr returns the bound address, which carries the real port when the
// configured port was zero.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// DoAccept waits for one connection on a background goroutine and handles it
// on the I/O context.
func (l *Listener) DoAccept() {
	go func() {
		conn, err := l.ln.Accept()
		if !l.env.ioc.Post(func() { l.onAccept(conn, err) }) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (l *Listener) onAccept(conn net.Conn, err error) {
	if err != nil {
		if errors.Is(err, net.ErrClosed) || l.isClosed() {
			return
		}
		l.env.cfg.Logger.Warn("Failed to accept connection",
			zap.String("addr", l.addr),
			zap.Error(err),
		)
		l.DoAccept()
		return
	}

	if l.isClosed() {
		_ = conn.Close()
		return
	}

	s := newHTTPSession(l.env, conn)
	l.env.cfg.Metrics.ConnectionOpened()
	l.env.conns.Register(s)
	s.start()
	l.DoAccept()
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Close stops accepting, force-closes every live session and forgets the
// in-memory client sessions. Idempotent.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	err = multierr.Append(err, l.env.conns.CloseAll())
	l.env.clients.Clear()
	return err
}
