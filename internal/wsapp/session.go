package wsapp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/trellis/internal/logging"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	defaultMaxMessageSize = 1 << 20
)

// Poster serialises callbacks, typically a connection strand.
type Poster interface {
	Post(fn func()) bool
}

// Registrar tracks live connections for shutdown.
type Registrar interface {
	Register(c io.Closer)
	Unregister(c io.Closer)
}

// AcceptOptions configures Accept.
type AcceptOptions struct {
	Logger   *zap.Logger
	Registry Registrar
	Poster   Poster
	ServerID string

	// CheckOrigin overrides gorilla's same-origin check.
	CheckOrigin    func(r *http.Request) bool
	MaxMessageSize int64

	// OnClose runs once after the session has closed.
	OnClose func()
}

// Session is an upgraded WebSocket connection.
type Session struct {
	conn       *websocket.Conn
	handler    Handler
	path       string
	remoteAddr string
	logger     *zap.Logger
	registry   Registrar
	poster     Poster
	onClose    func()

	writeMu sync.Mutex
	closed  atomic.Bool
	done    chan struct{}
}

// Accept completes the WebSocket handshake for req over conn, which the HTTP
// layer has handed off together with its buffered reader. On success the
// session is registered and its read loop started.
func Accept(conn net.Conn, br *bufio.Reader, req *http.Request, h Handler, opts AcceptOptions) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	upgrader := websocket.Upgrader{
		HandshakeTimeout: writeWait,
		CheckOrigin:      opts.CheckOrigin,
	}
	header := http.Header{}
	if opts.ServerID != "" {
		header.Set("Server", opts.ServerID)
	}

	w := newHijackWriter(conn, br)
	wsConn, err := upgrader.Upgrade(w, req, header)
	if err != nil {
		w.flush()
		return nil, fmt.Errorf("websocket handshake failed: %w", err)
	}

	maxSize := opts.MaxMessageSize
	if maxSize <= 0 {
		maxSize = defaultMaxMessageSize
	}
	wsConn.SetReadLimit(maxSize)

	s := &Session{
		conn:       wsConn,
		handler:    h,
		path:       req.URL.Path,
		remoteAddr: conn.RemoteAddr().String(),
		logger:     logger,
		registry:   opts.Registry,
		poster:     opts.Poster,
		onClose:    opts.OnClose,
		done:       make(chan struct{}),
	}
	s.installControlHandlers()

	if s.registry != nil {
		s.registry.Register(s)
	}
	logging.LogConnection(logger, s.remoteAddr, "websocket_upgraded")

	go s.readLoop()
	return s, nil
}

// Path returns the path the connection was upgraded on.
func (s *Session) Path() string { return s.path }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// Done is closed once the session has closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// WriteText sends a text message.
func (s *Session) WriteText(data []byte) error {
	return s.write(websocket.TextMessage, data)
}

// WriteBinary sends a binary message.
func (s *Session) WriteBinary(data []byte) error {
	return s.write(websocket.BinaryMessage, data)
}

// Ping sends a ping control frame.
func (s *Session) Ping(data []byte) error {
	return s.conn.WriteControl(websocket.PingMessage, data, time.Now().Add(writeWait))
}

func (s *Session) write(messageType int, data []byte) error {
	if s.closed.Load() {
		return net.ErrClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	logging.LogWebSocketMessage(s.logger, s.remoteAddr, "sent", messageType, data)
	return s.conn.WriteMessage(messageType, data)
}

// Close shuts the connection and deregisters the session. Idempotent.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(time.Second))
	err := s.conn.Close()

	if s.registry != nil {
		s.registry.Unregister(s)
	}
	close(s.done)
	logging.LogConnection(s.logger, s.remoteAddr, "websocket_closed")
	if s.onClose != nil {
		s.onClose()
	}
	return err
}

func (s *Session) installControlHandlers() {
	s.conn.SetCloseHandler(func(code int, text string) error {
		s.dispatch(func() { s.handler.HandleClose(s, s.path, code, text) })
		msg := websocket.FormatCloseMessage(code, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return nil
	})
	s.conn.SetPingHandler(func(appData string) error {
		data := []byte(appData)
		s.dispatch(func() { s.handler.HandlePing(s, s.path, data) })
		err := s.conn.WriteControl(websocket.PongMessage, data, time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	s.conn.SetPongHandler(func(appData string) error {
		data := []byte(appData)
		s.dispatch(func() { s.handler.HandlePong(s, s.path, data) })
		return nil
	})
}

func (s *Session) readLoop() {
	defer s.Close()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && !s.closed.Load() {
				s.logger.Warn("WebSocket read failed",
					zap.String("remote_addr", s.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}

		logging.LogWebSocketMessage(s.logger, s.remoteAddr, "received", messageType, data)
		switch messageType {
		case websocket.TextMessage:
			s.dispatch(func() { s.handler.HandleText(s, s.path, data) })
		case websocket.BinaryMessage:
			s.dispatch(func() { s.handler.HandleBinary(s, s.path, data) })
		}
	}
}

// dispatch runs fn on the poster when there is one and it accepts work.
func (s *Session) dispatch(fn func()) {
	if s.poster != nil && s.poster.Post(fn) {
		return
	}
	fn()
}

// hijackWriter lets gorilla's Upgrader take over a connection the HTTP layer
// already owns. Rejections written before the hijack are sent by flush.
type hijackWriter struct {
	conn     net.Conn
	br       *bufio.Reader
	header   http.Header
	status   int
	body     bytes.Buffer
	hijacked bool
}

func newHijackWriter(conn net.Conn, br *bufio.Reader) *hijackWriter {
	return &hijackWriter{conn: conn, br: br, header: make(http.Header)}
}

func (w *hijackWriter) Header() http.Header { return w.header }

func (w *hijackWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *hijackWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *hijackWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if w.hijacked {
		return nil, nil, http.ErrHijacked
	}
	w.hijacked = true
	return w.conn, bufio.NewReadWriter(w.br, bufio.NewWriter(w.conn)), nil
}

// flush writes a rejection produced by the Upgrader before it hijacked.
func (w *hijackWriter) flush() {
	if w.hijacked || w.status == 0 {
		return
	}
	resp := &http.Response{
		StatusCode:    w.status,
		Status:        strconv.Itoa(w.status) + " " + http.StatusText(w.status),
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        w.header,
		Body:          io.NopCloser(bytes.NewReader(w.body.Bytes())),
		ContentLength: int64(w.body.Len()),
		Close:         true,
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = resp.Write(w.conn)
}
