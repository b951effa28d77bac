package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/trellis/internal/clock"
	"github.com/muurk/trellis/internal/executor"
	"github.com/muurk/trellis/internal/logging"
	"github.com/muurk/trellis/internal/mime"
	"github.com/muurk/trellis/internal/session"
	"github.com/muurk/trellis/internal/webapp"
	"github.com/muurk/trellis/internal/wsapp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type sessionState int32

const (
	stateReading sessionState = iota
	stateValidating
	stateUpgrading
	stateHandling
	stateWriting
	stateClosing
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateReading:
		return "reading"
	case stateValidating:
		return "validating"
	case stateUpgrading:
		return "upgrading"
	case stateHandling:
		return "handling"
	case stateWriting:
		return "writing"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// shared is the per-server state every session reads.
type shared struct {
	cfg     *Config
	ioc     *executor.IOContext
	conns   *ConnectionRegistry
	clients *session.Registry
	tracer  trace.Tracer
}

// HTTPSession owns one accepted connection and serves the requests that
// arrive on it, one at a time. Every callback runs on the session's strand;
// socket reads and writes happen on short-lived goroutines whose completions
// are posted back to it.
type HTTPSession struct {
	env        *shared
	conn       net.Conn
	br         *bufio.Reader
	strand     *executor.Strand
	remoteAddr string
	remoteIP   string
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state  atomic.Int32
	closed atomic.Bool

	// Owned by the strand.
	request  *http.Request
	client   *session.ClientSession
	inflight *http.Response
	sent     bool
	pending  int
	span     trace.Span
	started  time.Time
}

func newHTTPSession(env *shared, conn net.Conn) *HTTPSession {
	ctx, cancel := context.WithCancel(context.Background())
	remote := conn.RemoteAddr().String()
	ip := remote
	if host, _, err := net.SplitHostPort(remote); err == nil {
		ip = host
	}
	return &HTTPSession{
		env:        env,
		conn:       conn,
		br:         bufio.NewReader(conn),
		strand:     executor.NewStrand(env.ioc),
		remoteAddr: remote,
		remoteIP:   ip,
		logger:     env.cfg.Logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// start schedules the first read.
func (s *HTTPSession) start() {
	logging.LogConnection(s.logger, s.remoteAddr, "connection_accepted")
	if !s.strand.Post(s.doRead) {
		s.doClose()
	}
}

func (s *HTTPSession) setState(st sessionState) {
	s.state.Store(int32(st))
}

func (s *HTTPSession) currentState() sessionState {
	return sessionState(s.state.Load())
}

// doRead clears the previous exchange and waits for the next request.
func (s *HTTPSession) doRead() {
	if s.closed.Load() {
		return
	}
	s.request = nil
	s.inflight = nil
	s.sent = false
	s.pending = 0
	s.setState(stateReading)

	go func() {
		req, err := s.readRequest()
		if !s.strand.Post(func() { s.onRead(req, err) }) {
			s.doClose()
		}
	}()
}

// readRequest parses one request and buffers its body so handlers never
// block on the socket.
func (s *HTTPSession) readRequest() (*http.Request, error) {
	req, err := http.ReadRequest(s.br)
	if err != nil {
		if n := s.br.Buffered(); n > 0 {
			leftover, _ := s.br.Peek(n)
			logging.LogRawBytes(s.logger, "Unparsed request bytes", leftover)
		}
		return nil, err
	}
	req.RemoteAddr = s.remoteAddr

	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxRequestBody {
		req.Body = http.NoBody
		return req, errBodyTooLarge
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(body))
	return req, nil
}

func (s *HTTPSession) onRead(req *http.Request, err error) {
	if s.closed.Load() {
		return
	}
	s.setState(stateValidating)

	if err != nil {
		s.onReadError(req, err)
		return
	}

	s.request = req
	s.beginSpan(req)

	if !validTarget(req.RequestURI) {
		s.SendResponse(webapp.BadRequest(s, req, webapp.MsgIllegalPath), "")
		return
	}

	s.setClientSession(req)

	if websocket.IsWebSocketUpgrade(req) {
		if s.env.cfg.WebSocket == nil {
			s.SendResponse(webapp.BadRequest(s, req, webapp.MsgWebSocketRejected), "")
			return
		}
		s.upgrade(req)
		return
	}

	s.setState(stateHandling)
	s.guard(req, func() {
		if !webapp.Dispatch(s.env.cfg.Handler, s, req, webapp.Variables{}) {
			s.SendResponse(webapp.BadRequest(s, req, webapp.MsgUnsupportedMethod), "")
		}
	})
}

func (s *HTTPSession) onReadError(req *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		s.request = req
		s.beginSpan(req)
		resp := webapp.BadRequest(s, req, "Request body too large.")
		resp.Close = true
		s.SendResponse(resp, "")
		return
	}

	switch classifyReadError(err) {
	case readEOF:
		s.doClose()
	case readTransport:
		s.logger.Warn("HTTP session read failed",
			zap.String("remote_addr", s.remoteAddr),
			zap.Error(err),
		)
		s.doClose()
	default:
		req := malformedRequest()
		s.request = req
		s.beginSpan(req)
		resp := webapp.BadRequest(s, req, "Malformed request.")
		resp.Close = true
		s.SendResponse(resp, err.Error())
	}
}

// validTarget rejects empty, relative and parent-referencing targets.
func validTarget(target string) bool {
	return target != "" && target[0] == '/' && !strings.Contains(target, "..")
}

// malformedRequest stands in for a request that could not be parsed.
func malformedRequest() *http.Request {
	return &http.Request{
		Method:     http.MethodGet,
		URL:        &url.URL{Path: "/"},
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Body:       http.NoBody,
		Close:      true,
	}
}

func (s *HTTPSession) setClientSession(req *http.Request) {
	cookies := parseCookies(strings.Join(req.Header.Values("Cookie"), "; "))
	s.client = s.env.clients.GetOrCreate(cookies[s.env.cfg.SessionCookie], s.env.cfg.Clock.Now())
}

// upgrade hands the socket to the WebSocket layer. The HTTP session is
// finished once this returns.
func (s *HTTPSession) upgrade(req *http.Request) {
	s.setState(stateUpgrading)
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.endSpan(http.StatusSwitchingProtocols)
	s.cancel()
	s.env.conns.Unregister(s)
	s.env.cfg.Metrics.ConnectionClosed()
	s.setState(stateClosed)

	cfg := s.env.cfg
	opts := wsapp.AcceptOptions{
		Logger:   s.logger,
		Registry: s.env.conns,
		Poster:   s.strand,
		ServerID: cfg.ServerID,
		OnClose:  cfg.Metrics.WebSocketClosed,
	}
	conn, br := s.conn, s.br
	go func() {
		if _, err := wsapp.Accept(conn, br, req, cfg.WebSocket, opts); err != nil {
			s.logger.Warn("WebSocket upgrade failed",
				zap.String("remote_addr", s.remoteAddr),
				zap.String("path", req.URL.Path),
				zap.Error(err),
			)
			_ = conn.Close()
			return
		}
		cfg.Metrics.WebSocketOpened()
	}()
}

// guard runs fn on behalf of req. A panic, or returning without a response
// or pending async work, produces a 500.
func (s *HTTPSession) guard(req *http.Request, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Handler panicked",
				zap.String("remote_addr", s.remoteAddr),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			if !s.sent {
				s.SendResponse(webapp.ServerError(s, req, webapp.MsgHandlerFailed), "")
			}
			return
		}
		if !s.sent && s.pending == 0 && !s.closed.Load() {
			s.logger.Error("Handler did not send a response",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
			)
			s.SendResponse(webapp.ServerError(s, req, webapp.MsgHandlerFailed), "")
		}
	}()
	fn()
}

// SendResponse writes resp for the current request. It must be called on the
// session's strand, which is where handlers run.
func (s *HTTPSession) SendResponse(resp *http.Response, extra string) {
	if s.closed.Load() {
		closeBody(resp)
		return
	}
	if s.inflight != nil {
		s.logger.Error("Dropping response sent while another is in flight",
			zap.String("remote_addr", s.remoteAddr),
			zap.Int("status", resp.StatusCode),
		)
		closeBody(resp)
		return
	}

	req := resp.Request
	if req == nil {
		req = s.request
		resp.Request = req
	}
	if s.client != nil {
		resp.Header.Set("Set-Cookie", s.env.cfg.SessionCookie+"="+s.client.ID+"; HttpOnly")
	}
	if resp.Header.Get("Server") == "" {
		resp.Header.Set("Server", s.env.cfg.ServerID)
	}
	if req != nil && req.Close {
		resp.Close = true
	}

	logging.LogAccess(s.logger, logging.AccessEntry{
		RemoteAddr:    s.remoteIP,
		Method:        req.Method,
		Proto:         req.Proto,
		Status:        resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Path:          req.URL.Path,
		Extra:         extra,
		UserAgent:     req.UserAgent(),
	})
	s.env.cfg.Metrics.ObserveRequest(req.Method, resp.StatusCode, time.Since(s.started))

	s.sent = true
	s.inflight = resp
	s.setState(stateWriting)

	closeAfter := resp.Close
	go func() {
		err := s.writeResponse(resp)
		if !s.strand.Post(func() { s.onWrite(resp, err, closeAfter) }) {
			s.doClose()
		}
	}()
}

func (s *HTTPSession) writeResponse(resp *http.Response) error {
	defer closeBody(resp)
	w := bufio.NewWriter(s.conn)
	if err := resp.Write(w); err != nil {
		return err
	}
	return w.Flush()
}

func (s *HTTPSession) onWrite(resp *http.Response, err error, closeAfter bool) {
	s.endSpan(resp.StatusCode)
	s.inflight = nil

	switch {
	case err != nil:
		if !s.closed.Load() {
			s.logger.Warn("HTTP session write failed",
				zap.String("remote_addr", s.remoteAddr),
				zap.Error(err),
			)
		}
		s.doClose()
	case closeAfter:
		s.doClose()
	default:
		s.doRead()
	}
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}

func (s *HTTPSession) beginSpan(req *http.Request) {
	s.started = time.Now()
	_, s.span = s.env.tracer.Start(s.ctx, "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.target", req.URL.Path),
			attribute.String("net.peer.ip", s.remoteIP),
		),
	)
}

func (s *HTTPSession) endSpan(status int) {
	if s.span == nil {
		return
	}
	s.span.SetAttributes(attribute.Int("http.status_code", status))
	if status >= http.StatusInternalServerError {
		s.span.SetStatus(codes.Error, http.StatusText(status))
	}
	s.span.End()
	s.span = nil
}

// Async runs work on its own goroutine and posts the continuation it returns
// back to the strand. It must be called from a handler.
func (s *HTTPSession) Async(work func(ctx context.Context) func()) {
	req := s.request
	s.pending++
	go func() {
		then := s.runWork(req, work)
		posted := s.strand.Post(func() {
			s.pending--
			if s.closed.Load() {
				return
			}
			s.guard(req, func() {
				if then != nil {
					then()
				}
			})
		})
		if !posted {
			s.doClose()
		}
	}()
}

func (s *HTTPSession) runWork(req *http.Request, work func(ctx context.Context) func()) (then func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Async work panicked",
				zap.String("remote_addr", s.remoteAddr),
				zap.String("path", req.URL.Path),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			then = func() {
				s.SendResponse(webapp.ServerError(s, req, webapp.MsgHandlerFailed), "")
			}
		}
	}()
	return work(s.ctx)
}

// doClose shuts the socket and deregisters the session. Repeated calls are
// ignored.
func (s *HTTPSession) doClose() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.setState(stateClosing)
	s.cancel()
	if hc, ok := s.conn.(interface{ CloseWrite() error }); ok {
		_ = hc.CloseWrite()
	}
	_ = s.conn.Close()
	s.env.conns.Unregister(s)
	s.env.cfg.Metrics.ConnectionClosed()
	s.setState(stateClosed)
	logging.LogConnection(s.logger, s.remoteAddr, "connection_closed")
}

// Close force-closes the connection from any goroutine. The socket is closed
// and in-flight async work cancelled at once; the rest of the teardown runs
// on the strand, or inline when the I/O context has stopped.
func (s *HTTPSession) Close() error {
	if s.closed.Load() {
		return nil
	}
	err := s.conn.Close()
	s.cancel()
	if !s.strand.Post(s.doClose) || s.env.ioc.Stopped() {
		s.doClose()
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// RemoteIP returns the peer's IP address without the port.
func (s *HTTPSession) RemoteIP() string { return s.remoteIP }

// ServerID returns the identifier sent in the Server header.
func (s *HTTPSession) ServerID() string { return s.env.cfg.ServerID }

// Clock returns the server's time source.
func (s *HTTPSession) Clock() clock.Clock { return s.env.cfg.Clock }

// MimeTypes returns the extension to content type table.
func (s *HTTPSession) MimeTypes() *mime.Types { return s.env.cfg.MimeTypes }

// Logger returns the connection's logger.
func (s *HTTPSession) Logger() *zap.Logger { return s.logger }

// ClientSession returns the cookie session bound to the current request, or
// nil before one is resolved.
func (s *HTTPSession) ClientSession() *session.ClientSession { return s.client }

var _ webapp.Session = (*HTTPSession)(nil)
