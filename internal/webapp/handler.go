package webapp

import (
	"context"
	"net/http"

	"github.com/muurk/trellis/internal/clock"
	"github.com/muurk/trellis/internal/mime"
	"github.com/muurk/trellis/internal/session"
	"go.uber.org/zap"
)

// Variables carries values between composed handlers for a single request.
// Keys include their leading "$" (for example "$1").
type Variables map[string]string

// Session is the view of a connection that handlers work against.
type Session interface {
	// SendResponse queues resp for writing. extra is appended to the access
	// log line (redirect targets, for example).
	SendResponse(resp *http.Response, extra string)

	// Async runs work off the event loop. The returned continuation, if not
	// nil, runs back on the connection and is expected to send the response.
	// ctx is cancelled when the connection closes.
	Async(work func(ctx context.Context) func())

	RemoteIP() string
	ServerID() string
	Clock() clock.Clock
	MimeTypes() *mime.Types
	Logger() *zap.Logger
	ClientSession() *session.ClientSession
}

// Handler serves requests for one or more locations.
type Handler interface {
	HandleGet(s Session, req *http.Request, vars Variables)
	HandleHead(s Session, req *http.Request, vars Variables)
	HandlePost(s Session, req *http.Request, vars Variables)
}

// Dispatch routes req to the method-specific entry point of h. It reports
// false for methods other than GET, HEAD and POST.
func Dispatch(h Handler, s Session, req *http.Request, vars Variables) bool {
	switch req.Method {
	case http.MethodGet:
		h.HandleGet(s, req, vars)
	case http.MethodHead:
		h.HandleHead(s, req, vars)
	case http.MethodPost:
		h.HandlePost(s, req, vars)
	default:
		return false
	}
	return true
}

// HandlerFunc adapts a single function to serve all three methods.
type HandlerFunc func(s Session, req *http.Request, vars Variables)

func (f HandlerFunc) HandleGet(s Session, req *http.Request, vars Variables)  { f(s, req, vars) }
func (f HandlerFunc) HandleHead(s Session, req *http.Request, vars Variables) { f(s, req, vars) }
func (f HandlerFunc) HandlePost(s Session, req *http.Request, vars Variables) { f(s, req, vars) }
