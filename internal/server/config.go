package server

import (
	"crypto/tls"

	"github.com/muurk/trellis/internal/clock"
	"github.com/muurk/trellis/internal/metrics"
	"github.com/muurk/trellis/internal/mime"
	"github.com/muurk/trellis/internal/session"
	"github.com/muurk/trellis/internal/webapp"
	"github.com/muurk/trellis/internal/wsapp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultServerID      = "trellis"
	DefaultSessionCookie = "session"
	DefaultWorkerPrefix  = "http-worker-"

	// Largest request body buffered before a request is handled.
	maxRequestBody = 1 << 20
)

// Config holds the server configuration. It must not be modified after New.
type Config struct {
	ServerID string
	Address  string
	Port     int

	// Handler serves every HTTP request. Required.
	Handler webapp.Handler
	// WebSocket serves upgraded connections. When nil, upgrade requests are
	// rejected with a 400.
	WebSocket wsapp.Handler

	MimeTypes     *mime.Types
	SessionCookie string
	Logger        *zap.Logger
	Clock         clock.Clock

	// Workers is the size of the worker pool; zero means one per CPU.
	Workers      int
	WorkerPrefix string

	// RegisterSignalHandler installs SIGINT/SIGTERM/SIGQUIT handling on Start.
	RegisterSignalHandler bool

	TLS      *tls.Config
	Metrics  *metrics.Collectors
	Sessions *session.Registry
	Tracer   trace.Tracer
}

func (c *Config) applyDefaults() {
	if c.ServerID == "" {
		c.ServerID = DefaultServerID
	}
	if c.SessionCookie == "" {
		c.SessionCookie = DefaultSessionCookie
	}
	if c.WorkerPrefix == "" {
		c.WorkerPrefix = DefaultWorkerPrefix
	}
	if c.MimeTypes == nil {
		c.MimeTypes = mime.Default()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = clock.System{}
	}
}

func (c *Config) validate() error {
	if c.Handler == nil {
		return &ConfigError{Field: "Handler", Message: "an HTTP handler is required"}
	}
	if c.Port < 0 || c.Port > 65535 {
		return &ConfigError{Field: "Port", Message: "must be between 0 and 65535"}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "Workers", Message: "must not be negative"}
	}
	return nil
}
