package config

import (
	"context"
	"fmt"
	"io"

	"github.com/muurk/trellis/internal/metrics"
	"github.com/muurk/trellis/internal/mime"
	"github.com/muurk/trellis/internal/server"
	"github.com/muurk/trellis/internal/session"
	"github.com/muurk/trellis/internal/webapp"
	"github.com/muurk/trellis/internal/wsapp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Built is everything assembled from a Config, ready for server.New.
type Built struct {
	Server    server.Config
	Routing   *webapp.Routing
	WebSocket *wsapp.Routing
	Metrics   *metrics.Collectors
	Registry  *prometheus.Registry
	Sessions  *session.Registry

	closers []io.Closer
}

// Build creates the handlers, routing tables, session registry and metrics
// described by cfg. The caller owns the result and must Close it after the
// server has stopped.
func Build(ctx context.Context, cfg *Config, logger *zap.Logger) (*Built, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Built{}

	mimeTypes := mime.Default()
	if len(cfg.Mime) > 0 {
		t, err := mime.FromConfig(cfg.Mime)
		if err != nil {
			return nil, fmt.Errorf("mime: %w", err)
		}
		mimeTypes = t
	}

	routing, err := buildRouting(ctx, cfg.Handlers, logger)
	if err != nil {
		return nil, err
	}
	b.Routing = routing

	var wsHandler wsapp.Handler
	if len(cfg.WebSocket) > 0 {
		ws, err := buildWebSocket(cfg.WebSocket)
		if err != nil {
			return nil, err
		}
		b.WebSocket = ws
		wsHandler = ws
	}

	b.Registry = prometheus.NewRegistry()
	b.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	b.Metrics = metrics.New(b.Registry)

	opts := []session.Option{
		session.WithLogger(logger.Named("sessions")),
		session.WithGauge(b.Metrics.SetClientSessions),
	}
	if cfg.Sessions.Store == "badger" {
		store, err := session.OpenBadger(session.BadgerConfig{Dir: cfg.Sessions.Dir, TTL: cfg.Sessions.TTL})
		if err != nil {
			return nil, fmt.Errorf("sessions: %w", err)
		}
		opts = append(opts, session.WithStore(store))
	}
	b.Sessions = session.NewRegistry(opts...)
	b.closers = append(b.closers, b.Sessions)

	srvCfg := server.Config{
		ServerID:              cfg.Server.ID,
		Address:               cfg.Server.Address,
		Port:                  cfg.Server.Port,
		Handler:               routing,
		WebSocket:             wsHandler,
		MimeTypes:             mimeTypes,
		SessionCookie:         cfg.Server.SessionCookie,
		Logger:                logger,
		Workers:               cfg.Server.Workers,
		WorkerPrefix:          cfg.Server.WorkerPrefix,
		RegisterSignalHandler: cfg.Server.RegisterSignalHandler,
		Metrics:               b.Metrics,
		Sessions:              b.Sessions,
	}
	if cfg.TLS.Cert != "" {
		tlsCfg, err := server.LoadTLSConfig(cfg.TLS.Cert, cfg.TLS.Key)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("tls: %w", err), b.Close())
		}
		srvCfg.TLS = tlsCfg
	}
	b.Server = srvCfg

	return b, nil
}

func buildRouting(ctx context.Context, handlers []HandlerConfig, logger *zap.Logger) (*webapp.Routing, error) {
	env := webapp.Env{Context: ctx, Logger: logger}
	rb := webapp.NewRoutingBuilder()
	for i, h := range handlers {
		handler, err := webapp.Create(h.Type, env, h.Options)
		if err != nil {
			return nil, fmt.Errorf("handlers[%d]: %w", i, err)
		}
		if err := rb.Add(h.Location, webapp.Uniform(handler)); err != nil {
			return nil, fmt.Errorf("handlers[%d]: %w", i, err)
		}
	}
	return rb.Build(), nil
}

func buildWebSocket(entries []WebSocketConfig) (*wsapp.Routing, error) {
	routes := make(map[string]wsapp.Handler, len(entries))
	for i, w := range entries {
		h, err := wsapp.Create(w.Type)
		if err != nil {
			return nil, fmt.Errorf("websocket[%d]: %w", i, err)
		}
		routes[w.Location] = h
	}
	return wsapp.NewRouting(routes)
}

// Close releases what Build opened.
func (b *Built) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i].Close())
	}
	b.closers = nil
	return err
}
