package config

import (
	"strings"

	"github.com/muurk/trellis/internal/logging"
	"github.com/muurk/trellis/internal/server"
)

// ApplyDefaults fills unset fields. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = currentVersion
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Namespace == "" {
		cfg.Logging.Namespace = logging.DefaultNamespace
	}

	if cfg.Server.ID == "" {
		cfg.Server.ID = server.DefaultServerID
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = "0.0.0.0"
	}
	if cfg.Server.WorkerPrefix == "" {
		cfg.Server.WorkerPrefix = server.DefaultWorkerPrefix
	}
	if cfg.Server.SessionCookie == "" {
		cfg.Server.SessionCookie = server.DefaultSessionCookie
	}

	if cfg.Sessions.Store == "" {
		cfg.Sessions.Store = "memory"
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = "127.0.0.1:9090"
	}

	if cfg.Discovery.Instance == "" {
		cfg.Discovery.Instance = cfg.Server.ID
	}

	for i := range cfg.Handlers {
		if cfg.Handlers[i].Options == nil {
			cfg.Handlers[i].Options = make(map[string]any)
		}
	}
}

// Default returns the configuration written by WriteDefault: static files
// from ./public, served at the root.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:                  8080,
			RegisterSignalHandler: true,
		},
		Logging: LoggingConfig{Level: "info"},
		Mime: map[string]string{
			"text/html":              "html htm",
			"text/css":               "css",
			"application/javascript": "js",
			"image/png":              "png",
		},
		Handlers: []HandlerConfig{
			{
				Type:     "files",
				Location: "/",
				Options: map[string]any{
					"root":         "./public",
					"default_file": "index.html",
				},
			},
			{
				Type:     "redirect",
				Location: "/old",
				Options: map[string]any{
					"matches": []map[string]any{
						{"pattern": "^/old/(.+)$", "redirect": "301 /$1"},
					},
				},
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
