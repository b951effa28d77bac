// Package config loads, validates and assembles the trellis server
// configuration.
//
// # Configuration File Location
//
// When no path is given the file is looked up in platform-appropriate
// locations:
//   - Linux: $XDG_CONFIG_HOME/trellis/config.yaml or $HOME/.config/trellis/config.yaml
//   - macOS: $HOME/.config/trellis/config.yaml
//   - Windows: %LOCALAPPDATA%\trellis\config.yaml
//
// Scalar settings may be overridden with TRELLIS_* environment variables
// (TRELLIS_SERVER_PORT, TRELLIS_LOGGING_LEVEL, ...).
//
// # Example
//
//	server:
//	  port: 8080
//	  workers: 4
//	handlers:
//	  - type: files
//	    location: /
//	    root: ./public
//	  - type: redirect
//	    location: /old /legacy
//	    matches:
//	      - pattern: ^/old/(.+)$
//	        redirect: 1 301 /new/$1
//	websocket:
//	  - type: echo
//	    location: /ws
//
// # Usage Example
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	built, err := config.Build(ctx, cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer built.Close()
//	srv, err := server.New(built.Server)
package config
