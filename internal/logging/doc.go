// Package logging provides structured logging for the trellis server.
//
// This package wraps the zap logger with convenience functions for the logging
// patterns used throughout the server. Components never format log output
// themselves; they receive a *zap.Logger (usually obtained from Named) and
// emit structured fields.
//
// # Log Levels
//
//   - Debug: connection lifecycle events, raw byte dumps, WebSocket frames
//   - Info: access log lines, server start/stop, worker start/stop
//   - Warn: transport errors on a single connection, ignored configuration
//   - Error: handler panics, worker restarts, failed side effects (email)
//
// # Configuration
//
// Initialize the global logger at startup:
//
//	if err := logging.Initialize("info", "console"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// An empty level falls back to TRELLIS_LOG_LEVEL; if that is also empty the
// logger is a no-op, which keeps CLI subcommands quiet by default.
//
// # Namespaces
//
// The server logs under a configurable namespace (default "http.server"):
//
//	log := logging.Named("http.server")
//	logging.LogAccess(log, logging.AccessEntry{...})
//
// # Thread Safety
//
// All functions are safe for concurrent use.
package logging
