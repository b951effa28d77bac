// Package metrics defines the server's Prometheus collectors and the small
// admin HTTP surface that exposes them.
//
// The admin surface is a separate net/http server on its own port and is not
// routed through the event loop:
//
//	GET /metrics   Prometheus exposition
//	GET /healthz   "ok" while the server is running
//	GET /stats     JSON snapshot of connections, sessions and workers
package metrics
