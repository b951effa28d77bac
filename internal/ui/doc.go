// Package ui provides terminal output for the trellis-server CLI.
//
// It uses Bubble Tea and Lipgloss. Most components follow a "render once"
// pattern: a Header banner when the server starts, a Result box at the end
// of a command, and the route table printed by "trellis-server routes".
//
// The exception is the Monitor, an interactive view started by
// "serve --monitor". It polls Server.Stats every second and shows open
// connections, client sessions, pending I/O tasks and worker occupancy.
// Pressing q stops the server.
//
// # Logging Integration
//
// Logging goes to stdout as well, so the monitor is only useful when logging
// is silent (TRELLIS_LOG_LEVEL unset) or sent elsewhere.
package ui
