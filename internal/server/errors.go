package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// NetworkError is a failure to bind, listen or otherwise set up a socket.
type NetworkError struct {
	Op   string // Step that failed ("listen", "accept", ...)
	Addr string // address:port being operated on
	Err  error  // Underlying error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("network error during %s on %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("network error during %s on %s", e.Op, e.Addr)
}

// Unwrap returns the underlying error for error chain inspection
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ConfigError reports a missing or invalid server setting.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid server configuration: %s: %s", e.Field, e.Message)
}

var errBodyTooLarge = errors.New("request body too large")

// readFailure classifies an error from reading a request.
type readFailure int

const (
	// The peer closed the connection between requests.
	readEOF readFailure = iota
	// The socket failed or was closed under us.
	readTransport
	// The bytes received are not a valid request.
	readMalformed
)

func classifyReadError(err error) readFailure {
	if errors.Is(err, io.EOF) {
		return readEOF
	}
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return readTransport
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return readTransport
	}
	if isTLSHandshakeError(err) {
		return readTransport
	}
	return readMalformed
}

// isTLSHandshakeError reports whether err came from a failed TLS handshake
// rather than from parsing a request.
func isTLSHandshakeError(err error) bool {
	var recordErr tls.RecordHeaderError
	var alertErr tls.AlertError
	var verifyErr *tls.CertificateVerificationError
	switch {
	case errors.As(err, &recordErr), errors.As(err, &alertErr), errors.As(err, &verifyErr):
		return true
	}
	return strings.HasPrefix(err.Error(), "tls: ")
}
