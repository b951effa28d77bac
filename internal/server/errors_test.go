package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetworkErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("starting: %w", &NetworkError{Op: "listen", Addr: "0.0.0.0:80", Err: syscall.EACCES})

	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, syscall.EACCES)
	assert.Contains(t, err.Error(), "listen on 0.0.0.0:80")
}

func TestClassifyReadError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want readFailure
	}{
		{"eof", io.EOF, readEOF},
		{"unexpected eof", io.ErrUnexpectedEOF, readTransport},
		{"closed", net.ErrClosed, readTransport},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, readTransport},
		{"tls record header", tls.RecordHeaderError{Msg: "first record does not look like a TLS handshake"}, readTransport},
		{"tls alert", fmt.Errorf("remote error: %w", tls.AlertError(40)), readTransport},
		{"tls certificate", &tls.CertificateVerificationError{Err: errors.New("unknown authority")}, readTransport},
		{"tls handshake", errors.New("tls: client offered only unsupported versions: []"), readTransport},
		{"malformed", errors.New("malformed HTTP request \"x\""), readMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyReadError(tt.err))
		})
	}
}

func TestValidTarget(t *testing.T) {
	tests := []struct {
		target string
		want   bool
	}{
		{"/", true},
		{"/a/b.html?q=1", true},
		{"", false},
		{"a/b", false},
		{"/a/../b", false},
		{"/..", false},
		{"*", false},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, validTarget(tt.target))
		})
	}
}
