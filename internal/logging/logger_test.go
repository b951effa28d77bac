package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	require.NoError(t, Initialize("", ""))
	assert.False(t, GetLogger().Core().Enabled(zapcore.ErrorLevel))
}

func TestBuildRejectsUnknownFormat(t *testing.T) {
	_, err := Build("info", "xml")
	assert.Error(t, err)
}

func TestLogAccess(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	LogAccess(log, AccessEntry{
		RemoteAddr:    "10.0.0.1",
		Method:        "GET",
		Proto:         "HTTP/1.1",
		Status:        404,
		ContentType:   "text/html",
		ContentLength: 42,
		Path:          "/missing",
		UserAgent:     "curl/8",
	})

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/missing", fields["path"])
	assert.Equal(t, int64(404), fields["status"])
	_, hasExtra := fields["extra"]
	assert.False(t, hasExtra)
}

func TestDumps(t *testing.T) {
	assert.Equal(t, "", hexDump(nil))
	assert.Equal(t, "4869", hexDump([]byte("Hi")))
	assert.Equal(t, "H.i", asciiDump([]byte{'H', 0x01, 'i'}))
	assert.Equal(t, "ping", wsMessageTypeName(9))
}
