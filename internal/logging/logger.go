package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// LogLevelEnvVar is the environment variable that controls logging verbosity
// when no level is passed explicitly. When unset or empty, logging is silent.
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "TRELLIS_LOG_LEVEL"

// DefaultNamespace is the logger name used by the HTTP server when the
// configuration does not provide one.
const DefaultNamespace = "http.server"

// Initialize creates the global logger with the specified level and format.
// If level is empty, it checks the TRELLIS_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
// Format is "console" (default) or "json".
func Initialize(level, format string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		setLogger(zap.NewNop())
		return nil
	}

	built, err := Build(level, format)
	if err != nil {
		return err
	}
	setLogger(built)
	return nil
}

// Build constructs a standalone zap logger without touching the global one.
func Build(level, format string) (*zap.Logger, error) {
	zapLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var config zap.Config
	switch strings.ToLower(format) {
	case "json":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "", "console":
		config = zap.Config{
			Level:            zap.NewAtomicLevelAt(zapLevel),
			Development:      false,
			Encoding:         "console",
			EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		}
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q (expected console or json)", format)
	}

	built, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return built, nil
}

// ParseLevel maps a level name to a zap level. Unknown names are an error.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

func setLogger(l *zap.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		// Silent until initialised
		return zap.NewNop()
	}
	return l
}

// Named returns a child of the global logger for the given namespace.
func Named(namespace string) *zap.Logger {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return GetLogger().Named(namespace)
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// LogConnection logs a connection lifecycle event
func LogConnection(log *zap.Logger, remoteAddr string, event string) {
	log.Debug("Connection event",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// AccessEntry is one line of the access log.
type AccessEntry struct {
	RemoteAddr    string
	Method        string
	Proto         string
	Status        int
	ContentType   string
	ContentLength int64
	Path          string
	Extra         string
	UserAgent     string
}

// LogAccess writes a single access-log line for a response.
func LogAccess(log *zap.Logger, e AccessEntry) {
	fields := []zap.Field{
		zap.String("remote_addr", e.RemoteAddr),
		zap.String("method", e.Method),
		zap.String("proto", e.Proto),
		zap.Int("status", e.Status),
		zap.String("content_type", e.ContentType),
		zap.Int64("content_length", e.ContentLength),
		zap.String("path", e.Path),
		zap.String("user_agent", e.UserAgent),
	}
	if e.Extra != "" {
		fields = append(fields, zap.String("extra", e.Extra))
	}
	log.Info("access", fields...)
}

// LogWebSocketMessage logs a WebSocket message
func LogWebSocketMessage(log *zap.Logger, remoteAddr string, direction string, messageType int, data []byte) {
	fields := []zap.Field{
		zap.String("remote_addr", remoteAddr),
		zap.String("direction", direction),
		zap.String("message_type", wsMessageTypeName(messageType)),
		zap.Int("length", len(data)),
	}

	if messageType == 2 || log.Core().Enabled(zapcore.DebugLevel) {
		fields = append(fields, zap.String("hex_dump", hexDump(data)))
	}

	if messageType == 1 {
		fields = append(fields, zap.String("content", string(data)))
	}

	log.Debug("WebSocket message", fields...)
}

// LogRawBytes logs raw bytes (useful for debugging wire issues)
func LogRawBytes(log *zap.Logger, label string, data []byte) {
	log.Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

// Helper functions

func wsMessageTypeName(msgType int) string {
	switch msgType {
	case 1:
		return "text"
	case 2:
		return "binary"
	case 8:
		return "close"
	case 9:
		return "ping"
	case 10:
		return "pong"
	default:
		return fmt.Sprintf("unknown(%d)", msgType)
	}
}

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	// Limit to first 256 bytes for logging
	if len(data) > 256 {
		return hex.EncodeToString(data[:256]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > 256 {
		data = data[:256]
	}

	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}

// Sync flushes any buffered log entries
func Sync() {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}
