package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, `
server:
  port: 9001
  workers: 3
handlers:
  - type: files
    location: /static /assets
    root: `+root+`
    cache_control: no-cache
  - type: redirect
    location: /old
    matches:
      - pattern: ^/old/(.+)$
        redirect: 1 301 /new/$1
websocket:
  - type: echo
    location: /ws
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Server.Workers)
	assert.True(t, cfg.Server.RegisterSignalHandler)
	assert.Equal(t, "trellis", cfg.Server.ID)
	assert.Equal(t, "session", cfg.Server.SessionCookie)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "http.server", cfg.Logging.Namespace)
	assert.Equal(t, "memory", cfg.Sessions.Store)

	require.Len(t, cfg.Handlers, 2)
	assert.Equal(t, "files", cfg.Handlers[0].Type)
	assert.Equal(t, "/static /assets", cfg.Handlers[0].Location)
	assert.Equal(t, root, cfg.Handlers[0].Options["root"])
	assert.Equal(t, "no-cache", cfg.Handlers[0].Options["cache_control"])
	assert.NotContains(t, cfg.Handlers[0].Options, "type")
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9001
handlers:
  - type: failing
    location: /
`)
	t.Setenv("TRELLIS_SERVER_PORT", "9555")
	t.Setenv("TRELLIS_LOGGING_LEVEL", "DEBUG")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9555, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no handlers", "server:\n  port: 80\n", "at least one handler"},
		{"unknown type", "handlers:\n  - type: teapot\n    location: /\n", "unknown handler type"},
		{"missing location", "handlers:\n  - type: failing\n", "Location"},
		{"relative location", "handlers:\n  - type: failing\n    location: here\n", "must start with /"},
		{"duplicate location", "handlers:\n  - type: failing\n    location: /a\n  - type: failing\n    location: /b /a\n", "already used"},
		{"bad port", "server:\n  port: 70000\nhandlers:\n  - type: failing\n    location: /\n", "Port"},
		{"bad websocket type", "handlers:\n  - type: failing\n    location: /\nwebsocket:\n  - type: chat\n    location: /ws\n", "Type"},
		{"half tls", "handlers:\n  - type: failing\n    location: /\ntls:\n  cert: a.pem\n", "cert and key"},
		{"badger without dir", "handlers:\n  - type: failing\n    location: /\nsessions:\n  store: badger\n", "dir is required"},
		{"bad level", "logging:\n  level: loud\nhandlers:\n  - type: failing\n    location: /\n", "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	// Defaults alone have no handlers, which is a validation error rather
	// than a read error.
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one handler")
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := WriteDefault(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "# trellis configuration file"))
	for _, section := range []string{"server:", "handlers:", "logging:", "sessions:"} {
		assert.Contains(t, content, section)
	}

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))

	_, err = WriteDefault(path, false)
	assert.Error(t, err, "existing file is kept without force")

	_, err = WriteDefault(path, true)
	assert.NoError(t, err)
}

func TestWrittenDefaultLoadsAndBuilds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	_, err := WriteDefault(path, false)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Handlers, 2)
	assert.Equal(t, "files", cfg.Handlers[0].Type)

	// Point the file root somewhere that exists.
	cfg.Handlers[0].Options["root"] = dir
	built, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer built.Close()
	assert.Equal(t, 2, built.Routing.Table().Len())
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Contains(t, path, "trellis")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("", func(c *Config) error {
		c.Handlers = append(c.Handlers, HandlerConfig{Type: "failing", Location: "/"})
		c.Server.Port = 0
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Server.Port)
	require.Len(t, cfg.Handlers, 1)
	assert.NotNil(t, cfg.Handlers[0].Options)

	_, err = Load("", func(*Config) error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
}
