package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/trellis/internal/config"
	"github.com/muurk/trellis/internal/ui"
)

func resetServeFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		for _, name := range []string{"listen", "workers", "root", "log-level", "monitor"} {
			f := serveCmd.Flags().Lookup(name)
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
}

func TestFlagOverrides(t *testing.T) {
	resetServeFlags(t)
	root := t.TempDir()
	flags := serveCmd.Flags()
	require.NoError(t, flags.Set("listen", "127.0.0.1:9000"))
	require.NoError(t, flags.Set("workers", "3"))
	require.NoError(t, flags.Set("log-level", "debug"))
	require.NoError(t, flags.Set("root", root))

	cfg := &config.Config{}
	require.NoError(t, flagOverrides(flags)(cfg))

	assert.Equal(t, "127.0.0.1", cfg.Server.Address)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Server.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Handlers, 1)
	assert.Equal(t, "files", cfg.Handlers[0].Type)
	assert.Equal(t, root, cfg.Handlers[0].Options["root"])
}

func TestFlagOverridesUnsetLeaveConfig(t *testing.T) {
	resetServeFlags(t)
	cfg := &config.Config{Server: config.ServerConfig{Port: 8080, Workers: 2}}
	require.NoError(t, flagOverrides(serveCmd.Flags())(cfg))
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Server.Workers)
	assert.Empty(t, cfg.Handlers)
}

func TestFlagOverridesBadListen(t *testing.T) {
	resetServeFlags(t)
	require.NoError(t, serveCmd.Flags().Set("listen", "no-port"))
	assert.Error(t, flagOverrides(serveCmd.Flags())(&config.Config{}))
}

func TestSetFilesRoot(t *testing.T) {
	tests := []struct {
		name     string
		handlers []config.HandlerConfig
		wantErr  bool
		wantLen  int
	}{
		{"adds handler", nil, false, 1},
		{"replaces root", []config.HandlerConfig{{Type: "files", Location: "/static /"}}, false, 1},
		{"keeps other mounts", []config.HandlerConfig{{Type: "canned", Location: "/ping"}}, false, 2},
		{"conflict", []config.HandlerConfig{{Type: "redirect", Location: "/"}}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Handlers: tt.handlers}
			err := setFilesRoot(cfg, "/srv/www")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, cfg.Handlers, tt.wantLen)

			var found bool
			for _, h := range cfg.Handlers {
				if h.Type == "files" && h.Options["root"] == "/srv/www" {
					found = true
				}
			}
			assert.True(t, found)
		})
	}
}

func TestRouteRows(t *testing.T) {
	cfg := &config.Config{
		Handlers: []config.HandlerConfig{
			{Type: "files", Location: "/", Options: map[string]any{"root": t.TempDir()}},
			{Type: "canned", Location: "/ping /health"},
		},
		WebSocket: []config.WebSocketConfig{{Type: "echo", Location: "/ws"}},
	}
	config.ApplyDefaults(cfg)
	built, err := config.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer built.Close()

	rows, err := routeRows(cfg, built)
	require.NoError(t, err)
	assert.Equal(t, []ui.RouteRow{
		{Location: "/", Kind: "http", Handler: "files"},
		{Location: "/health", Kind: "http", Handler: "canned"},
		{Location: "/ping", Kind: "http", Handler: "canned"},
		{Location: "/ws", Kind: "websocket", Handler: "echo"},
	}, rows)
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version", "--json"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		versionJSON = false
	})

	require.NoError(t, rootCmd.Execute())
	var info map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.NotEmpty(t, info["version"])
	assert.NotEmpty(t, info["commit"])
}
