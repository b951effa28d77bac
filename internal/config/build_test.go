package config

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/muurk/trellis/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{
		Server: ServerConfig{Port: 0, Workers: 2},
		Mime:   map[string]string{"text/html": "html", "text/plain": "txt log"},
		Handlers: []HandlerConfig{
			{Type: "files", Location: "/", Options: map[string]any{"root": root}},
			{Type: "canned", Location: "/ping /health", Options: map[string]any{"mime_type": "text/plain", "get": "pong"}},
			{Type: "failing", Location: "/private"},
		},
		WebSocket: []WebSocketConfig{{Type: "echo", Location: "/ws"}},
	}
	ApplyDefaults(cfg)
	require.NoError(t, Validate(cfg))

	built, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer built.Close()

	assert.Equal(t, 4, built.Routing.Table().Len())
	assert.NotNil(t, built.WebSocket)
	assert.Equal(t, "text/plain", built.Server.MimeTypes.Lookup("x.log"))
	assert.Equal(t, server.DefaultServerID, built.Server.ServerID)
	assert.Same(t, built.Sessions, built.Server.Sessions)
	assert.NotNil(t, built.Server.Metrics)

	families, err := built.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestBuildReportsHandlerErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler HandlerConfig
		wantErr string
	}{
		{"missing root", HandlerConfig{Type: "files", Location: "/", Options: map[string]any{"root": "/does/not/exist"}}, "handlers[0]"},
		{"unknown option", HandlerConfig{Type: "failing", Location: "/", Options: map[string]any{"colour": "red"}}, "colour"},
		{"bad regex", HandlerConfig{Type: "redirect", Location: "/", Options: map[string]any{
			"matches": []map[string]any{{"pattern": "(", "redirect": "/x"}},
		}}, "handlers[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(context.Background(), &Config{Handlers: []HandlerConfig{tt.handler}}, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildWithBadgerSessions(t *testing.T) {
	cfg := &Config{
		Handlers: []HandlerConfig{{Type: "failing", Location: "/"}},
		Sessions: SessionsConfig{Store: "badger", Dir: t.TempDir()},
	}
	ApplyDefaults(cfg)

	built, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	s := built.Sessions.Create(time.Now())
	require.NoError(t, built.Close())
	assert.NotEmpty(t, s.ID)
}

func TestBuiltServerServes(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Address: "127.0.0.1", Workers: 1},
		Handlers: []HandlerConfig{{Type: "canned", Location: "/", Options: map[string]any{"get": "hello"}}},
	}
	ApplyDefaults(cfg)

	built, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer built.Close()
	built.Server.RegisterSignalHandler = false

	srv, err := server.New(built.Server)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
