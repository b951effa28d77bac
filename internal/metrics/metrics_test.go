package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.ObserveRequest("GET", 200, 3*time.Millisecond)
	c.ObserveRequest("GET", 404, time.Millisecond)
	c.ObserveRequest("GET", 404, time.Millisecond)
	c.SetClientSessions(5)
	c.WorkerRestarted()
	c.WebSocketOpened()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.connectionsAccepted))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.activeConnections))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "404")))
	assert.Equal(t, float64(5), testutil.ToFloat64(c.clientSessions))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.workerRestarts))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.websocketSessions))
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var c *Collectors
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.ObserveRequest("GET", 200, 0)
	c.SetClientSessions(1)
	c.WorkerRestarted()
	c.WebSocketOpened()
	c.WebSocketClosed()
}

func TestAdminRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.ConnectionOpened()

	running := true
	router := NewAdminRouter(reg,
		func() any { return map[string]int{"active_connections": 1} },
		func() bool { return running },
	)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"metrics", "/metrics", 200, "trellis_connections_accepted_total 1"},
		{"healthz", "/healthz", 200, "ok"},
		{"stats", "/stats", 200, `"active_connections":1`},
		{"unknown", "/nope", 404, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}

	running = false
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListenAdmin(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	a, err := ListenAdmin("127.0.0.1:0", NewAdminRouter(reg, nil, nil), nil)
	require.NoError(t, err)

	resp, err := http.Get("http://" + a.Addr().String() + "/stats")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Empty(t, decoded)

	assert.NoError(t, a.Close())
}
