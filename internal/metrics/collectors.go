package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "trellis"

// Collectors holds the server's Prometheus metrics. A nil *Collectors is
// valid and records nothing.
type Collectors struct {
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	activeConnections   prometheus.Gauge
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	clientSessions      prometheus.Gauge
	workerRestarts      prometheus.Counter
	websocketSessions   prometheus.Gauge
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Collectors{
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted TCP connections",
		}),
		connectionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of closed HTTP connections",
		}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_connections",
			Help:      "Number of currently open HTTP connections",
		}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP responses sent",
		}, []string{"method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from request parsed to response queued",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		clientSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "client_sessions",
			Help:      "Number of in-memory client sessions",
		}),
		workerRestarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "worker_restarts_total",
			Help:      "Total number of worker restarts after a panic",
		}),
		websocketSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "websocket_sessions",
			Help:      "Number of open WebSocket sessions",
		}),
	}
}

func (c *Collectors) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsAccepted.Inc()
	c.activeConnections.Inc()
}

func (c *Collectors) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsClosed.Inc()
	c.activeConnections.Dec()
}

// ObserveRequest records one response.
func (c *Collectors) ObserveRequest(method string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (c *Collectors) SetClientSessions(n int) {
	if c == nil {
		return
	}
	c.clientSessions.Set(float64(n))
}

func (c *Collectors) WorkerRestarted() {
	if c == nil {
		return
	}
	c.workerRestarts.Inc()
}

func (c *Collectors) WebSocketOpened() {
	if c == nil {
		return
	}
	c.websocketSessions.Inc()
}

func (c *Collectors) WebSocketClosed() {
	if c == nil {
		return
	}
	c.websocketSessions.Dec()
}
