package api

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

// Metrics holds the gateway's Prometheus collectors
type Metrics struct {
	registry    *prometheus.Registry
	operations  *prometheus.CounterVec
	transferred *prometheus.CounterVec
	http        middleware.Middleware
}

// NewMetrics registers the gateway collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "objectgate",
			Name:      "operations_total",
			Help:      "Pipeline operations by operation and result code.",
		}, []string{"operation", "code"}),
		transferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "objectgate",
			Name:      "transferred_bytes_total",
			Help:      "Object bytes streamed through the gateway.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.operations, m.transferred)

	m.http = middleware.New(middleware.Config{
		Recorder: metrics.NewRecorder(metrics.Config{Registry: reg}),
	})
	return m
}

// Middleware records request latency and size per route
func (m *Metrics) Middleware(handlerID string) func(http.Handler) http.Handler {
	return std.HandlerProvider(handlerID, m.http)
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(operation string, code int) {
	m.operations.WithLabelValues(operation, strconv.Itoa(code)).Inc()
}

func (m *Metrics) addBytes(direction string, n int64) {
	if n > 0 {
		m.transferred.WithLabelValues(direction).Add(float64(n))
	}
}
