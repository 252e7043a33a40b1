// Package metrics owns the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the application collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	approvals  *prometheus.CounterVec
	syncDeltas *prometheus.CounterVec
	wsClients  prometheus.Gauge
	httpTotal  *prometheus.CounterVec
	httpTiming *prometheus.HistogramVec
}

// New registers every collector, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "approvals_total",
			Help: "Approval attempts by mode and outcome.",
		}, []string{"mode", "outcome"}),
		syncDeltas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_deltas_total",
			Help: "Document deltas applied by the live synchronizers.",
		}, []string{"collection", "kind"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Connected notification websocket clients.",
		}),
		httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.approvals,
		m.syncDeltas,
		m.wsClients,
		m.httpTotal,
		m.httpTiming,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveApproval counts one approval attempt. outcome is "ok" or an error
// class such as "conflict".
func (m *Metrics) ObserveApproval(mode, outcome string) {
	m.approvals.WithLabelValues(mode, outcome).Inc()
}

// ObserveDelta counts one synchronizer delta.
func (m *Metrics) ObserveDelta(collection, kind string) {
	m.syncDeltas.WithLabelValues(collection, kind).Inc()
}

// ClientConnected counts a new websocket client.
func (m *Metrics) ClientConnected() { m.wsClients.Inc() }

// ClientDisconnected counts a websocket client going away.
func (m *Metrics) ClientDisconnected() { m.wsClients.Dec() }

// Middleware records request count and latency. The route label is the chi
// route pattern so ids do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpTiming.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
