// Package metrics holds the prometheus collectors of the waterboard daemon.
// The store and access layers report through hooks; HTTP traffic is
// recorded by a gin middleware.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a set of collectors bound to one registry.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	recordsWritten *prometheus.CounterVec
	readDegraded   *prometheus.CounterVec
	accessDenied   *prometheus.CounterVec
	loginOutcomes  *prometheus.CounterVec
}

// New registers every collector on a fresh registry. sessions, when non-nil,
// backs the active session gauge.
func New(sessions func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		Registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waterboard_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "waterboard_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		recordsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waterboard_store_writes_total",
			Help: "Successful collection writes by collection and operation.",
		}, []string{"collection", "op"}),
		readDegraded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waterboard_store_read_degradations_total",
			Help: "Collection reads that fell back to an empty sequence.",
		}, []string{"collection", "reason"}),
		accessDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waterboard_access_denied_total",
			Help: "Privileged operations refused by the access gate.",
		}, []string{"operation"}),
		loginOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "waterboard_logins_total",
			Help: "Login attempts by role and outcome.",
		}, []string{"role", "outcome"}),
	}
	if sessions != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "waterboard_sessions",
			Help: "Sessions currently held in memory.",
		}, func() float64 { return float64(sessions()) })
	}
	return m
}

// StoreOptions returns engine options feeding the store counters.
func (m *Metrics) StoreOptions() []engine.Option {
	return []engine.Option{
		engine.WithReadHook(func(collection string, reason engine.ReadFailure) {
			m.readDegraded.WithLabelValues(collection, string(reason)).Inc()
		}),
		engine.WithWriteHook(func(collection, op string) {
			m.recordsWritten.WithLabelValues(collection, op).Inc()
		}),
	}
}

// Denied counts a refused operation.
func (m *Metrics) Denied(op string) {
	m.accessDenied.WithLabelValues(op).Inc()
}

// Login counts a login attempt.
func (m *Metrics) Login(role string, ok bool) {
	outcome := "denied"
	if ok {
		outcome = "success"
	}
	m.loginOutcomes.WithLabelValues(role, outcome).Inc()
}

// Middleware records request count and latency. The route label is the gin
// route pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
