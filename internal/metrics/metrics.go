package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the api's collectors on a private registry.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	sessionsCreated    *prometheus.CounterVec
	accountsRegistered prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "battlearena_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "battlearena_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		sessionsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "battlearena_sessions_created_total",
				Help: "Game sessions created by client variant",
			},
			[]string{"variant"},
		),
		accountsRegistered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "battlearena_accounts_registered_total",
				Help: "Self-service account registrations",
			},
		),
	}

	registry.MustRegister(m.requestsTotal, m.requestDuration, m.sessionsCreated, m.accountsRegistered)
	return m
}

func (m *Metrics) AccountRegistered() {
	m.accountsRegistered.Inc()
}

func (m *Metrics) SessionCreated(variant string) {
	m.sessionsCreated.WithLabelValues(variant).Inc()
}

// Middleware records every request under its route pattern. Unmatched
// requests share one label so scanners cannot blow up cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
