// Package metrics exposes Prometheus collectors for the services and the gateway.
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

// Registry owns its collectors so several instances can coexist in tests.
type Registry struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	proxyRequests *prometheus.CounterVec
	proxyLatency  *prometheus.HistogramVec
	proxyRetries  *prometheus.CounterVec

	robEntries *prometheus.CounterVec
}

func New(service string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	constLabels := prometheus.Labels{"service": service}

	r := &Registry{
		reg: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "memp_http_requests_total",
			Help:        "HTTP requests handled, by route, method and status.",
			ConstLabels: constLabels,
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "memp_http_request_duration_seconds",
			Help:        "HTTP request latency.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"route", "method"}),
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "memp_gateway_upstream_requests_total",
			Help:        "Requests forwarded to upstream services, by route prefix and status.",
			ConstLabels: constLabels,
		}, []string{"upstream", "status"}),
		proxyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "memp_gateway_upstream_duration_seconds",
			Help:        "Upstream round trip latency including retries.",
			ConstLabels: constLabels,
			Buckets:     []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"upstream"}),
		proxyRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "memp_gateway_retries_total",
			Help:        "Upstream retries after a 5xx or transport error.",
			ConstLabels: constLabels,
		}, []string{"upstream"}),
		robEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "memp_rob_entries_total",
			Help:        "ROB ledger entries appended, by ledger and entry mode.",
			ConstLabels: constLabels,
		}, []string{"ledger", "mode"}),
	}
	reg.MustRegister(r.httpRequests, r.httpLatency, r.proxyRequests, r.proxyLatency, r.proxyRetries, r.robEntries)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Middleware records request count and latency per matched gin route.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpLatency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func (r *Registry) ObserveProxy(upstream string, status int, d time.Duration) {
	r.proxyRequests.WithLabelValues(upstream, strconv.Itoa(status)).Inc()
	r.proxyLatency.WithLabelValues(upstream).Observe(d.Seconds())
}

func (r *Registry) IncRetry(upstream string) {
	r.proxyRetries.WithLabelValues(upstream).Inc()
}

// AddROBEntries counts ledger rows after a transaction commits.
func (r *Registry) AddROBEntries(ledger, mode string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.robEntries.WithLabelValues(ledger, mode).Add(float64(n))
}
