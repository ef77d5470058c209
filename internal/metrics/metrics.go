// Package metrics exposes request counters for the file server in the
// Prometheus text format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "httpsserve"

// Metrics owns a private registry so tests can create independent sets.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	bytesSent   prometheus.Counter
	duration    *prometheus.HistogramVec
	rateLimited prometheus.Counter
}

// New creates and registers the file server collectors plus the standard
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests served, by method and status code.",
		}, []string{"method", "code"}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_bytes_total",
			Help:      "Response body bytes written.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent serving a request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.bytesSent,
		m.duration,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one completed request. Methods outside the set
// the file server answers are folded into "other".
func (m *Metrics) ObserveRequest(method string, status int, bytes int64, elapsed time.Duration) {
	method = methodLabel(method)
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.bytesSent.Add(float64(bytes))
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// methodLabel bounds the method label, which comes straight from the
// client, to a fixed set of values.
func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return method
	default:
		return "other"
	}
}

// ObserveRateLimited records one request rejected by the rate limiter.
func (m *Metrics) ObserveRateLimited() {
	m.rateLimited.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
