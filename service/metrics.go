package service

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the service's Prometheus metrics on a private
// registry so the /metrics endpoint only exposes what the service owns.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// NewMetrics creates and registers the service metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iiif_requests_total",
			Help: "IIIF requests by mode and response status.",
		}, []string{"mode", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iiif_request_duration_seconds",
			Help:    "IIIF request duration by mode.",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iiif_cache_hits_total",
			Help: "Responses served from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iiif_cache_misses_total",
			Help: "Responses computed because no cache entry existed.",
		}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.cacheHits, m.cacheMisses)
	return m
}

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
