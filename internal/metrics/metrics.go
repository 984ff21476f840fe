// Package metrics defines the Prometheus collectors docqa records into.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Handle cache metrics.
var (
	// HandleCacheTotal counts handle cache lookups and evictions.
	HandleCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_handle_cache_total",
			Help: "Handle cache events by cache (generation, embedding) and result (hit, miss, evict).",
		},
		[]string{"cache", "result"},
	)
)

// Upstream call metrics.
var (
	// UpstreamCallsTotal counts provider calls by kind, provider and outcome.
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_upstream_calls_total",
			Help: "Calls to generation and embedding providers.",
		},
		[]string{"kind", "provider", "outcome"},
	)

	// UpstreamLatency observes provider call latency in seconds.
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docqa_upstream_latency_seconds",
			Help:    "Provider call latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind", "provider"},
	)
)

// Registry metrics.
var (
	// RegistryFallbackTotal counts loads that fell back to built-in descriptors.
	RegistryFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docqa_registry_fallback_total",
			Help: "Registry loads served from the built-in fallback set.",
		},
	)
)

// ObserveUpstream records one provider call.
func ObserveUpstream(kind, provider, outcome string, started time.Time) {
	UpstreamCallsTotal.WithLabelValues(kind, provider, outcome).Inc()
	UpstreamLatency.WithLabelValues(kind, provider).Observe(time.Since(started).Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
