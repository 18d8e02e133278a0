// Package metrics provides Prometheus instrumentation for the gateway and the
// model catalog cache.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestLatency tracks gateway call latency in seconds.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_latency_seconds",
			Help:    "Gateway call latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "status"},
	)

	// RequestsTotal counts gateway calls by method and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of gateway calls by method and status.",
		},
		[]string{"method", "status"}, // status: "success" or a gRPC code name
	)

	// ActiveRequests tracks the number of in-flight gateway calls.
	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_active_requests",
			Help: "Number of in-flight gateway calls.",
		},
	)

	// TokenUsageTotal counts tokens reported by OpenRouter.
	TokenUsageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openrouter_token_usage_total",
			Help: "Total number of tokens reported by OpenRouter.",
		},
		[]string{"model", "direction"}, // direction: "input" or "output"
	)

	// StreamChunksTotal counts chunks relayed from streaming completions.
	StreamChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openrouter_stream_chunks_total",
			Help: "Total number of streamed completion chunks relayed.",
		},
		[]string{"model"},
	)

	// CatalogLookupsTotal counts model catalog lookups by the tier that
	// answered: "memory", "redis" or "api".
	CatalogLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_lookups_total",
			Help: "Total number of model catalog lookups by answering tier.",
		},
		[]string{"tier"},
	)

	// CatalogHitRatio is the share of catalog lookups served from a cache tier.
	CatalogHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_hit_ratio",
			Help: "Share of model catalog lookups served from cache.",
		},
	)

	ratioMu      sync.Mutex
	totalHits    float64
	totalLookups float64
)

// ObserveRequest records one finished gateway call.
func ObserveRequest(method, status string, elapsed time.Duration) {
	RequestLatency.WithLabelValues(method, status).Observe(elapsed.Seconds())
	RequestsTotal.WithLabelValues(method, status).Inc()
}

// RecordTokens adds a usage report to the token counters.
func RecordTokens(model string, prompt, completion int) {
	if prompt > 0 {
		TokenUsageTotal.WithLabelValues(model, "input").Add(float64(prompt))
	}
	if completion > 0 {
		TokenUsageTotal.WithLabelValues(model, "output").Add(float64(completion))
	}
}

// RecordCatalogLookup records which tier answered a catalog lookup and updates
// the hit ratio.
func RecordCatalogLookup(tier string) {
	CatalogLookupsTotal.WithLabelValues(tier).Inc()

	ratioMu.Lock()
	defer ratioMu.Unlock()
	totalLookups++
	if tier != "api" {
		totalHits++
	}
	CatalogHitRatio.Set(totalHits / totalLookups)
}
