// Package metrics provides Prometheus metrics for the request pipeline.
// It tracks request outcomes, cache effectiveness, rate-limit denials,
// retries, token usage, and accumulated cost.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "modelrelay"

// LatencyBuckets defines histogram buckets for latency metrics (in seconds).
var LatencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	1.0, 2.5, 5.0, 10.0, 20.0, 30.0, 60.0, 120.0,
}

var (
	// RequestsTotal counts completed pipeline requests by outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of pipeline requests",
		},
		[]string{"provider", "model", "status"},
	)

	// RequestLatency tracks end-to-end pipeline latency.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "End-to-end request latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"provider", "model"},
	)

	// CacheHits counts responses served from cache.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"provider", "model"},
	)

	// CacheMisses counts cache lookups that went to the provider.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"provider", "model"},
	)

	// RateLimitDenials counts requests rejected before dispatch.
	RateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_denials_total",
			Help:      "Total number of rate-limited requests",
		},
		[]string{"provider", "model", "dimension"},
	)

	// RetryAttempts counts provider call retries (not first attempts).
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of retried provider calls",
		},
		[]string{"provider", "model"},
	)

	// TokensTotal accumulates token usage by direction.
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Total tokens consumed",
		},
		[]string{"provider", "model", "direction"},
	)

	// CostTotal accumulates computed request cost.
	CostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_total",
			Help:      "Accumulated request cost in configured currency",
		},
		[]string{"provider", "model"},
	)
)

// ObserveUsage records token counters for a completed request.
func ObserveUsage(provider, model string, inputTokens, outputTokens int) {
	TokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	TokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
}
