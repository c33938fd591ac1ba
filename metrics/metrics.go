// Package metrics defines the Prometheus instruments shared across the
// pipeline. Collectors are registered with the default registry and exposed
// by the server's /metrics handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CoercionFallbacks counts responses that could not be parsed into the
	// target shape and were replaced by the deterministic fallback. This is
	// the quality signal for upstream output discipline.
	CoercionFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plainterms",
		Name:      "coercion_fallbacks_total",
		Help:      "Completion responses coerced to the fallback object, by target shape.",
	}, []string{"shape"})

	// CompletionDuration observes the latency of completion service calls.
	CompletionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "plainterms",
		Name:      "completion_duration_seconds",
		Help:      "Latency of completion service calls.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
	})

	// HTTPRequests counts API requests by route and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plainterms",
		Name:      "http_requests_total",
		Help:      "API requests by route and status.",
	}, []string{"route", "status"})
)
