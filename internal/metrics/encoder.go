package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vecmatch"

// Encoder Prometheus metrics.
var (
	EncoderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoder_requests_total",
			Help:      "Total number of encoder requests",
		},
		[]string{"provider", "model", "status"},
	)

	EncoderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encoder_request_duration_seconds",
			Help:      "Encoder request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EncoderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoder_tokens_total",
			Help:      "Total encoder tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	EncoderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoder_errors_total",
			Help:      "Total encoder errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	EncoderCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoder_cache_total",
			Help:      "Encoder cache hits and misses",
		},
		[]string{"layer", "result"}, // layer: "lru" / "kv"; result: "hit" / "miss"
	)

	EncoderBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "encoder_breaker_state",
			Help:      "Encoder circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)

	EncoderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoder_retries_total",
			Help:      "Encoder calls retried after a transient failure",
		},
		[]string{"provider"},
	)
)

var encoderOnce sync.Once

// RegisterEncoderMetrics registers encoder metrics with the default registry.
func RegisterEncoderMetrics() {
	encoderOnce.Do(func() {
		prometheus.MustRegister(
			EncoderRequestsTotal,
			EncoderRequestDuration,
			EncoderTokensTotal,
			EncoderErrorsTotal,
			EncoderCacheTotal,
			EncoderBreakerState,
			EncoderRetriesTotal,
		)
	})
}
