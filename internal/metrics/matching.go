package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Matching Prometheus metrics.
var (
	MatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_requests_total",
			Help:      "Total number of match queries",
		},
		[]string{"direction", "status"},
	)

	MatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Match query duration in seconds, index lookup through ranking",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"direction"},
	)

	MatchResultsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_results_returned",
			Help:      "Number of ranked results per match query",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		},
		[]string{"direction"},
	)

	MatchDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_dropped_total",
			Help:      "Index hits dropped by the skill match floor",
		},
		[]string{"direction"},
	)

	UpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Total number of entity upserts",
		},
		[]string{"class", "status"},
	)
)

var matchingOnce sync.Once

// RegisterMatchingMetrics registers matching metrics with the default registry.
func RegisterMatchingMetrics() {
	matchingOnce.Do(func() {
		prometheus.MustRegister(
			MatchRequestsTotal,
			MatchDuration,
			MatchResultsReturned,
			MatchDroppedTotal,
			UpsertsTotal,
		)
	})
}

// Status returns the status label for err.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
