package metrics

import "github.com/prometheus/client_golang/prometheus"

// Feed counter vectors
var (
	FeedFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipwatch",
		Name:      "feed_fetches_total",
		Help:      "Total number of external feed fetches by provider and status",
	}, []string{"provider", "status"})

	FeedRowsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipwatch",
		Name:      "feed_rows_skipped_total",
		Help:      "Total number of malformed feed rows dropped by provider",
	}, []string{"provider"})

	CacheRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipwatch",
		Name:      "feed_cache_requests_total",
		Help:      "Feed cache lookups by cache name and result",
	}, []string{"cache", "result"})

	CircuitBreakerTripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tipwatch",
		Name:      "circuit_breaker_trips_total",
		Help:      "Total number of circuit breaker trips",
	})
)

// Feed histogram vectors
var (
	FeedFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tipwatch",
		Name:      "feed_fetch_duration_seconds",
		Help:      "Duration of external feed fetches in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"provider"})
)

// RecordFeedFetch records one feed fetch and the rows it dropped.
func RecordFeedFetch(provider string, ok bool, skipped int, durationSeconds float64) {
	status := "success"
	if !ok {
		status = "error"
	}
	FeedFetchesTotal.WithLabelValues(provider, status).Inc()
	if skipped > 0 {
		FeedRowsSkippedTotal.WithLabelValues(provider).Add(float64(skipped))
	}
	FeedFetchDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordCacheHit records a fresh cache hit.
func RecordCacheHit(cache string) {
	CacheRequestsTotal.WithLabelValues(cache, "hit").Inc()
}

// RecordCacheMiss records a cache miss or stale entry.
func RecordCacheMiss(cache string) {
	CacheRequestsTotal.WithLabelValues(cache, "miss").Inc()
}

// RecordCircuitBreakerTrip records a circuit breaker trip event.
func RecordCircuitBreakerTrip() {
	CircuitBreakerTripsTotal.Inc()
}
