// Package metrics provides centralized Prometheus metrics registry for tipwatch.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	ResultsUpsertedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipwatch",
		Name:      "race_results_upserted_total",
		Help:      "Total number of race result rows upserted by provider",
	}, []string{"provider"})
	OutcomesWrittenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipwatch",
		Name:      "tip_outcomes_written_total",
		Help:      "Total number of tip outcomes created or updated by status",
	}, []string{"status"})
	PrecedenceRefusalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tipwatch",
		Name:      "precedence_refusals_total",
		Help:      "Total number of outcome overwrites refused by provider precedence",
	})
	AmbiguousMatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tipwatch",
		Name:      "ambiguous_track_matches_total",
		Help:      "Total number of fuzzy track matches resolved by tie-break",
	})
	PricesBackfilledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipwatch",
		Name:      "prices_backfilled_total",
		Help:      "Total number of missing starting prices filled from the live-price feed",
	}, []string{"kind"})
	ReconcileRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipwatch",
		Name:      "reconcile_runs_total",
		Help:      "Total number of reconciliation passes by result",
	}, []string{"result"})
)

// Gauge metrics
var (
	PendingTips = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tipwatch",
		Name:      "pending_tips",
		Help:      "Tips without an outcome after the most recent reconciliation pass",
	})
)

// Histogram metrics
var (
	ReconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tipwatch",
		Name:      "reconcile_duration_seconds",
		Help:      "Duration of one date's reconciliation in seconds",
		Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
	})
	AnalyticsQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tipwatch",
		Name:      "analytics_query_duration_seconds",
		Help:      "Duration of analytics computations in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register reconciliation metrics
		registry.MustRegister(ResultsUpsertedTotal)
		registry.MustRegister(OutcomesWrittenTotal)
		registry.MustRegister(PrecedenceRefusalsTotal)
		registry.MustRegister(AmbiguousMatchesTotal)
		registry.MustRegister(PricesBackfilledTotal)
		registry.MustRegister(ReconcileRunsTotal)
		registry.MustRegister(PendingTips)
		registry.MustRegister(ReconcileDuration)
		registry.MustRegister(AnalyticsQueryDuration)

		// Register feed metrics
		registry.MustRegister(FeedFetchesTotal)
		registry.MustRegister(FeedRowsSkippedTotal)
		registry.MustRegister(FeedFetchDuration)
		registry.MustRegister(CacheRequestsTotal)
		registry.MustRegister(CircuitBreakerTripsTotal)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordResultsUpserted records race result upserts for a provider.
func RecordResultsUpserted(provider string, n int) {
	ResultsUpsertedTotal.WithLabelValues(provider).Add(float64(n))
}

// RecordOutcomeWritten records one tip outcome write.
func RecordOutcomeWritten(status string) {
	OutcomesWrittenTotal.WithLabelValues(status).Inc()
}

// RecordPrecedenceRefusal records a refused lower-precedence overwrite.
func RecordPrecedenceRefusal() {
	PrecedenceRefusalsTotal.Inc()
}

// RecordAmbiguousMatch records a tie-broken fuzzy match.
func RecordAmbiguousMatch() {
	AmbiguousMatchesTotal.Inc()
}

// RecordPriceBackfill records a back-filled starting price.
func RecordPriceBackfill(kind string) {
	PricesBackfilledTotal.WithLabelValues(kind).Inc()
}

// RecordReconcileRun records a finished reconciliation pass.
func RecordReconcileRun(partial bool, durationSeconds float64, pending int) {
	result := "complete"
	if partial {
		result = "partial"
	}
	ReconcileRunsTotal.WithLabelValues(result).Inc()
	ReconcileDuration.Observe(durationSeconds)
	PendingTips.Set(float64(pending))
}

// RecordAnalyticsQuery records the duration of an analytics computation.
func RecordAnalyticsQuery(kind string, durationSeconds float64) {
	AnalyticsQueryDuration.WithLabelValues(kind).Observe(durationSeconds)
}
