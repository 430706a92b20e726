package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
}

func TestRecordOutcomeWritten(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(OutcomesWrittenTotal.WithLabelValues("WIN"))

	RecordOutcomeWritten("WIN")

	assert.Equal(t, before+1, testutil.ToFloat64(OutcomesWrittenTotal.WithLabelValues("WIN")))
}

func TestRecordResultsUpserted(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(ResultsUpsertedTotal.WithLabelValues("PF"))

	RecordResultsUpserted("PF", 12)

	assert.Equal(t, before+12, testutil.ToFloat64(ResultsUpsertedTotal.WithLabelValues("PF")))
}

func TestRecordReconcileRun(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(ReconcileRunsTotal.WithLabelValues("partial"))

	RecordReconcileRun(true, 2.5, 7)

	assert.Equal(t, before+1, testutil.ToFloat64(ReconcileRunsTotal.WithLabelValues("partial")))
	assert.Equal(t, float64(7), testutil.ToFloat64(PendingTips))
}

func TestRecordFeedFetch(t *testing.T) {
	InitRegistry()
	beforeErr := testutil.ToFloat64(FeedFetchesTotal.WithLabelValues("RA", "error"))
	beforeSkipped := testutil.ToFloat64(FeedRowsSkippedTotal.WithLabelValues("RA"))

	RecordFeedFetch("RA", false, 3, 0.2)

	assert.Equal(t, beforeErr+1, testutil.ToFloat64(FeedFetchesTotal.WithLabelValues("RA", "error")))
	assert.Equal(t, beforeSkipped+3, testutil.ToFloat64(FeedRowsSkippedTotal.WithLabelValues("RA")))
}

func TestCacheCounters(t *testing.T) {
	InitRegistry()
	hits := testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("results", "hit"))
	misses := testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("results", "miss"))

	RecordCacheHit("results")
	RecordCacheMiss("results")
	RecordCacheMiss("results")

	assert.Equal(t, hits+1, testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("results", "hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("results", "miss")))
}

func TestMetricsHandler(t *testing.T) {
	InitRegistry()
	RecordPrecedenceRefusal()
	RecordAmbiguousMatch()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "tipwatch_precedence_refusals_total"))
	assert.True(t, strings.Contains(body, "tipwatch_ambiguous_track_matches_total"))
}

func BenchmarkRecordOutcomeWritten(b *testing.B) {
	InitRegistry()
	for i := 0; i < b.N; i++ {
		RecordOutcomeWritten("LOSE")
	}
}
