package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "scopedex"

// Read/write synchronization metrics.
var (
	IndexFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_fallback_total",
			Help:      "Reads served by the system of record after a failed index call",
		},
		[]string{"entity", "op"}, // op: "list" / "retrieve"
	)

	IndexWriteFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_write_failures_total",
			Help:      "Post-commit index writes that failed",
		},
		[]string{"entity", "op"}, // op: "upsert" / "delete"
	)

	IndexRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_request_duration_seconds",
			Help:      "Search index read duration in seconds",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"entity", "op", "status"},
	)

	ScopeCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_cache_total",
			Help:      "Access scope lookups by outcome",
		},
		[]string{"result"}, // "hit" / "miss" / "unresolvable"
	)

	CompileDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_degraded_total",
			Help:      "Query parameters whose key could not be parsed",
		},
	)

	ReindexedDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindexed_documents_total",
			Help:      "Documents written by reindex runs",
		},
		[]string{"entity"},
	)
)

var syncMetricsRegistered bool

// RegisterSyncMetrics registers the synchronization metrics. Must be called once from main.
func RegisterSyncMetrics() {
	if syncMetricsRegistered {
		return
	}
	prometheus.MustRegister(IndexFallbackTotal)
	prometheus.MustRegister(IndexWriteFailuresTotal)
	prometheus.MustRegister(IndexRequestDuration)
	prometheus.MustRegister(ScopeCacheTotal)
	prometheus.MustRegister(CompileDegradedTotal)
	prometheus.MustRegister(ReindexedDocumentsTotal)
	syncMetricsRegistered = true
}
