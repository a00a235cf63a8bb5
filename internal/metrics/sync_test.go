package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterSyncMetrics_Idempotent(t *testing.T) {
	RegisterSyncMetrics()
	RegisterSyncMetrics()

	IndexFallbackTotal.WithLabelValues("properties", "list").Inc()
	if got := testutil.ToFloat64(IndexFallbackTotal.WithLabelValues("properties", "list")); got < 1 {
		t.Errorf("index_fallback_total = %f, want >= 1", got)
	}
}

func TestSyncMetrics_Lint(t *testing.T) {
	IndexWriteFailuresTotal.WithLabelValues("bookings", "upsert").Inc()
	ScopeCacheTotal.WithLabelValues("hit").Inc()
	CompileDegradedTotal.Inc()

	for _, c := range []prometheus.Collector{IndexWriteFailuresTotal, ScopeCacheTotal, CompileDegradedTotal} {
		problems, err := testutil.CollectAndLint(c)
		if err != nil {
			t.Fatal(err)
		}
		if len(problems) > 0 {
			t.Errorf("lint problems: %v", problems)
		}
	}
}
