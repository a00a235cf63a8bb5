package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// otherEntity labels requests whose {entity} segment is not registered.
const otherEntity = "other"

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "entity"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "entity", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
}

// Middleware records request count and latency per route and entity type.
// Entity names outside known collapse into "other" to bound label cardinality.
func Middleware(known []string) func(next http.Handler) http.Handler {
	entities := make(map[string]struct{}, len(known))
	for _, name := range known {
		entities[name] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route, entity := "unknown", ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
				entity = entityLabel(entities, rctx.URLParam("entity"))
			}

			httpRequestDuration.WithLabelValues(r.Method, route, entity).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, route, entity, strconv.Itoa(status)).Inc()
		})
	}
}

func entityLabel(known map[string]struct{}, name string) string {
	if name == "" {
		return ""
	}
	if _, ok := known[name]; ok {
		return name
	}
	return otherEntity
}
