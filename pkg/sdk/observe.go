package scopedex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scopedex/internal/domain"
	logpkg "github.com/kailas-cloud/scopedex/internal/logger"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scopedex",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by type, entity and outcome.",
		}, []string{"operation", "entity", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scopedex",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation", "entity"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("scopedex: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("scopedex: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// outcome buckets an error into a bounded label value.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownEntity):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidPayload), errors.Is(err, domain.ErrUnsupportedClause), errors.Is(err, domain.ErrConflict):
		return "rejected"
	default:
		return "error"
	}
}

// observer provides logging and metrics for SDK operations.
type observer struct {
	logger  *slog.Logger
	zap     *zap.Logger // logger as seen by the internal services
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger, zap: zapToSlog(logger)}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// bind attaches the bridged logger to ctx so internal services log through it.
func (o *observer) bind(ctx context.Context) context.Context {
	if o == nil || o.logger == nil {
		return ctx
	}
	return logpkg.ContextWithLogger(ctx, o.zap)
}

// observe records one finished call. entity is empty for client-wide calls.
func (o *observer) observe(op, entity string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	result := outcome(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, entity, result).Inc()
		o.metrics.duration.WithLabelValues(op, entity).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	attrs := []any{"op", op, "duration", dur}
	if entity != "" {
		attrs = append(attrs, "entity", entity)
	}
	switch result {
	case "ok":
		o.logger.Debug("operation completed", attrs...)
	case "error":
		o.logger.Warn("operation failed", append(attrs, "error", err)...)
	default:
		o.logger.Info("operation rejected", append(attrs, "outcome", result, "error", err)...)
	}
}
