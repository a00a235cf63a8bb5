package postgres

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// QueryEvent describes one executed statement.
type QueryEvent struct {
	SQL       string
	Args      []any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives an event per statement.
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs statements at debug level and slow ones at warn.
func Tracer(log *zap.Logger) QueryTracer {
	return &zapTracer{log: log.With(zap.String("component", "postgres"))}
}

type zapTracer struct{ log *zap.Logger }

func (z *zapTracer) OnQuery(_ context.Context, ev QueryEvent) {
	fields := []zap.Field{
		zap.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0),
		zap.Bool("slow", ev.Slow),
		zap.String("sql", compact(ev.SQL)),
		zap.Int("args", len(ev.Args)),
	}
	if ev.Err != nil {
		fields = append(fields, zap.Error(ev.Err))
	}
	if ev.Slow {
		z.log.Warn("pg query", fields...)
		return
	}
	z.log.Debug("pg query", fields...)
}

// compact collapses whitespace runs to a single space.
func compact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\n', '\t', '\r':
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
