package classifier

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"civic-reporting-api/internal/logger"
)

// CallInfo describes one finished remote call.
type CallInfo struct {
	Op         Op
	Outcome    Outcome
	Duration   time.Duration
	StatusCode int
	Err        error
}

type Hook func(ctx context.Context, info CallInfo)

// LogHook logs every call: successes at debug, failures at warn.
func LogHook(l *logrus.Logger) Hook {
	return func(ctx context.Context, info CallInfo) {
		entry := logger.FromContext(ctx, l).WithFields(logrus.Fields{
			"op":          info.Op,
			"outcome":     info.Outcome,
			"duration_ms": info.Duration.Milliseconds(),
			"status":      info.StatusCode,
		})
		if info.Err != nil {
			entry.WithError(info.Err).Warn("classifier call failed")
			return
		}
		entry.Debug("classifier call succeeded")
	}
}

// MetricsHook records a call counter and a latency histogram per op and outcome.
func MetricsHook(meter metric.Meter) (Hook, error) {
	calls, err := meter.Int64Counter("classifier.calls",
		metric.WithDescription("Remote classifier calls by operation and outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("classifier.call.duration",
		metric.WithDescription("Remote classifier call latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, info CallInfo) {
		attrs := metric.WithAttributes(
			attribute.String("op", string(info.Op)),
			attribute.String("outcome", string(info.Outcome)),
		)
		calls.Add(ctx, 1, attrs)
		latency.Record(ctx, float64(info.Duration.Microseconds())/1000, attrs)
	}, nil
}
