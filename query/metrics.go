package query

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"pkt.systems/pslog"
)

const (
	waitChanged  = "changed"
	waitSpurious = "spurious"
	waitExpired  = "expired"
	waitError    = "error"
)

type engineMetrics struct {
	polls        metric.Int64Counter
	waits        metric.Int64Counter
	waitDuration metric.Float64Histogram
}

func newEngineMetrics(logger pslog.Base) *engineMetrics {
	meter := otel.Meter("pkt.systems/consulate/query")
	m := &engineMetrics{}
	var err error

	m.polls, err = meter.Int64Counter(
		"consulate.query.poll",
		metric.WithDescription("Read requests issued by the query engine"),
	)
	logMetricInitError(logger, "consulate.query.poll", err)

	m.waits, err = meter.Int64Counter(
		"consulate.query.wait",
		metric.WithDescription("Blocking query rounds by outcome"),
	)
	logMetricInitError(logger, "consulate.query.wait", err)

	m.waitDuration, err = meter.Float64Histogram(
		"consulate.query.wait.duration",
		metric.WithDescription("Time spent in WaitForChange"),
		metric.WithUnit("s"),
	)
	logMetricInitError(logger, "consulate.query.wait.duration", err)

	return m
}

func (m *engineMetrics) recordPoll(ctx context.Context, blocking bool, status int) {
	if m == nil || m.polls == nil {
		return
	}
	m.polls.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("consulate.query.blocking", blocking),
		attribute.String("consulate.query.status", statusClass(status)),
	))
}

// recordWait counts one blocking round and marks it on the caller's span.
func (m *engineMetrics) recordWait(ctx context.Context, outcome string) {
	attr := attribute.String("consulate.query.outcome", outcome)
	trace.SpanFromContext(ctx).AddEvent("consulate.query.wait", trace.WithAttributes(attr))
	if m == nil || m.waits == nil {
		return
	}
	m.waits.Add(ctx, 1, metric.WithAttributes(attr))
}

func (m *engineMetrics) recordWaitDuration(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil || m.waitDuration == nil {
		return
	}
	m.waitDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("consulate.query.outcome", outcome)))
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status == 404:
		return "404"
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 500:
		return "5xx"
	default:
		return "4xx"
	}
}

func logMetricInitError(logger pslog.Base, name string, err error) {
	if err == nil || logger == nil {
		return
	}
	logger.Warn("telemetry.metric.init_failed", "name", name, "error", err)
}
