package eyes

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the OTEL instrumentation scope of the registry.
const InstrumentationName = "github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"

// Metrics are the registry's OTEL instruments.
// Session IDs are kept out of metric attributes; they appear on spans and logs.
type Metrics struct {
	invocations metric.Int64Counter
	rejections  metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewMetrics creates instruments on meter, or on the global meter if nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	m := &Metrics{}
	var err error

	m.invocations, err = meter.Int64Counter(
		"eyes.invocations.total",
		metric.WithDescription("Eye handler invocations by outcome"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, err
	}

	m.rejections, err = meter.Int64Counter(
		"eyes.rejections.total",
		metric.WithDescription("Invocations refused before the handler ran"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"eyes.handler.duration.seconds",
		metric.WithDescription("Eye handler latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) recordInvocation(ctx context.Context, eye, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("eye", eye),
		attribute.String("outcome", outcome),
	)
	m.invocations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) recordRejection(ctx context.Context, eye, code string) {
	if m == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("eye", eye),
		attribute.String("error_code", code),
	))
}

func spanAttributes(eye string, rc RequestContext) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("eye.name", eye),
		attribute.String("session.id", rc.SessionID),
	}
	if rc.RequestID != "" {
		attrs = append(attrs, attribute.String("request.id", rc.RequestID))
	}
	return attrs
}

func defaultTracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
