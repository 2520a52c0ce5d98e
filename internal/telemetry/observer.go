package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/radutopala/mcp-server-qdrant/internal/tools"
)

// InstrumentationName names the meter and tracer of this server.
const InstrumentationName = "github.com/radutopala/mcp-server-qdrant"

// Observer records tool calls into OpenTelemetry.
type Observer struct {
	tracer trace.Tracer

	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewObserver creates an observer bound to the provided meter and tracer.
func NewObserver(meter metric.Meter, tracer trace.Tracer) (*Observer, error) {
	calls, err := meter.Int64Counter(
		"qdrant_mcp.tool.calls",
		metric.WithDescription("Number of tool calls"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"qdrant_mcp.tool.duration",
		metric.WithDescription("Tool call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Observer{
		tracer:   tracer,
		calls:    calls,
		duration: duration,
	}, nil
}

// NewGlobalObserver binds to the globally registered providers, so whichever
// SDK the host installs receives the signals.
func NewGlobalObserver() (*Observer, error) {
	return NewObserver(
		otel.GetMeterProvider().Meter(InstrumentationName),
		otel.GetTracerProvider().Tracer(InstrumentationName),
	)
}

// ObserveCall records one finished call.
func (o *Observer) ObserveCall(ctx context.Context, obs tools.CallObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", obs.Tool),
		attribute.String("outcome", string(obs.Outcome)),
	}
	if obs.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", string(obs.ErrorKind)))
	}

	// The call's own context may already be cancelled.
	ctx = context.WithoutCancel(ctx)
	options := metric.WithAttributes(attrs...)
	o.calls.Add(ctx, 1, options)
	o.duration.Record(ctx, obs.Duration.Seconds(), options)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "tool.call",
		trace.WithTimestamp(obs.Start),
		trace.WithAttributes(attrs...),
	)
	if obs.Outcome == tools.OutcomeSuccess {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, string(obs.Outcome))
	}
	span.End(trace.WithTimestamp(obs.Start.Add(obs.Duration)))
}

var _ tools.Observer = (*Observer)(nil)
