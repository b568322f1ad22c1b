package rosz

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/jazi007/oxidros-sub001/rosz"

// telemetry holds the tracer and metric instruments of a context. They are
// created once in Build and shared by every entity.
type telemetry struct {
	tracer trace.Tracer

	published metric.Int64Counter
	received  metric.Int64Counter
	dropped   metric.Int64Counter
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	t := &telemetry{tracer: tp.Tracer(instrumentationName)}

	var err error
	t.published, err = meter.Int64Counter("rosz.messages.published",
		metric.WithDescription("Messages published"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create published counter: %w", err)
	}
	t.received, err = meter.Int64Counter("rosz.messages.received",
		metric.WithDescription("Messages delivered to subscribers"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create received counter: %w", err)
	}
	t.dropped, err = meter.Int64Counter("rosz.messages.dropped",
		metric.WithDescription("Messages evicted from full queues or undecodable"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create dropped counter: %w", err)
	}
	return t, nil
}

func topicAttr(topic string) metric.AddOption {
	return metric.WithAttributes(attribute.String("rosz.topic", topic))
}

// startCall opens a client span for one service call.
func (t *telemetry) startCall(ctx context.Context, service string, seq int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "rosz.client.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rosz.service", service),
			attribute.Int64("rosz.sequence_number", seq),
		))
}

// startReply opens a server span for one response.
func (t *telemetry) startReply(ctx context.Context, service string, seq int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "rosz.server.reply",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rosz.service", service),
			attribute.Int64("rosz.sequence_number", seq),
		))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
