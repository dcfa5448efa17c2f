// Package tracing instruments bus publishes and pipeline batch
// aggregation with OpenTelemetry spans, adapted from the teacher's OTLP
// setup but propagating trace context through events.Event.Tags instead
// of dedicated TelemetryEvent fields.
package tracing

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxline/pulsecore/internal/events"
)

// Config holds OpenTelemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	Enabled        bool
}

// DefaultConfig returns sensible defaults for OpenTelemetry.
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4318",
		Enabled:        true,
	}
}

// InitTracer initializes the OpenTelemetry tracer with an OTLP exporter
// and returns a shutdown function flushing any pending spans.
func InitTracer(config *Config) (func(context.Context) error, error) {
	if !config.Enabled {
		log.Printf("tracing: disabled for service %s", config.ServiceName)
		return func(ctx context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(config.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Printf("tracing: initialized for service %s (endpoint %s)", config.ServiceName, config.OTLPEndpoint)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// GetTracer returns a tracer for the given instrumentation name.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// AddSpanAttributes adds attributes to the current span in context.
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// RecordError records an error on the current span in context.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() && err != nil {
		span.RecordError(err)
	}
}

const (
	tagTraceParent = "traceparent"
	tagTraceState  = "tracestate"
)

// InjectIntoEvent serializes ctx's trace context into e.Tags so a
// downstream consumer of the event (the relay, a future span) can
// continue the trace. e.Tags is initialized if nil.
func InjectIntoEvent(ctx context.Context, e *events.Event) {
	headers := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))

	if e.Tags == nil {
		e.Tags = make(map[string]string)
	}
	if tp := headers.Get(tagTraceParent); tp != "" {
		e.Tags[tagTraceParent] = tp
	}
	if ts := headers.Get(tagTraceState); ts != "" {
		e.Tags[tagTraceState] = ts
	}
}

// ExtractFromEvent reconstructs a context carrying e's trace context, for
// use as the parent when starting a span that processes e.
func ExtractFromEvent(ctx context.Context, e events.Event) context.Context {
	if e.Tags == nil {
		return ctx
	}
	headers := http.Header{}
	if tp, ok := e.Tags[tagTraceParent]; ok {
		headers.Set(tagTraceParent, tp)
	}
	if ts, ok := e.Tags[tagTraceState]; ok {
		headers.Set(tagTraceState, ts)
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(headers))
}
