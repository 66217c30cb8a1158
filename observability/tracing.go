package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/conductor/config"
	"github.com/xraph/conductor/internal/events"
)

// Tracer records telemetry invocations as spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from provider. A nil provider uses the global one.
func NewTracer(provider trace.TracerProvider, name string) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	if name == "" {
		name = "github.com/xraph/conductor"
	}
	return &Tracer{tracer: provider.Tracer(name)}
}

// Attach records every telemetry event of source and returns the func that
// detaches again.
func (t *Tracer) Attach(source Source) func() {
	sub := source.On(events.Telemetry, func(evt events.Event) error {
		if inv, ok := evt.Payload.(events.Invocation); ok {
			t.Record(context.Background(), inv)
		}
		return nil
	})
	return detach([]*events.Subscription{sub})
}

// Record emits one span covering inv. The span uses the captured start and
// end times, so it can be recorded after the call settled.
func (t *Tracer) Record(ctx context.Context, inv events.Invocation) {
	attrs := []attribute.KeyValue{
		attribute.String("conductor.class", inv.Class),
		attribute.String("conductor.method", inv.Method),
		attribute.Int("conductor.args", len(inv.Args)),
	}
	if inv.Event != "" {
		attrs = append(attrs, attribute.String("conductor.event", inv.Event))
	}

	_, span := t.tracer.Start(ctx, inv.Class+"."+inv.Method,
		trace.WithTimestamp(inv.Start),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	if inv.Err != nil {
		span.RecordError(inv.Err)
		span.SetStatus(codes.Error, inv.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(inv.End))
}

// NewTracerProvider builds an SDK tracer provider from cfg. Spans are exported
// over OTLP/HTTP when an endpoint is configured. The caller owns Shutdown.
func NewTracerProvider(ctx context.Context, cfg config.TracingConfig) (*sdktrace.TracerProvider, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	)

	ratio := cfg.SampleRatio
	if !cfg.Enabled {
		ratio = 0
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}

	if cfg.Enabled && cfg.Endpoint != "" {
		exporterOpts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		}

		exporter, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}
