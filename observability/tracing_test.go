package observability

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xraph/conductor/config"
	"github.com/xraph/conductor/internal/events"
	"github.com/xraph/conductor/internal/metadata"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return NewTracer(provider, "conductor-test"), recorder
}

func TestTracer_RecordUsesCapturedTimes(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	start := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	end := start.Add(25 * time.Millisecond)
	tracer.Record(context.Background(), events.Invocation{
		Class:  "Orders",
		Method: "Place",
		Args:   []any{"A-1", 2},
		Start:  start,
		End:    end,
	})

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "Orders.Place", span.Name())
	assert.Equal(t, start, span.StartTime())
	assert.Equal(t, end, span.EndTime())
	assert.Equal(t, codes.Ok, span.Status().Code)
	assert.Contains(t, span.Attributes(), attribute.String("conductor.class", "Orders"))
	assert.Contains(t, span.Attributes(), attribute.Int("conductor.args", 2))
}

func TestTracer_RecordError(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	now := time.Now()
	tracer.Record(context.Background(), events.Invocation{
		Class:  "Orders",
		Method: "Place",
		Event:  "order.placed",
		Start:  now,
		End:    now,
		Err:    errors.New("out of stock"),
	})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "out of stock", spans[0].Status().Description)
	assert.Contains(t, spans[0].Attributes(), attribute.String("conductor.event", "order.placed"))
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestTracer_AttachToRegistry(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	r, store := newRegistry(t)
	metadata.Describe(store, reflect.TypeFor[ledger]()).Telemetry("Post")
	stop := tracer.Attach(r)

	require.NoError(t, r.Register(newLedger))
	l, err := r.Resolve(newLedger)
	require.NoError(t, err)

	_, err = r.Invoke(l, "Post", 5)
	require.NoError(t, err)
	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "ledger.Post", recorder.Ended()[0].Name())

	stop()
	_, err = r.Invoke(l, "Post", 6)
	require.NoError(t, err)
	assert.Len(t, recorder.Ended(), 1)
}

func TestNewTracerProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled never samples", func(t *testing.T) {
		provider, err := NewTracerProvider(ctx, config.TracingConfig{ServiceName: "svc", SampleRatio: 1})
		require.NoError(t, err)
		defer func() { _ = provider.Shutdown(ctx) }()

		_, span := provider.Tracer("test").Start(ctx, "op")
		defer span.End()
		assert.False(t, span.SpanContext().IsSampled())
	})

	t.Run("enabled without endpoint", func(t *testing.T) {
		provider, err := NewTracerProvider(ctx, config.TracingConfig{Enabled: true, ServiceName: "svc", SampleRatio: 1})
		require.NoError(t, err)
		defer func() { _ = provider.Shutdown(ctx) }()

		_, span := provider.Tracer("test").Start(ctx, "op")
		defer span.End()
		assert.True(t, span.SpanContext().IsSampled())
	})

	t.Run("otlp exporter", func(t *testing.T) {
		provider, err := NewTracerProvider(ctx, config.TracingConfig{
			Enabled:     true,
			ServiceName: "svc",
			Endpoint:    "localhost:4318",
			Insecure:    true,
			SampleRatio: 0.5,
		})
		require.NoError(t, err)
		assert.NotNil(t, provider)

		shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	})
}
