package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(context.Background(), TracerConfig{ServiceName: "avafx"})
	require.NoError(t, err)

	_, span := tracer.Tracer().Start(context.Background(), "fx.probe")
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewTracer_PropagatesToProvider(t *testing.T) {
	tracer, err := NewTracer(context.Background(), TracerConfig{
		Enabled:        true,
		ServiceName:    "avafx",
		ServiceVersion: "test",
		SamplingRate:   1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	ctx, span := tracer.Tracer().Start(context.Background(), "fx.quote")
	defer span.End()

	require.True(t, span.SpanContext().IsValid())
	assert.Equal(t, span.SpanContext().TraceID().String(), TraceIDFromContext(ctx))

	outbound := httptest.NewRequest(http.MethodPost, "https://sandbox.api.visa.com/fx", nil)
	InjectTraceContext(ctx, outbound)
	assert.NotEmpty(t, outbound.Header.Get("traceparent"))

	extracted := ExtractTraceContext(context.Background(), outbound)
	assert.Equal(t, span.SpanContext().TraceID(), SpanFromContext(extracted).SpanContext().TraceID())
}

func TestExporterOptions(t *testing.T) {
	t.Parallel()

	assert.Len(t, exporterOptions("collector:4317"), 4)
	assert.Len(t, exporterOptions("http://collector:4317"), 4)
	assert.Len(t, exporterOptions("https://collector.example.com:4317"), 3)
}

func TestCreateSampler(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sdktrace.AlwaysSample().Description(), createSampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), createSampler(0).Description())
	assert.Contains(t, createSampler(0.25).Description(), "TraceIDRatioBased")
}
