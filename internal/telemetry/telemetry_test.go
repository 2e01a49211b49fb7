package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

func TestSetupWithoutEndpoint(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Config{ServiceName: "panel-test", SampleRate: 1})
	require.NoError(t, err)
	defer func() { require.NoError(t, shutdown(context.Background())) }()

	assert.Same(t, tp, otel.GetTracerProvider())
	_, span := tp.Tracer("test").Start(context.Background(), "startup")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()
}

func TestSetupResourceCarriesServiceName(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Config{ServiceName: "panel-gateway", SampleRate: 1})
	require.NoError(t, err)
	defer func() { require.NoError(t, shutdown(context.Background())) }()

	recorder := tracetest.NewSpanRecorder()
	tp.RegisterSpanProcessor(recorder)
	_, span := tp.Tracer("test").Start(context.Background(), "startup")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	res := spans[0].Resource()
	assert.Equal(t, semconv.SchemaURL, res.SchemaURL())
	assert.Contains(t, res.Attributes(), semconv.ServiceName("panel-gateway"))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
