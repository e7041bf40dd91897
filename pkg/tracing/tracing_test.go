package tracing

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeadersRoundTrip(t *testing.T) {
	tp, err := Init(context.Background(), "test", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "produce")
	defer span.End()

	tp1 := Traceparent(ctx)
	require.NotEmpty(t, tp1)

	headers := InjectKafkaHeaders(ctx, nil)
	assert.Equal(t, tp1, HeaderValue(headers, TraceparentHeader))

	out := ExtractKafkaHeaders(context.Background(), headers)
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(out).TraceID())
}

func TestTraceparentOutsideSpan(t *testing.T) {
	assert.Empty(t, Traceparent(context.Background()))
	assert.Empty(t, HeaderValue(nil, TraceparentHeader))
}

func TestContextWithTraceparent(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	const stored = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

	ctx := ContextWithTraceparent(context.Background(), stored)
	assert.Equal(t, stored, Traceparent(ctx))
	assert.Equal(t, stored, HeaderValue(InjectKafkaHeaders(ctx, nil), TraceparentHeader))

	assert.Empty(t, Traceparent(ContextWithTraceparent(context.Background(), "")))
	assert.Empty(t, Traceparent(ContextWithTraceparent(context.Background(), "garbage")))
}
