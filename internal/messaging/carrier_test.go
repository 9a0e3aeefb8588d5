package messaging

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrier(t *testing.T) {
	msg := &kafka.Message{Headers: []kafka.Header{{Key: "content-type", Value: []byte(contentTypeJSON)}}}
	c := headerCarrier{msg: msg}

	c.Set("traceparent", "a")
	c.Set("traceparent", "b")

	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"content-type", "traceparent"}, c.Keys())
	assert.Len(t, msg.Headers, 2)
}

func TestTraceRoundTrip(t *testing.T) {
	prop := propagation.TraceContext{}
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	msg := &kafka.Message{}
	prop.Inject(ctx, headerCarrier{msg: msg})
	require.NotEmpty(t, headerCarrier{msg: msg}.Get("traceparent"))

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), headerCarrier{msg: msg}))
	assert.Equal(t, span.SpanContext().TraceID(), extracted.TraceID())
	assert.Equal(t, span.SpanContext().SpanID(), extracted.SpanID())
}
