package tracing

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceparentPropagation(t *testing.T) {
	ctx := context.Background()
	tp, err := Init(ctx, "payment-console-test", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	assert.Empty(t, Traceparent(ctx))

	spanCtx, span := tp.Tracer("test").Start(ctx, "op")
	defer span.End()
	tpHeader := Traceparent(spanCtx)
	require.NotEmpty(t, tpHeader)
	assert.Contains(t, tpHeader, span.SpanContext().TraceID().String())

	headers := InjectKafkaHeaders(spanCtx, []kafka.Header{{Key: "event_type", Value: []byte("PaymentPaid")}})
	var found bool
	for _, h := range headers {
		if h.Key == TraceparentHeader {
			found = true
			assert.Equal(t, tpHeader, string(h.Value))
		}
	}
	assert.True(t, found)

	// An existing traceparent header wins over the context.
	kept := InjectKafkaHeaders(spanCtx, []kafka.Header{{Key: TraceparentHeader, Value: []byte("upstream")}})
	assert.Len(t, kept, 1)
	assert.Equal(t, "upstream", string(kept[0].Value))
}
