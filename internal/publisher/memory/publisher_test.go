package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "analyses", map[string]string{"profile_id": "a"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "audit", "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "analyses", msgs[0].Topic)
	assert.JSONEq(t, `{"profile_id":"a"}`, string(msgs[0].Data))
	assert.Equal(t, `"payload"`, string(msgs[1].Data))

	msgs[0].Topic = "modified"
	assert.Equal(t, "analyses", pub.Messages()[0].Topic, "Messages returns a copy")
}

func TestPublisherFailures(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "analyses", func() {})
	require.ErrorContains(t, err, "marshal payload")

	pub.FailWith(errors.New("topic deleted"))
	_, err = pub.Publish(context.Background(), "analyses", "x")
	require.EqualError(t, err, "topic deleted")
	assert.Empty(t, pub.Messages())

	pub.FailWith(nil)
	_, err = pub.Publish(context.Background(), "analyses", "x")
	require.NoError(t, err)
}

func TestPublisherInjectsTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	pub := New()
	_, err := pub.Publish(ctx, "analyses", "x")
	require.NoError(t, err)
	_, err = pub.Publish(context.Background(), "analyses", "y")
	require.NoError(t, err)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", msgs[0].Attributes["traceparent"])
	assert.NotContains(t, msgs[1].Attributes, "traceparent")
}
