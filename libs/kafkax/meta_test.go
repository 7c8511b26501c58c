package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092,a:9092 "))
	assert.Nil(t, SplitBrokers(""))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{EventID: "evt-1", EventType: "booking.appointment.approved.v1"}
	msg := kafka.Message{Headers: env.Headers()}
	assert.Equal(t, env, EnvelopeOf(msg))
	assert.Empty(t, HeaderValue(msg.Headers, "missing"))
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	assert.Error(t, ReadyCheck(" , ")(context.Background()))
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled, Remote: true})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), sc)

	msg := kafka.Message{Headers: Envelope{EventID: "1"}.Headers()}
	InjectTrace(ctx, &msg)
	InjectTrace(ctx, &msg)

	assert.Equal(t, "1", HeaderValue(msg.Headers, HeaderEventID))
	assert.Len(t, msg.Headers, 3, "re-injecting overwrites traceparent")

	got := trace.SpanContextFromContext(ExtractTrace(context.Background(), msg))
	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, spanID, got.SpanID())
}
