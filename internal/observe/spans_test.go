package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/matryer/is"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withRecorder swaps in an in-memory tracer provider for the duration of the
// test and returns the recorder.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestTruncate(t *testing.T) {
	is := is.New(t)

	is.Equal(Truncate("short"), "short")
	long := strings.Repeat("x", 900)
	is.Equal(len(Truncate(long)), 500)

	// Multibyte input is cut at a rune boundary.
	multibyte := strings.Repeat("é", 600)
	is.Equal(len([]rune(Truncate(multibyte))), 500)
}

func TestSessionStartSpanAttributes(t *testing.T) {
	is := is.New(t)
	recorder := withRecorder(t)

	scope := SessionScope{SessionID: "sess-1", UserID: "student-1"}
	SessionStart(context.Background(), scope, "room-1", "pipeline", true)

	spans := recorder.Ended()
	is.Equal(len(spans), 1)
	is.Equal(spans[0].Name(), SpanSessionStart)

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	is.Equal(attrs[AttrSessionID], "sess-1")
	is.Equal(attrs[AttrUserID], "student-1")
	is.Equal(attrs["room.name"], "room-1")
	is.Equal(attrs["session.type"], "pipeline")
	is.Equal(attrs["session.recovered"], true)
}

func TestRoutingDecisionTruncatesFreeText(t *testing.T) {
	is := is.New(t)
	recorder := withRecorder(t)

	long := strings.Repeat("q", 1000)
	RoutingDecision(context.Background(), SessionScope{SessionID: "s", UserID: "u"}, RoutingDecisionAttrs{
		FromAgent:       "orchestrator",
		ToAgent:         "math",
		QuestionSummary: long,
		LastUserMessage: long,
	})

	spans := recorder.Ended()
	is.Equal(len(spans), 1)
	for _, kv := range spans[0].Attributes() {
		if string(kv.Key) == "routing.question" || string(kv.Key) == "routing.last_user_message" {
			is.Equal(len(kv.Value.AsString()), 500)
		}
	}
}

func TestConversationItemOmitsLatencyWhenUnknown(t *testing.T) {
	is := is.New(t)
	recorder := withRecorder(t)

	ConversationItem(context.Background(), SessionScope{SessionID: "s", UserID: "u"}, ConversationItemAttrs{
		Subject:       "math",
		Role:          "user",
		SessionType:   "pipeline",
		Turn:          3,
		E2EResponseMS: -1,
	})

	spans := recorder.Ended()
	is.Equal(len(spans), 1)
	for _, kv := range spans[0].Attributes() {
		is.True(string(kv.Key) != "item.e2e_response_ms")
	}
}

func TestConversationItemIncludesLatencyWhenKnown(t *testing.T) {
	is := is.New(t)
	recorder := withRecorder(t)

	ConversationItem(context.Background(), SessionScope{SessionID: "s", UserID: "u"}, ConversationItemAttrs{
		Subject:       "math",
		Role:          "assistant",
		SessionType:   "pipeline",
		Turn:          4,
		E2EResponseMS: 812.5,
	})

	spans := recorder.Ended()
	is.Equal(len(spans), 1)
	found := false
	for _, kv := range spans[0].Attributes() {
		if string(kv.Key) == "item.e2e_response_ms" {
			found = true
			is.Equal(kv.Value.AsFloat64(), 812.5)
		}
	}
	is.True(found)
}
