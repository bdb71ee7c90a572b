package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names emitted by the runtime. Dashboards filter on these literals.
const (
	SpanSessionStart      = "session.start"
	SpanSessionEnd        = "session.end"
	SpanAgentActivated    = "agent.activated"
	SpanRoutingDecision   = "routing.decision"
	SpanConversationItem  = "conversation.item"
	SpanTTSSentence       = "tts.sentence"
	SpanGuardrailCheck    = "guardrail.check"
	SpanGuardrailRewrite  = "guardrail.rewrite"
	SpanTeacherEscalation = "teacher.escalation"
)

// Session id and user id ride on every span as plain attributes, not just
// trace context, because the backend filters by them.
const (
	AttrSessionID = "session.id"
	AttrUserID    = "user.id"
)

// SessionScope carries the identifiers stamped onto every span of a session.
type SessionScope struct {
	SessionID string
	UserID    string
}

func (s SessionScope) attrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, s.SessionID),
		attribute.String(AttrUserID, s.UserID),
	}
}

// SessionStart emits the session.start span. Recovered is true when the
// session id was recovered from dispatch metadata after a worker handoff.
func SessionStart(ctx context.Context, scope SessionScope, roomName, sessionType string, recovered bool) {
	emit(ctx, SpanSessionStart, append(scope.attrs(),
		attribute.String("room.name", roomName),
		attribute.String("session.type", sessionType),
		attribute.Bool("session.recovered", recovered),
	)...)
}

// SessionEnd emits the session.end span with aggregated session stats.
func SessionEnd(ctx context.Context, scope SessionScope, sessionType string, totalTurns int, escalated bool, subjects []string) {
	emit(ctx, SpanSessionEnd, append(scope.attrs(),
		attribute.String("session.type", sessionType),
		attribute.Int("session.total_turns", totalTurns),
		attribute.Bool("session.escalated", escalated),
		attribute.StringSlice("session.subjects", subjects),
	)...)
}

// AgentActivated emits the agent.activated span when an agent becomes the
// active speaker.
func AgentActivated(ctx context.Context, scope SessionScope, agentName string) {
	emit(ctx, SpanAgentActivated, append(scope.attrs(),
		attribute.String("agent.name", agentName),
	)...)
}

// RoutingDecisionAttrs are the attributes of a routing.decision span.
type RoutingDecisionAttrs struct {
	FromAgent       string
	ToAgent         string
	QuestionSummary string
	PreviousSubject string
	DecisionMS      float64
	LastUserMessage string
	HistoryLength   int
}

// RoutingDecision emits the routing.decision span for a handoff tool call.
func RoutingDecision(ctx context.Context, scope SessionScope, a RoutingDecisionAttrs) {
	emit(ctx, SpanRoutingDecision, append(scope.attrs(),
		attribute.String("routing.from_agent", a.FromAgent),
		attribute.String("routing.to_agent", a.ToAgent),
		attribute.String("routing.question", Truncate(a.QuestionSummary)),
		attribute.String("routing.previous_subject", a.PreviousSubject),
		attribute.Float64("routing.decision_ms", a.DecisionMS),
		attribute.String("routing.last_user_message", Truncate(a.LastUserMessage)),
		attribute.Int("routing.history_length", a.HistoryLength),
	)...)
}

// ConversationItemAttrs are the attributes of a conversation.item span.
type ConversationItemAttrs struct {
	Subject     string
	Role        string
	SessionType string
	Turn        int

	// E2EResponseMS is attached for assistant items when the preceding user
	// input timestamp is known; negative means unavailable.
	E2EResponseMS float64
}

// ConversationItem emits the conversation.item span for a committed item.
func ConversationItem(ctx context.Context, scope SessionScope, a ConversationItemAttrs) {
	attrs := append(scope.attrs(),
		attribute.String("item.subject", a.Subject),
		attribute.String("item.role", a.Role),
		attribute.String("session.type", a.SessionType),
		attribute.Int("item.turn", a.Turn),
	)
	if a.E2EResponseMS >= 0 {
		attrs = append(attrs, attribute.Float64("item.e2e_response_ms", a.E2EResponseMS))
	}
	emit(ctx, SpanConversationItem, attrs...)
}

// TTSSentence emits the tts.sentence span for one guarded sentence flush.
func TTSSentence(ctx context.Context, sentenceLen int, guardrailMS, synthesisMS float64, rewritten bool) {
	emit(ctx, SpanTTSSentence,
		attribute.Int("tts.sentence_length", sentenceLen),
		attribute.Float64("tts.guardrail_ms", guardrailMS),
		attribute.Float64("tts.synthesis_ms", synthesisMS),
		attribute.Bool("tts.rewritten", rewritten),
	)
}

// GuardrailCheck emits the guardrail.check span for one moderation call.
func GuardrailCheck(ctx context.Context, textLen int, flagged bool, peakScore float64, checkMS float64) {
	emit(ctx, SpanGuardrailCheck,
		attribute.Int("guardrail.text_length", textLen),
		attribute.Bool("guardrail.flagged", flagged),
		attribute.Float64("guardrail.peak_score", peakScore),
		attribute.Float64("guardrail.check_ms", checkMS),
	)
}

// GuardrailRewrite emits the guardrail.rewrite span for one rewrite call.
func GuardrailRewrite(ctx context.Context, originalLen, rewrittenLen int, rewriteMS float64) {
	emit(ctx, SpanGuardrailRewrite,
		attribute.Int("guardrail.original_length", originalLen),
		attribute.Int("guardrail.rewritten_length", rewrittenLen),
		attribute.Float64("guardrail.rewrite_ms", rewriteMS),
	)
}

// TeacherEscalation emits the teacher.escalation span.
func TeacherEscalation(ctx context.Context, scope SessionScope, fromAgent, reason, roomName string, turn int) {
	emit(ctx, SpanTeacherEscalation, append(scope.attrs(),
		attribute.String("escalation.from_agent", fromAgent),
		attribute.String("escalation.reason", Truncate(reason)),
		attribute.String("room.name", roomName),
		attribute.Int("item.turn", turn),
	)...)
}

// emit records a point-in-time span carrying the given attributes.
func emit(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	_, span := StartSpan(ctx, name, trace.WithAttributes(attrs...))
	span.End()
}
