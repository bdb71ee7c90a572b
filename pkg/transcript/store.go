// Package transcript persists session records, transcript turns, routing
// decisions, escalation events, and guardrail audit events, and publishes
// live transcript events onto the room data channel.
//
// All store writes are fire-and-forget from the speech path: failures are
// logged and never propagate into synthesis.
package transcript

import (
	"context"
	"time"

	"github.com/chriscow/tutor-agents-go/pkg/session"
)

// Turn is one committed conversation item.
type Turn struct {
	SessionID  string
	TurnNumber int
	Speaker    string
	Role       string
	Content    string
	Subject    session.Subject
}

// RoutingDecision is one agent handoff record.
type RoutingDecision struct {
	SessionID       string
	TurnNumber      int
	FromAgent       string
	ToAgent         string
	QuestionSummary string
}

// EscalationEvent is one teacher escalation, carrying the pre-signed token
// the teacher portal uses to join the room.
type EscalationEvent struct {
	SessionID    string
	RoomName     string
	Reason       string
	TeacherToken string
	ExpiresAt    time.Time
}

// GuardrailEvent is one safety audit record.
type GuardrailEvent struct {
	SessionID         string
	AgentName         string
	OriginalText      string
	RewrittenText     string
	CategoriesFlagged []string
	ModerationScore   float64
	ActionTaken       string
}

// Store is the persistence surface for the tutoring runtime.
type Store interface {
	// CreateSession inserts a learning_sessions row at session start.
	CreateSession(ctx context.Context, sessionID, roomName, studentIdentity string) error

	// CloseSession stamps ended_at and attaches the session report.
	CloseSession(ctx context.Context, sessionID string, report session.Snapshot) error

	// SaveTurn inserts one transcript turn.
	SaveTurn(ctx context.Context, turn Turn) error

	// SaveRoutingDecision records an agent handoff.
	SaveRoutingDecision(ctx context.Context, d RoutingDecision) error

	// SaveEscalation records a teacher escalation.
	SaveEscalation(ctx context.Context, e EscalationEvent) error

	// SaveGuardrailEvent records a safety audit event.
	SaveGuardrailEvent(ctx context.Context, e GuardrailEvent) error
}
