// Package realtime defines the interface for audio-native inference models.
// Unlike the pipeline path there is no text intermediate between the model
// and the audio it produces; committed items surface after the fact as
// events.
package realtime

import (
	"context"

	"github.com/chriscow/tutor-agents-go/pkg/ai"
	"github.com/chriscow/tutor-agents-go/pkg/ai/llm"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// SessionConfig configures a realtime session at connect time.
//
// There is deliberately no Instructions field here: the model endpoint
// rejects an instructions argument at session create. Instructions belong to
// the agent and are applied via [Session.SetInstructions] after connect.
type SessionConfig struct {
	Voice       string
	Temperature float32
}

// EventType classifies realtime session events.
type EventType int

const (
	// EventItemAdded fires when the model commits a conversation item
	// (user transcription or assistant utterance).
	EventItemAdded EventType = iota
	// EventToolCall fires when the model invokes a registered tool.
	EventToolCall
	// EventError reports a transport or model error.
	EventError
	// EventClosed fires once when the session ends; no further events
	// follow.
	EventClosed
)

// Event is one realtime session event. For EventItemAdded, Role and Text
// carry the committed item; for EventToolCall, Tool and Args carry the
// invocation.
type Event struct {
	Type EventType
	Role string
	Text string
	Tool string
	Args string
	Err  error
}

// Session is a live connection to an audio-native model.
type Session interface {
	// SetInstructions applies the agent's system instructions to the
	// running session.
	SetInstructions(ctx context.Context, instructions string) error

	// ConfigureTools registers tool definitions the model may invoke.
	ConfigureTools(ctx context.Context, tools []llm.FunctionDefinition) error

	// GenerateReply asks the model to produce a spoken response. A
	// non-empty question conditions the reply as if the user had asked it.
	GenerateReply(ctx context.Context, question string) error

	// Events returns the session event stream. The channel closes after
	// EventClosed.
	Events() <-chan Event

	// Close tears the session down gracefully.
	Close() error
}

// Model opens realtime sessions.
type Model interface {
	Connect(ctx context.Context, cfg SessionConfig) (Session, error)
}
