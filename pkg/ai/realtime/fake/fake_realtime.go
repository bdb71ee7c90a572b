package fake

import (
	"context"
	"sync"

	"github.com/chriscow/tutor-agents-go/pkg/ai/llm"
	"github.com/chriscow/tutor-agents-go/pkg/ai/realtime"
)

// FakeModel is a realtime model for testing. Every Connect returns a new
// FakeSession scripted with the configured replies.
type FakeModel struct {
	mu       sync.Mutex
	replies  []string
	sessions []*FakeSession
}

// NewFakeModel creates a fake model whose sessions answer GenerateReply with
// the given texts in order.
func NewFakeModel(replies ...string) *FakeModel {
	if len(replies) == 0 {
		replies = []string{"An adjective describes a noun, like 'blue sky'."}
	}
	return &FakeModel{replies: replies}
}

// Connect returns a new scripted session.
func (m *FakeModel) Connect(_ context.Context, cfg realtime.SessionConfig) (realtime.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &FakeSession{
		Voice:   cfg.Voice,
		replies: append([]string(nil), m.replies...),
		events:  make(chan realtime.Event, 16),
	}
	m.sessions = append(m.sessions, s)
	return s, nil
}

// Sessions returns the sessions handed out so far.
func (m *FakeModel) Sessions() []*FakeSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*FakeSession(nil), m.sessions...)
}

// FakeSession is a scripted realtime session.
type FakeSession struct {
	Voice string

	mu           sync.Mutex
	instructions string
	tools        []llm.FunctionDefinition
	replies      []string
	replyIndex   int
	questions    []string
	closed       bool
	events       chan realtime.Event
}

var _ realtime.Session = (*FakeSession)(nil)

// SetInstructions records the agent instructions.
func (s *FakeSession) SetInstructions(_ context.Context, instructions string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instructions = instructions
	return nil
}

// ConfigureTools records the registered tool definitions.
func (s *FakeSession) ConfigureTools(_ context.Context, tools []llm.FunctionDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append([]llm.FunctionDefinition(nil), tools...)
	return nil
}

// Tools returns the tool definitions registered with the session.
func (s *FakeSession) Tools() []llm.FunctionDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.FunctionDefinition(nil), s.tools...)
}

// EmitToolCall scripts a model tool invocation.
func (s *FakeSession) EmitToolCall(name, args string) {
	s.events <- realtime.Event{Type: realtime.EventToolCall, Tool: name, Args: args}
}

// EmitItem scripts a committed conversation item.
func (s *FakeSession) EmitItem(role, text string) {
	s.events <- realtime.Event{Type: realtime.EventItemAdded, Role: role, Text: text}
}

// Instructions returns the instructions applied to the session.
func (s *FakeSession) Instructions() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instructions
}

// GenerateReply emits the next scripted assistant item. A non-empty question
// also emits the synthetic user item first, mirroring the real model.
func (s *FakeSession) GenerateReply(_ context.Context, question string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append(s.questions, question)
	if question != "" {
		s.events <- realtime.Event{Type: realtime.EventItemAdded, Role: "user", Text: question}
	}
	reply := s.replies[s.replyIndex%len(s.replies)]
	s.replyIndex++
	s.events <- realtime.Event{Type: realtime.EventItemAdded, Role: "assistant", Text: reply}
	return nil
}

// Questions returns the questions passed to GenerateReply.
func (s *FakeSession) Questions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.questions...)
}

// Events returns the scripted event stream.
func (s *FakeSession) Events() <-chan realtime.Event {
	return s.events
}

// Close emits EventClosed and closes the stream.
func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.events <- realtime.Event{Type: realtime.EventClosed}
	close(s.events)
	return nil
}

// Closed reports whether Close has been called.
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
