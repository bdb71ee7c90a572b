// Package voice runs the pipeline conversation loop: user turns go to the
// active agent's model, replies go through the guarded sentence gate to TTS,
// and routing tool calls swap the active agent.
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/tutor-agents-go/internal/observe"
	"github.com/chriscow/tutor-agents-go/pkg/agent"
	"github.com/chriscow/tutor-agents-go/pkg/ai"
	"github.com/chriscow/tutor-agents-go/pkg/ai/llm"
	"github.com/chriscow/tutor-agents-go/pkg/ai/tts"
	"github.com/chriscow/tutor-agents-go/pkg/guardrail"
	"github.com/chriscow/tutor-agents-go/pkg/routing"
	"github.com/chriscow/tutor-agents-go/pkg/rtc"
	"github.com/chriscow/tutor-agents-go/pkg/session"
)

// Item is a committed conversation item surfaced to the registered handler.
type Item struct {
	Role    string
	Content string

	// Speaker, when set, overrides speaker derivation downstream. The
	// transition sentence of a handoff carries the outgoing agent here,
	// because SpeakingAgent has already flipped to the incoming one.
	Speaker string
}

// SessionConfig wires a pipeline session.
type SessionConfig struct {
	State     *session.State
	Agent     *agent.Agent
	Router    *routing.Router
	Guardrail *guardrail.Guardrail
	TTS       tts.TTS

	// AudioOut receives synthesized frames. Nil discards audio (tests).
	AudioOut chan<- rtc.AudioFrame

	// Gate, when set, is flipped while TTS audio is playing so the
	// microphone path can drop echo frames.
	Gate AudioGate
}

// Session is one pipeline conversation. All methods except CloseGracefully
// and Interrupt must be called from the session's own goroutine; item and
// close handlers are invoked synchronously and must not block.
type Session struct {
	state *session.State
	agent *agent.Agent

	router *routing.Router
	guard  *guardrail.Guardrail
	tts    tts.TTS
	out    chan<- rtc.AudioFrame
	gate   AudioGate

	history []llm.Message

	onItem  func(Item)
	onClose []func()

	// speaking is held for the duration of one guarded reply so a graceful
	// close drains in-flight synthesis instead of cutting it.
	speaking sync.Mutex

	closed      chan struct{}
	closeOnce   sync.Once
	interrupted atomic.Bool
}

// NewSession creates a pipeline session with the given initial agent.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		state:  cfg.State,
		agent:  cfg.Agent,
		router: cfg.Router,
		guard:  cfg.Guardrail,
		tts:    cfg.TTS,
		out:    cfg.AudioOut,
		gate:   cfg.Gate,
		closed: make(chan struct{}),
	}
}

// OnConversationItem registers the committed-item handler. The handler runs
// synchronously on the session goroutine; anything slow must be spawned off.
func (s *Session) OnConversationItem(fn func(Item)) { s.onItem = fn }

// OnClose registers a close handler.
func (s *Session) OnClose(fn func()) { s.onClose = append(s.onClose, fn) }

// Closed is closed once the session has fully shut down.
func (s *Session) Closed() <-chan struct{} { return s.closed }

// State returns the session state.
func (s *Session) State() *session.State { return s.state }

// ActiveAgent returns the agent currently driving the session.
func (s *Session) ActiveAgent() *agent.Agent { return s.agent }

// HistoryLength reports how many chat messages the session carries.
func (s *Session) HistoryLength() int { return len(s.history) }

// Activate makes ag the active speaker. If a pending question rides on the
// agent it is consumed as a synthetic user turn; the worker's item handler
// suppresses that turn via the skip counter, never by matching text.
func (s *Session) Activate(ctx context.Context, ag *agent.Agent) error {
	s.agent = ag
	observe.AgentActivated(ctx, s.scope(), ag.Name)
	observe.Logger(ctx).Info("agent activated",
		slog.String("session_id", s.state.SessionID),
		slog.String("agent", ag.Name),
		slog.Int("history_length", len(s.history)),
		slog.String("last_user_message", observe.Truncate(s.lastUserMessage())))

	if q := ag.ConsumePendingQuestion(); q != "" {
		s.history = append(s.history, llm.Message{Role: llm.RoleUser, Content: q})
		s.emitItem(Item{Role: "user", Content: q})
	}
	return s.generateReply(ctx)
}

// HandleUserTurn processes a final user transcription.
func (s *Session) HandleUserTurn(ctx context.Context, text string) error {
	select {
	case <-s.closed:
		return fmt.Errorf("voice: session closed")
	default:
	}

	s.state.LastUserInputAt = time.Now()
	s.history = append(s.history, llm.Message{Role: llm.RoleUser, Content: text})
	s.emitItem(Item{Role: "user", Content: text})
	return s.generateReply(ctx)
}

// generateReply drives the active agent's model once. A plain text response
// is spoken through the guarded path; a tool call goes through the router.
// A transient model failure gets one retry before the session gives up.
func (s *Session) generateReply(ctx context.Context) error {
	msgs := make([]llm.Message, 0, len(s.history)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: s.agent.Instructions})
	msgs = append(msgs, s.history...)

	req := llm.ChatRequest{
		Messages:    msgs,
		Temperature: s.agent.Temperature,
		Functions:   s.agent.Tools,
	}
	resp, err := s.agent.LLM.Chat(ctx, req)
	if err != nil && ai.IsRecoverable(err) {
		observe.Logger(ctx).Warn("model inference failed, retrying",
			slog.String("session_id", s.state.SessionID),
			slog.String("agent", s.agent.Name),
			slog.String("error", err.Error()))
		resp, err = s.agent.LLM.Chat(ctx, req)
	}
	if err != nil {
		observe.Logger(ctx).Error("model inference failed, closing session",
			slog.String("session_id", s.state.SessionID),
			slog.String("agent", s.agent.Name),
			slog.String("error", err.Error()))
		s.CloseGracefully()
		return fmt.Errorf("voice: chat: %w", err)
	}

	if resp.FunctionCall != nil {
		return s.handleToolCall(ctx, *resp.FunctionCall)
	}

	if resp.Message.Content == "" {
		return nil
	}
	s.say(ctx, resp.Message.Content, "")
	return nil
}

func (s *Session) handleToolCall(ctx context.Context, call llm.FunctionCall) error {
	tool, err := routing.ParseToolCall(call)
	if err != nil {
		observe.Logger(ctx).Error("rejecting malformed tool call",
			slog.String("session_id", s.state.SessionID),
			slog.String("error", err.Error()))
		return nil
	}

	out := s.router.Route(ctx, routing.Env{
		State:           s.state,
		From:            s.agent,
		LastUserMessage: s.lastUserMessage(),
		HistoryLength:   len(s.history),
		Closer:          s,
	}, tool)

	if out.Transition != "" {
		s.say(ctx, out.Transition, out.SpokenBy)
	}
	if out.NextAgent != nil {
		return s.Activate(ctx, out.NextAgent)
	}
	return nil
}

// say runs text through the sentence gate: each sentence is safety-checked,
// synthesized, and wrapped in a tts.sentence span. One conversation item is
// committed for the whole reply, carrying what was actually spoken.
func (s *Session) say(ctx context.Context, text, speaker string) {
	s.speaking.Lock()
	defer s.speaking.Unlock()

	if s.gate != nil {
		s.gate.SetTTSPlaying(true)
		defer s.gate.SetTTSPlaying(false)
	}

	var spoken []string
	gate := agent.NewSentenceGate(func(sentence string) error {
		spoken = append(spoken, s.speakSentence(ctx, sentence))
		return nil
	})
	gate.Write(text)
	gate.Flush()

	full := strings.Join(spoken, "")
	if strings.TrimSpace(full) == "" {
		return
	}
	s.history = append(s.history, llm.Message{Role: llm.RoleAssistant, Content: full})
	s.emitItem(Item{Role: "assistant", Content: full, Speaker: speaker})
}

// speakSentence safety-checks one sentence and synthesizes the safe text.
func (s *Session) speakSentence(ctx context.Context, sentence string) string {
	guardStart := time.Now()
	safe, rewritten := s.guard.CheckAndRewrite(ctx, sentence, s.state.SessionID, s.agent.Name)
	guardMS := float64(time.Since(guardStart).Microseconds()) / 1000

	synthStart := time.Now()
	s.synthesize(ctx, safe)
	synthMS := float64(time.Since(synthStart).Microseconds()) / 1000

	observe.TTSSentence(ctx, len(safe), guardMS, synthMS, rewritten)
	return safe
}

func (s *Session) synthesize(ctx context.Context, text string) {
	if s.tts == nil {
		return
	}
	frames, err := s.tts.Synthesize(ctx, tts.SynthesizeRequest{
		Text:  text,
		Voice: s.agent.Voice,
	})
	if err != nil {
		observe.Logger(ctx).Error("synthesis failed",
			slog.String("session_id", s.state.SessionID),
			slog.String("error", err.Error()))
		return
	}
	for frame := range frames {
		if s.out == nil {
			continue
		}
		select {
		case s.out <- frame:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) lastUserMessage() string {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Role == llm.RoleUser {
			return s.history[i].Content
		}
	}
	return ""
}

func (s *Session) emitItem(item Item) {
	if s.onItem != nil {
		s.onItem(item)
	}
}

func (s *Session) scope() observe.SessionScope {
	return observe.SessionScope{
		SessionID: s.state.SessionID,
		UserID:    s.state.StudentIdentity,
	}
}

// CloseGracefully drains in-flight speech, runs the close handlers, and
// marks the session closed. Safe to call multiple times and from any
// goroutine; the drain timers after an english dispatch rely on that.
func (s *Session) CloseGracefully() {
	s.closeOnce.Do(func() {
		s.speaking.Lock()
		s.speaking.Unlock()
		for _, fn := range s.onClose {
			fn()
		}
		close(s.closed)
	})
}

// Interrupt force-closes without draining. The english handoff path must
// never use this; it exists for hard shutdown only.
func (s *Session) Interrupt() {
	s.interrupted.Store(true)
	s.closeOnce.Do(func() {
		for _, fn := range s.onClose {
			fn()
		}
		close(s.closed)
	})
}

// Interrupted reports whether Interrupt was ever invoked.
func (s *Session) Interrupted() bool { return s.interrupted.Load() }

var _ routing.SessionCloser = (*Session)(nil)
