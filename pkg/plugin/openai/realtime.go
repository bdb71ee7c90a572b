package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chriscow/tutor-agents-go/pkg/ai/llm"
	"github.com/chriscow/tutor-agents-go/pkg/ai/realtime"
)

// DefaultRealtimeModel is the audio-native speech-to-speech model.
const DefaultRealtimeModel = "gpt-realtime"

const realtimeBaseURL = "wss://api.openai.com/v1/realtime"

// RealtimeModel connects to the OpenAI realtime API over WebSocket. The
// realtime endpoint speaks its own event protocol rather than the REST API,
// so it takes the raw API key instead of an *openai.Client.
type RealtimeModel struct {
	apiKey  string
	model   string
	baseURL string
}

// NewRealtimeModel creates a realtime model. Model defaults to gpt-realtime.
func NewRealtimeModel(apiKey, model string) (*RealtimeModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if model == "" {
		model = DefaultRealtimeModel
	}
	return &RealtimeModel{apiKey: apiKey, model: model, baseURL: realtimeBaseURL}, nil
}

var _ realtime.Model = (*RealtimeModel)(nil)

// Connect dials the realtime endpoint and configures the session with the
// requested voice. Instructions are not sent here; the session create call
// rejects them, so they go through SetInstructions once connected.
func (m *RealtimeModel) Connect(ctx context.Context, cfg realtime.SessionConfig) (realtime.Session, error) {
	u, err := url.Parse(m.baseURL)
	if err != nil {
		return nil, fmt.Errorf("openai: realtime url: %w", err)
	}
	q := u.Query()
	q.Set("model", m.model)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+m.apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("openai: realtime connect: %w", err)
	}

	s := &realtimeSession{
		conn:   conn,
		events: make(chan realtime.Event, 16),
	}

	update := map[string]any{
		"modalities":                []string{"text", "audio"},
		"input_audio_transcription": map[string]any{"model": "whisper-1"},
	}
	if cfg.Voice != "" {
		update["voice"] = cfg.Voice
	}
	if cfg.Temperature > 0 {
		update["temperature"] = cfg.Temperature
	}
	if err := s.send(serverEvent{Type: "session.update", Session: update}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("openai: realtime session.update: %w", err)
	}

	go s.readLoop()
	return s, nil
}

// serverEvent covers the subset of the realtime wire protocol the session
// sends and receives. Unused fields stay nil and are omitted on the wire.
type serverEvent struct {
	Type       string         `json:"type"`
	Session    map[string]any `json:"session,omitempty"`
	Item       *realtimeItem  `json:"item,omitempty"`
	Response   map[string]any `json:"response,omitempty"`
	Transcript string         `json:"transcript,omitempty"`
	Name       string         `json:"name,omitempty"`
	Arguments  string         `json:"arguments,omitempty"`
	Error      *realtimeError `json:"error,omitempty"`
}

type realtimeItem struct {
	Type    string            `json:"type,omitempty"`
	Role    string            `json:"role,omitempty"`
	Content []realtimeContent `json:"content,omitempty"`
}

type realtimeContent struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

type realtimeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type realtimeSession struct {
	conn   *websocket.Conn
	events chan realtime.Event

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

var _ realtime.Session = (*realtimeSession)(nil)

func (s *realtimeSession) send(ev serverEvent) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(ev)
}

// SetInstructions applies the agent instructions to the running session.
func (s *realtimeSession) SetInstructions(_ context.Context, instructions string) error {
	err := s.send(serverEvent{
		Type:    "session.update",
		Session: map[string]any{"instructions": instructions},
	})
	if err != nil {
		return fmt.Errorf("openai: realtime set instructions: %w", err)
	}
	return nil
}

// ConfigureTools registers function tools with the running session.
func (s *realtimeSession) ConfigureTools(_ context.Context, tools []llm.FunctionDefinition) error {
	if len(tools) == 0 {
		return nil
	}
	wire := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		wire = append(wire, map[string]any{
			"type":        "function",
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.Parameters,
		})
	}
	err := s.send(serverEvent{
		Type:    "session.update",
		Session: map[string]any{"tools": wire},
	})
	if err != nil {
		return fmt.Errorf("openai: realtime configure tools: %w", err)
	}
	return nil
}

// GenerateReply asks the model to speak. A non-empty question is injected as
// a user item first so the reply answers it directly.
func (s *realtimeSession) GenerateReply(_ context.Context, question string) error {
	if question != "" {
		err := s.send(serverEvent{
			Type: "conversation.item.create",
			Item: &realtimeItem{
				Type: "message",
				Role: "user",
				Content: []realtimeContent{
					{Type: "input_text", Text: question},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("openai: realtime item create: %w", err)
		}
	}
	if err := s.send(serverEvent{Type: "response.create"}); err != nil {
		return fmt.Errorf("openai: realtime response create: %w", err)
	}
	return nil
}

func (s *realtimeSession) Events() <-chan realtime.Event {
	return s.events
}

// Close shuts the connection down. The read loop observes the close and
// emits EventClosed before closing the event channel.
func (s *realtimeSession) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.writeMu.Lock()
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	return s.conn.Close()
}

func (s *realtimeSession) isClosed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}

// readLoop translates wire events into realtime.Event values. Only committed
// items surface; audio deltas and bookkeeping events are skipped.
func (s *realtimeSession) readLoop() {
	defer close(s.events)
	defer s.emit(realtime.Event{Type: realtime.EventClosed})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosed() {
				s.emit(realtime.Event{Type: realtime.EventError,
					Err: fmt.Errorf("openai: realtime read: %w", err)})
			}
			return
		}

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Debug("realtime event decode failed", slog.String("error", err.Error()))
			continue
		}

		switch ev.Type {
		case "conversation.item.input_audio_transcription.completed":
			s.emit(realtime.Event{Type: realtime.EventItemAdded, Role: "user", Text: ev.Transcript})
		case "response.audio_transcript.done":
			s.emit(realtime.Event{Type: realtime.EventItemAdded, Role: "assistant", Text: ev.Transcript})
		case "conversation.item.created":
			// Text-typed user items come back immediately; audio items
			// surface later through the transcription event instead.
			if ev.Item != nil && ev.Item.Role == "user" {
				if text := itemText(ev.Item); text != "" {
					s.emit(realtime.Event{Type: realtime.EventItemAdded, Role: "user", Text: text})
				}
			}
		case "response.function_call_arguments.done":
			s.emit(realtime.Event{Type: realtime.EventToolCall, Tool: ev.Name, Args: ev.Arguments})
		case "error":
			msg := "unknown error"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			s.emit(realtime.Event{Type: realtime.EventError,
				Err: fmt.Errorf("openai: realtime: %s", msg)})
		}
	}
}

func itemText(item *realtimeItem) string {
	for _, c := range item.Content {
		if c.Type == "input_text" || c.Type == "text" {
			return c.Text
		}
	}
	return ""
}

func (s *realtimeSession) emit(ev realtime.Event) {
	select {
	case s.events <- ev:
	default:
		slog.Warn("realtime event dropped, consumer not keeping up",
			slog.Int("type", int(ev.Type)))
	}
}
