package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/tutor-agents-go/internal/config"
	"github.com/chriscow/tutor-agents-go/pkg/ai/realtime"
	realtimefake "github.com/chriscow/tutor-agents-go/pkg/ai/realtime/fake"
	"github.com/chriscow/tutor-agents-go/pkg/dispatch"
	dispatchfake "github.com/chriscow/tutor-agents-go/pkg/dispatch/fake"
	"github.com/chriscow/tutor-agents-go/pkg/guardrail"
	guardfake "github.com/chriscow/tutor-agents-go/pkg/guardrail/fake"
	"github.com/chriscow/tutor-agents-go/pkg/routing"
	"github.com/chriscow/tutor-agents-go/pkg/session"
	"github.com/chriscow/tutor-agents-go/pkg/transcript"
	transcriptfake "github.com/chriscow/tutor-agents-go/pkg/transcript/fake"
	"github.com/chriscow/tutor-agents-go/pkg/voice"
)

// recordingPublisher captures transcript events published to the room data
// channel.
type recordingPublisher struct {
	mu     sync.Mutex
	events []transcript.Event
}

func (p *recordingPublisher) PublishData(payload []byte, topic string) error {
	var ev transcript.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) published() []transcript.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]transcript.Event(nil), p.events...)
}

func testRuntime(agentType string, store *transcriptfake.FakeStore, dc *dispatchfake.FakeClient, mod *guardfake.FakeModerator) *Runtime {
	return &Runtime{
		Cfg:      config.Config{AgentType: agentType},
		Logger:   slog.Default(),
		Store:    store,
		Guard:    guardrail.New(mod, nil, store),
		Dispatch: dc,
	}
}

// waitFor polls until the condition holds or the deadline passes. The store
// and audit writes are fire-and-forget goroutines.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestItemHandler_SkipsSeededUserTurn(t *testing.T) {
	is := is.New(t)
	store := transcriptfake.NewFakeStore()
	rt := testRuntime(config.AgentTypeOrchestrator, store, dispatchfake.NewFakeClient(), guardfake.NewFakeModerator())

	st := session.NewWithID("sess-1", "student-1", "room-1")
	st.SkipNextUserTurns = 1
	pub := &recordingPublisher{}
	handler := rt.itemHandler(context.Background(), st, pub, "pipeline", rt.Logger)

	handler(voice.Item{Role: "user", Content: "seeded question"})
	is.Equal(len(pub.published()), 0) // seeded turn suppressed
	is.Equal(st.TurnNumber, 0)

	handler(voice.Item{Role: "user", Content: "what is a fraction?"})
	events := pub.published()
	is.Equal(len(events), 1)
	is.Equal(events[0].Speaker, "student")
	is.Equal(events[0].Role, "user")
	is.Equal(events[0].Turn, 1)

	waitFor(t, func() bool { return len(store.SavedTurns()) == 1 })
	is.Equal(store.SavedTurns()[0].Content, "what is a fraction?")
}

func TestItemHandler_SpeakerDerivation(t *testing.T) {
	is := is.New(t)
	store := transcriptfake.NewFakeStore()
	rt := testRuntime(config.AgentTypeOrchestrator, store, dispatchfake.NewFakeClient(), guardfake.NewFakeModerator())

	st := session.NewWithID("sess-1", "student-1", "room-1")
	st.RouteTo(session.SubjectMath)
	st.SpeakingAgent = session.SubjectMath
	pub := &recordingPublisher{}
	handler := rt.itemHandler(context.Background(), st, pub, "pipeline", rt.Logger)

	handler(voice.Item{Role: "assistant", Content: "A fraction is part of a whole."})
	handler(voice.Item{Role: "assistant", Content: "Let me connect you!", Speaker: "orchestrator"})

	events := pub.published()
	is.Equal(len(events), 2)
	is.Equal(events[0].Speaker, "math")
	is.True(events[0].Subject != nil)
	is.Equal(*events[0].Subject, "math")
	// An explicit speaker wins over the speaking-agent derivation.
	is.Equal(events[1].Speaker, "orchestrator")
}

func TestItemHandler_ClearsUserInputTimestamp(t *testing.T) {
	is := is.New(t)
	store := transcriptfake.NewFakeStore()
	rt := testRuntime(config.AgentTypeOrchestrator, store, dispatchfake.NewFakeClient(), guardfake.NewFakeModerator())

	st := session.NewWithID("sess-1", "student-1", "room-1")
	st.LastUserInputAt = time.Now().Add(-100 * time.Millisecond)
	pub := &recordingPublisher{}
	handler := rt.itemHandler(context.Background(), st, pub, "pipeline", rt.Logger)

	handler(voice.Item{Role: "assistant", Content: "Here is your answer."})
	is.True(st.LastUserInputAt.IsZero()) // consumed by the first assistant item
}

func TestHandleRealtimeItem_RecordsAndAudits(t *testing.T) {
	is := is.New(t)
	store := transcriptfake.NewFakeStore()
	mod := guardfake.NewFakeModerator("rude")
	rt := testRuntime(config.AgentTypeEnglish, store, dispatchfake.NewFakeClient(), mod)

	st := session.NewWithID("sess-1", "student-1", "room-1")
	st.RouteTo(session.SubjectEnglish)
	st.SpeakingAgent = session.SubjectEnglish
	pub := &recordingPublisher{}

	rt.handleRealtimeItem(context.Background(), st, pub, realtime.Event{
		Type: realtime.EventItemAdded, Role: "user", Text: "what is an adjective?",
	}, rt.Logger)
	rt.handleRealtimeItem(context.Background(), st, pub, realtime.Event{
		Type: realtime.EventItemAdded, Role: "assistant", Text: "That was a rude question.",
	}, rt.Logger)

	events := pub.published()
	is.Equal(len(events), 2)
	is.Equal(events[0].Speaker, "student")
	is.Equal(events[1].Speaker, "english")
	is.True(events[1].Subject != nil)
	is.Equal(*events[1].Subject, "english")

	waitFor(t, func() bool { return len(store.SavedGuardrails()) == 1 })
	audit := store.SavedGuardrails()[0]
	is.Equal(audit.ActionTaken, "audit_only")
	is.Equal(audit.AgentName, "english")
	// Post-hoc audit never changes what was said.
	is.Equal(audit.OriginalText, audit.RewrittenText)
}

func TestHandleRealtimeItem_IgnoresEmptyText(t *testing.T) {
	is := is.New(t)
	store := transcriptfake.NewFakeStore()
	rt := testRuntime(config.AgentTypeEnglish, store, dispatchfake.NewFakeClient(), guardfake.NewFakeModerator())

	st := session.NewWithID("sess-1", "student-1", "room-1")
	pub := &recordingPublisher{}
	rt.handleRealtimeItem(context.Background(), st, pub, realtime.Event{
		Type: realtime.EventItemAdded, Role: "assistant", Text: "   ",
	}, rt.Logger)

	is.Equal(len(pub.published()), 0)
	is.Equal(st.TurnNumber, 0)
}

func newFakeRealtimeSession(t *testing.T) realtime.Session {
	t.Helper()
	s, err := realtimefake.NewFakeModel().Connect(context.Background(), realtime.SessionConfig{})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHandleRealtimeTool_RouteBack(t *testing.T) {
	is := is.New(t)
	store := transcriptfake.NewFakeStore()
	dc := dispatchfake.NewFakeClient()
	rt := testRuntime(config.AgentTypeEnglish, store, dc, guardfake.NewFakeModerator())

	st := session.NewWithID("sess-1", "student-1", "room-1")
	handed := rt.handleRealtimeTool(context.Background(), st, newFakeRealtimeSession(t), realtime.Event{
		Type: realtime.EventToolCall,
		Tool: routing.ToolRouteBackToOrchestrator,
		Args: `{"reason": "student asked about fractions"}`,
	}, rt.Logger)
	is.True(handed)

	calls := dc.Calls()
	is.Equal(len(calls), 1)
	is.Equal(calls[0].AgentName, dispatch.WorkerOrchestrator)
	is.Equal(calls[0].Room, "room-1")
	is.Equal(calls[0].Metadata[dispatch.KeyReturnFromEnglish], "sess-1")
	is.Equal(calls[0].Metadata[dispatch.KeySubject], "english")
	is.Equal(calls[0].Metadata[dispatch.KeyQuestion], "student asked about fractions")

	waitFor(t, func() bool { return len(store.SavedRoutings()) == 1 })
	d := store.SavedRoutings()[0]
	is.Equal(d.FromAgent, "english")
	is.Equal(d.ToAgent, "orchestrator")
}

func TestHandleRealtimeTool_DispatchFailureStays(t *testing.T) {
	is := is.New(t)
	store := transcriptfake.NewFakeStore()
	dc := dispatchfake.NewFakeClient()
	dc.Err = context.DeadlineExceeded
	rt := testRuntime(config.AgentTypeEnglish, store, dc, guardfake.NewFakeModerator())

	st := session.NewWithID("sess-1", "student-1", "room-1")
	handed := rt.handleRealtimeTool(context.Background(), st, newFakeRealtimeSession(t), realtime.Event{
		Type: realtime.EventToolCall,
		Tool: routing.ToolRouteBackToOrchestrator,
		Args: `{"reason": "goodbye"}`,
	}, rt.Logger)
	is.True(!handed)
	is.Equal(st.TurnNumber, 0) // failed handback advances nothing
}

func TestHandleRealtimeTool_AbsorbsOtherTools(t *testing.T) {
	is := is.New(t)
	store := transcriptfake.NewFakeStore()
	dc := dispatchfake.NewFakeClient()
	rt := testRuntime(config.AgentTypeEnglish, store, dc, guardfake.NewFakeModerator())

	st := session.NewWithID("sess-1", "student-1", "room-1")
	handed := rt.handleRealtimeTool(context.Background(), st, newFakeRealtimeSession(t), realtime.Event{
		Type: realtime.EventToolCall,
		Tool: routing.ToolRouteToMath,
		Args: `{"question_summary": "fractions"}`,
	}, rt.Logger)
	is.True(!handed)
	is.Equal(len(dc.Calls()), 0)
}

func TestRuntime_WorkerSelection(t *testing.T) {
	is := is.New(t)

	orch := &Runtime{Cfg: config.Config{AgentType: config.AgentTypeOrchestrator}}
	is.Equal(orch.WorkerName(), dispatch.WorkerOrchestrator)

	english := &Runtime{Cfg: config.Config{AgentType: config.AgentTypeEnglish}}
	is.Equal(english.WorkerName(), dispatch.WorkerEnglish)
}
