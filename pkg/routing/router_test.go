package routing_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/tutor-agents-go/pkg/agent"
	"github.com/chriscow/tutor-agents-go/pkg/ai/llm"
	dispatchfake "github.com/chriscow/tutor-agents-go/pkg/dispatch/fake"
	"github.com/chriscow/tutor-agents-go/pkg/routing"
	"github.com/chriscow/tutor-agents-go/pkg/session"
	transcriptfake "github.com/chriscow/tutor-agents-go/pkg/transcript/fake"
)

type fakeEscalator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeEscalator) Escalate(_ context.Context, sessionID, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, sessionID)
	return nil
}

func (f *fakeEscalator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeCloser struct {
	closes atomic.Int32
}

func (f *fakeCloser) CloseGracefully() { f.closes.Add(1) }

func newRouter(t *testing.T) (*routing.Router, *dispatchfake.FakeClient, *transcriptfake.FakeStore, *fakeEscalator) {
	t.Helper()
	dc := dispatchfake.NewFakeClient()
	store := transcriptfake.NewFakeStore()
	esc := &fakeEscalator{}
	r := &routing.Router{
		Agents:    agent.Factory{Tools: routing.Definitions},
		Dispatch:  dc,
		Escalator: esc,
		Store:     store,
	}
	return r, dc, store, esc
}

func newState() *session.State {
	return session.NewWithID("sess-1", "student-1", "room-1")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRoute_Math(t *testing.T) {
	is := is.New(t)
	r, _, store, _ := newRouter(t)
	st := newState()
	orch := r.Agents.Orchestrator()

	out := r.Route(context.Background(), routing.Env{State: st, From: orch}, routing.RouteToMath{QuestionSummary: "seven times eight"})

	is.True(out.NextAgent != nil)
	is.Equal(out.NextAgent.Name, agent.NameMath)
	is.Equal(out.NextAgent.PendingQuestion, "seven times eight")
	is.Equal(out.Transition, "Let me connect you with our Mathematics tutor!")
	is.Equal(out.SpokenBy, agent.NameOrchestrator)

	is.Equal(st.CurrentSubject, session.SubjectMath)
	is.Equal(st.SpeakingAgent, session.SubjectMath)
	is.Equal(st.SkipNextUserTurns, 1)
	is.Equal(st.TurnNumber, 1)

	waitFor(t, func() bool { return len(store.SavedRoutings()) == 1 })
	d := store.SavedRoutings()[0]
	is.Equal(d.FromAgent, agent.NameOrchestrator)
	is.Equal(d.ToAgent, "math")
	is.Equal(d.QuestionSummary, "seven times eight")
}

func TestRoute_SpecialistCrossRoute(t *testing.T) {
	is := is.New(t)
	r, _, store, _ := newRouter(t)
	st := newState()
	st.RouteTo(session.SubjectMath)
	math := r.Agents.Math()

	out := r.Route(context.Background(), routing.Env{State: st, From: math}, routing.RouteToHistory{QuestionSummary: "Napoleon"})

	is.Equal(out.NextAgent.Name, agent.NameHistory)
	is.Equal(out.SpokenBy, agent.NameMath)
	is.Equal(st.CurrentSubject, session.SubjectHistory)
	is.Equal(st.PreviousSubjects, []session.Subject{session.SubjectOrchestrator, session.SubjectMath})

	waitFor(t, func() bool { return len(store.SavedRoutings()) == 1 })
	is.Equal(store.SavedRoutings()[0].FromAgent, agent.NameMath)
	is.Equal(store.SavedRoutings()[0].ToAgent, "history")
}

func TestRoute_SameTargetIsNoOp(t *testing.T) {
	is := is.New(t)
	r, _, _, _ := newRouter(t)
	st := newState()
	st.RouteTo(session.SubjectMath)
	st.SpeakingAgent = session.SubjectMath
	turns := st.TurnNumber
	math := r.Agents.Math()

	out := r.Route(context.Background(), routing.Env{State: st, From: math}, routing.RouteToMath{QuestionSummary: "again"})

	is.Equal(out.NextAgent, nil)
	is.Equal(out.Transition, "")
	is.Equal(st.TurnNumber, turns)
	is.Equal(st.SkipNextUserTurns, 0)
	is.Equal(len(st.PreviousSubjects), 1)
}

func TestRoute_English_DispatchAndDrain(t *testing.T) {
	is := is.New(t)
	r, dc, _, _ := newRouter(t)
	st := newState()
	closer := &fakeCloser{}
	orch := r.Agents.Orchestrator()

	out := r.Route(context.Background(), routing.Env{State: st, From: orch, Closer: closer}, routing.RouteToEnglish{QuestionSummary: "adjectives"})

	is.True(out.NextAgent == nil)
	is.True(out.ClosingAfterDrain)
	is.Equal(out.Transition, "Let me connect you with our English tutor right away!")

	calls := dc.Calls()
	is.Equal(len(calls), 1)
	is.Equal(calls[0].AgentName, "learning-english")
	is.Equal(calls[0].Room, "room-1")
	is.Equal(calls[0].Metadata["session"], "sess-1")
	is.Equal(calls[0].Metadata["question"], "adjectives")
	is.Equal(calls[0].Metadata["subject"], "orchestrator")

	// Close happens after the drain interval, not immediately.
	is.Equal(closer.closes.Load(), int32(0))
}

func TestRoute_English_FallbackOnDispatchFailure(t *testing.T) {
	is := is.New(t)
	r, dc, _, _ := newRouter(t)
	dc.Err = errors.New("dispatch unavailable")
	st := newState()
	closer := &fakeCloser{}
	orch := r.Agents.Orchestrator()

	out := r.Route(context.Background(), routing.Env{State: st, From: orch, Closer: closer}, routing.RouteToEnglish{QuestionSummary: "adjectives"})

	is.True(out.NextAgent != nil)
	is.Equal(out.NextAgent.Name, agent.NameEnglish)
	is.Equal(out.NextAgent.PendingQuestion, "adjectives")
	is.True(!out.ClosingAfterDrain)
	is.Equal(out.Transition, "Let me connect you with our English tutor!")
	is.Equal(st.CurrentSubject, session.SubjectEnglish)
}

func TestRoute_EscalateLatchesOnce(t *testing.T) {
	is := is.New(t)
	r, _, store, esc := newRouter(t)
	st := newState()
	orch := r.Agents.Orchestrator()

	out := r.Route(context.Background(), routing.Env{State: st, From: orch}, routing.EscalateToTeacher{Reason: "student expressing distress"})
	is.True(st.Escalated)
	is.Equal(st.EscalationReason, "student expressing distress")
	is.True(out.Transition != "")

	waitFor(t, func() bool { return len(esc.Calls()) == 1 })
	waitFor(t, func() bool { return len(store.SavedRoutings()) == 1 })
	is.Equal(store.SavedRoutings()[0].ToAgent, "teacher_escalation")

	// Second call keeps the latch and does not re-file.
	out2 := r.Route(context.Background(), routing.Env{State: st, From: orch}, routing.EscalateToTeacher{Reason: "again"})
	is.True(out2.Transition != "")
	is.Equal(st.EscalationReason, "student expressing distress")
	time.Sleep(50 * time.Millisecond)
	is.Equal(len(esc.Calls()), 1)
	is.Equal(len(store.SavedRoutings()), 1)
}

func TestRoute_AbsorbedAfterEscalation(t *testing.T) {
	is := is.New(t)
	r, _, _, _ := newRouter(t)
	st := newState()
	st.Escalate("distress")
	orch := r.Agents.Orchestrator()

	out := r.Route(context.Background(), routing.Env{State: st, From: orch}, routing.RouteToMath{QuestionSummary: "sums"})
	is.Equal(out.NextAgent, nil)
	is.Equal(st.CurrentSubject, session.SubjectOrchestrator)
}

func TestRoute_EscalationStoreFailureKeepsLatch(t *testing.T) {
	is := is.New(t)
	r, _, _, esc := newRouter(t)
	esc.err = errors.New("store down")
	st := newState()
	orch := r.Agents.Orchestrator()

	out := r.Route(context.Background(), routing.Env{State: st, From: orch}, routing.EscalateToTeacher{Reason: "distress"})
	is.True(st.Escalated)
	is.True(out.Transition != "")
}

func fnCall(name, args string) llm.FunctionCall {
	return llm.FunctionCall{Name: name, Arguments: args}
}

func TestParseToolCall(t *testing.T) {
	is := is.New(t)

	call, err := routing.ParseToolCall(fnCall("route_to_math", `{"question_summary":"fractions"}`))
	is.NoErr(err)
	is.Equal(call.(routing.RouteToMath).QuestionSummary, "fractions")

	call, err = routing.ParseToolCall(fnCall("escalate_to_teacher", `{"reason":"distress"}`))
	is.NoErr(err)
	is.Equal(call.(routing.EscalateToTeacher).Reason, "distress")

	_, err = routing.ParseToolCall(fnCall("open_pod_bay_doors", `{}`))
	is.True(err != nil)
}

func TestDefinitions_PerAgentToolSets(t *testing.T) {
	is := is.New(t)

	names := func(agentName string) map[string]bool {
		out := map[string]bool{}
		for _, d := range routing.Definitions(agentName) {
			out[d.Name] = true
		}
		return out
	}

	orch := names(agent.NameOrchestrator)
	is.Equal(len(orch), 4)
	is.True(orch["route_to_math"])
	is.True(orch["escalate_to_teacher"])
	is.True(!orch["route_back_to_orchestrator"])

	math := names(agent.NameMath)
	is.True(!math["route_to_math"])
	is.True(math["route_to_history"])
	is.True(math["route_to_english"])

	english := names(agent.NameEnglish)
	is.Equal(len(english), 1)
	is.True(english["route_back_to_orchestrator"])
}
