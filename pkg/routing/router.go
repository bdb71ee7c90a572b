// Package routing implements the cross-agent handoffs. Every handoff is a
// tool call made by the active agent's model; the router decodes the call,
// mutates session state, emits the routing.decision span, and tells the
// voice session what to speak and which agent takes over.
package routing

import (
	"context"
	"log/slog"
	"time"

	"github.com/chriscow/tutor-agents-go/internal/observe"
	"github.com/chriscow/tutor-agents-go/pkg/agent"
	"github.com/chriscow/tutor-agents-go/pkg/dispatch"
	"github.com/chriscow/tutor-agents-go/pkg/escalation"
	"github.com/chriscow/tutor-agents-go/pkg/session"
	"github.com/chriscow/tutor-agents-go/pkg/transcript"
)

// DrainDelay is how long the pipeline session keeps running after a
// successful english dispatch, so the outgoing agent's transition sentence
// finishes before the session closes. Tuned so the realtime worker's first
// utterance begins about half a second after the transition ends.
const DrainDelay = 3500 * time.Millisecond

// CloseWatchdog bounds the drain-and-close sequence even if the drain timer
// is lost.
const CloseWatchdog = 30 * time.Second

// Transition sentences spoken by the outgoing agent during a handoff.
const (
	transitionMath            = "Let me connect you with our Mathematics tutor!"
	transitionHistory         = "Let me connect you with our History tutor!"
	transitionEnglish         = "Let me connect you with our English tutor right away!"
	transitionEnglishFallback = "Let me connect you with our English tutor!"
	transitionBack            = "Let me pass you back to the main tutor who can help with that."
)

// writeTimeout bounds fire-and-forget store writes.
const writeTimeout = 10 * time.Second

// SessionCloser is implemented by the voice session. CloseGracefully drains
// in-flight speech before closing; it is never an interrupt, because
// interrupt cuts synthesis mid-word.
type SessionCloser interface {
	CloseGracefully()
}

// Escalator files a teacher escalation out of band.
type Escalator interface {
	Escalate(ctx context.Context, sessionID, roomName, reason string) error
}

// Outcome is what a routing call hands back to the voice session.
type Outcome struct {
	// NextAgent replaces the active agent when non-nil.
	NextAgent *agent.Agent

	// Transition is spoken before the next agent activates. SpokenBy names
	// the outgoing agent the sentence is attributed to; the routing call has
	// already flipped SpeakingAgent to the target by the time it is spoken.
	Transition string
	SpokenBy   string

	// ClosingAfterDrain is set when a successful english dispatch has
	// scheduled the pipeline session's graceful close.
	ClosingAfterDrain bool
}

// Env is the per-call context a routing operation runs against.
type Env struct {
	State *session.State
	From  *agent.Agent

	// LastUserMessage and HistoryLength feed the routing.decision span.
	LastUserMessage string
	HistoryLength   int

	// Closer receives the drain-and-close sequence after an english
	// dispatch. Nil disables the close scheduling (tests).
	Closer SessionCloser
}

// Router executes routing tool calls.
type Router struct {
	Agents    agent.Factory
	Dispatch  dispatch.Client
	Escalator Escalator
	Store     transcript.Store
}

// Route executes one routing tool call. Once the session has escalated, the
// subject state machine is absorbing: further route calls are ignored, but
// escalation itself still answers the student.
func (r *Router) Route(ctx context.Context, env Env, call ToolCall) Outcome {
	start := time.Now()

	if esc, ok := call.(EscalateToTeacher); ok {
		return r.escalate(ctx, env, esc.Reason)
	}

	if env.State.Escalated {
		observe.Logger(ctx).Warn("routing ignored after escalation",
			slog.String("session_id", env.State.SessionID),
			slog.String("tool", call.toolName()))
		return Outcome{}
	}

	switch c := call.(type) {
	case RouteToMath:
		return r.routeSubject(ctx, env, session.SubjectMath, c.QuestionSummary, transitionMath, start)
	case RouteToHistory:
		return r.routeSubject(ctx, env, session.SubjectHistory, c.QuestionSummary, transitionHistory, start)
	case RouteBackToOrchestrator:
		return r.routeSubject(ctx, env, session.SubjectOrchestrator, c.Reason, transitionBack, start)
	case RouteToEnglish:
		return r.routeEnglish(ctx, env, c.QuestionSummary, start)
	default:
		observe.Logger(ctx).Error("unhandled routing tool", slog.String("tool", call.toolName()))
		return Outcome{}
	}
}

// routeSubject is the in-session handoff shared by math, history, and the
// return to the orchestrator.
func (r *Router) routeSubject(ctx context.Context, env Env, target session.Subject, summary, transition string, start time.Time) Outcome {
	st := env.State
	from := env.From.Name
	prev := st.CurrentSubject

	if prev == target {
		// Same-target call: fire the span, keep the existing agent, and
		// leave session state untouched.
		r.emitDecision(ctx, env, string(target), summary, string(prev), st.TurnNumber, start)
		return Outcome{}
	}

	turn := st.AdvanceTurn()
	st.RouteTo(target)
	st.SpeakingAgent = target
	st.SkipNextUserTurns = 1

	next := r.Agents.BySubject(target)
	next.PendingQuestion = summary

	r.emitDecision(ctx, env, string(target), summary, string(prev), turn, start)
	r.saveDecision(ctx, transcript.RoutingDecision{
		SessionID:       st.SessionID,
		TurnNumber:      turn,
		FromAgent:       from,
		ToAgent:         string(target),
		QuestionSummary: summary,
	})

	observe.Logger(ctx).Info("routing handoff",
		slog.String("session_id", st.SessionID),
		slog.String("from", from),
		slog.String("to", string(target)))

	return Outcome{NextAgent: next, Transition: transition, SpokenBy: from}
}

// routeEnglish dispatches the realtime worker into the room. On success the
// pipeline session drains and closes; on failure the session degrades to the
// text-path English tutor.
func (r *Router) routeEnglish(ctx context.Context, env Env, summary string, start time.Time) Outcome {
	st := env.State
	from := env.From.Name
	prev := st.CurrentSubject

	if prev == session.SubjectEnglish {
		r.emitDecision(ctx, env, agent.NameEnglish, summary, string(prev), st.TurnNumber, start)
		return Outcome{}
	}

	turn := st.AdvanceTurn()
	st.RouteTo(session.SubjectEnglish)
	st.SpeakingAgent = session.SubjectEnglish
	st.SkipNextUserTurns = 1

	md := dispatch.Metadata{
		"session":  st.SessionID,
		"question": summary,
		"subject":  string(prev),
	}
	err := r.Dispatch.Dispatch(ctx, dispatch.WorkerEnglish, st.RoomName, md)

	r.emitDecision(ctx, env, agent.NameEnglish, summary, string(prev), turn, start)
	r.saveDecision(ctx, transcript.RoutingDecision{
		SessionID:       st.SessionID,
		TurnNumber:      turn,
		FromAgent:       from,
		ToAgent:         agent.NameEnglish,
		QuestionSummary: summary,
	})

	if err != nil {
		observe.Logger(ctx).Warn("english dispatch failed, degrading to text path",
			slog.String("session_id", st.SessionID),
			slog.String("error", err.Error()))
		fallback := r.Agents.EnglishFallback()
		fallback.PendingQuestion = summary
		return Outcome{NextAgent: fallback, Transition: transitionEnglishFallback, SpokenBy: from}
	}

	observe.Logger(ctx).Info("dispatched realtime english worker",
		slog.String("session_id", st.SessionID),
		slog.String("room", st.RoomName))

	r.scheduleClose(ctx, env.Closer, st.SessionID)
	return Outcome{Transition: transitionEnglish, SpokenBy: from, ClosingAfterDrain: true}
}

// scheduleClose arms the drain timer and the watchdog. Both outlive the
// routing call; CloseGracefully is idempotent so double firing is harmless.
func (r *Router) scheduleClose(ctx context.Context, closer SessionCloser, sessionID string) {
	if closer == nil {
		return
	}
	logger := observe.Logger(ctx)
	go func() {
		time.Sleep(DrainDelay)
		logger.Info("drain complete, closing pipeline session",
			slog.String("session_id", sessionID))
		closer.CloseGracefully()
	}()
	go func() {
		time.Sleep(CloseWatchdog)
		closer.CloseGracefully()
	}()
}

// escalate latches the escalation flag, emits the span, and files the
// teacher notification on the first call only.
func (r *Router) escalate(ctx context.Context, env Env, reason string) Outcome {
	st := env.State
	from := env.From.Name
	turn := st.AdvanceTurn()

	first := st.Escalate(reason)

	observe.TeacherEscalation(ctx, r.scope(st), from, reason, st.RoomName, turn)
	observe.Logger(ctx).Warn("escalating to teacher",
		slog.String("session_id", st.SessionID),
		slog.String("from", from),
		slog.Bool("first", first),
		slog.String("reason", observe.Truncate(reason)))

	if first {
		r.saveDecision(ctx, transcript.RoutingDecision{
			SessionID:       st.SessionID,
			TurnNumber:      turn,
			FromAgent:       from,
			ToAgent:         "teacher_escalation",
			QuestionSummary: reason,
		})
		if r.Escalator != nil {
			logger := observe.Logger(ctx)
			sessionID, roomName := st.SessionID, st.RoomName
			go func() {
				escCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
				defer cancel()
				if err := r.Escalator.Escalate(escCtx, sessionID, roomName, reason); err != nil {
					logger.Error("teacher escalation write failed",
						slog.String("session_id", sessionID),
						slog.String("error", err.Error()))
				}
			}()
		}
	}

	return Outcome{Transition: escalation.SpokenConfirmation, SpokenBy: from}
}

func (r *Router) scope(st *session.State) observe.SessionScope {
	return observe.SessionScope{SessionID: st.SessionID, UserID: st.StudentIdentity}
}

func (r *Router) emitDecision(ctx context.Context, env Env, to, summary, prev string, turn int, start time.Time) {
	observe.RoutingDecision(ctx, r.scope(env.State), observe.RoutingDecisionAttrs{
		FromAgent:       env.From.Name,
		ToAgent:         to,
		QuestionSummary: summary,
		PreviousSubject: prev,
		DecisionMS:      float64(time.Since(start).Microseconds()) / 1000,
		LastUserMessage: env.LastUserMessage,
		HistoryLength:   env.HistoryLength,
	})
}

func (r *Router) saveDecision(ctx context.Context, d transcript.RoutingDecision) {
	if r.Store == nil {
		return
	}
	logger := observe.Logger(ctx)
	go func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := r.Store.SaveRoutingDecision(saveCtx, d); err != nil {
			logger.Error("routing decision write failed",
				slog.String("session_id", d.SessionID),
				slog.String("error", err.Error()))
		}
	}()
}
