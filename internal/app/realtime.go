package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/chriscow/tutor-agents-go/internal/observe"
	"github.com/chriscow/tutor-agents-go/internal/worker"
	"github.com/chriscow/tutor-agents-go/pkg/agent"
	"github.com/chriscow/tutor-agents-go/pkg/ai/llm"
	"github.com/chriscow/tutor-agents-go/pkg/ai/realtime"
	"github.com/chriscow/tutor-agents-go/pkg/dispatch"
	"github.com/chriscow/tutor-agents-go/pkg/job"
	"github.com/chriscow/tutor-agents-go/pkg/routing"
	"github.com/chriscow/tutor-agents-go/pkg/session"
	"github.com/chriscow/tutor-agents-go/pkg/transcript"
)

// englishIdentity is the room identity of the english worker's participant;
// it must differ from the pipeline worker's since both can briefly overlap in
// the same room during a handoff.
const englishIdentity = "english-tutor"

// realtimeReplyDelay holds the first reply back while the outgoing agent's
// transition sentence finishes playing.
const realtimeReplyDelay = 3 * time.Second

// realtimeCloseDelay is how long the session stays open after a handback
// dispatch so the model's farewell finishes playing.
const realtimeCloseDelay = 3 * time.Second

// runEnglishJob is the english worker's per-job entry point: one realtime
// session joined to a room the pipeline worker dispatched us into.
func (r *Runtime) runEnglishJob(ctx context.Context, j worker.Job) {
	logger := r.Logger.With(slog.String("room", j.Room))
	md := dispatch.ParseMetadata(j.Metadata)

	sessionID := md[dispatch.KeySession]
	if sessionID == "" {
		logger.Error("english dispatch without session metadata, refusing job")
		return
	}

	st := session.NewWithID(sessionID, j.Student, j.Room)
	st.RouteTo(session.SubjectEnglish)
	st.SpeakingAgent = session.SubjectEnglish
	logger = logger.With(slog.String("session_id", sessionID))
	scope := observe.SessionScope{SessionID: sessionID, UserID: j.Student}

	observe.SessionStart(ctx, scope, j.Room, sessionTypeRealtime, true)

	roomCfg := job.RoomConfig{
		URL:       r.Cfg.LiveKitURL,
		APIKey:    r.Cfg.LiveKitAPIKey,
		APISecret: r.Cfg.LiveKitAPISecret,
		RoomName:  j.Room,
		Identity:  englishIdentity,
	}
	room, err := job.NewRoom(ctx, roomCfg)
	if err != nil {
		logger.Error("room setup failed", slog.String("error", err.Error()))
		return
	}
	if err := room.Connect(roomCfg); err != nil {
		logger.Error("room connect failed", slog.String("error", err.Error()))
		return
	}
	defer room.Disconnect()

	rtSess, err := r.Realtime.Connect(ctx, realtime.SessionConfig{
		Voice:       agent.VoiceEnglish,
		Temperature: 0.8,
	})
	if err != nil {
		logger.Error("realtime connect failed", slog.String("error", err.Error()))
		return
	}
	defer rtSess.Close()

	if err := rtSess.SetInstructions(ctx, agent.EnglishPrompt); err != nil {
		logger.Warn("set instructions failed", slog.String("error", err.Error()))
	}
	if err := rtSess.ConfigureTools(ctx, routing.Definitions(agent.NameEnglish)); err != nil {
		logger.Warn("configure tools failed", slog.String("error", err.Error()))
	}
	observe.AgentActivated(ctx, scope, agent.NameEnglish)

	go watchStudentExit(ctx, room, rtSess, j.Student, logger)

	select {
	case <-time.After(realtimeReplyDelay):
	case <-ctx.Done():
		return
	}
	if err := rtSess.GenerateReply(ctx, md[dispatch.KeyQuestion]); err != nil {
		logger.Error("initial reply failed", slog.String("error", err.Error()))
	}

	handedBack := false
	ctxDone := ctx.Done()
loop:
	for {
		select {
		case <-ctxDone:
			ctxDone = nil
			rtSess.Close()
		case ev, ok := <-rtSess.Events():
			if !ok {
				break loop
			}
			switch ev.Type {
			case realtime.EventItemAdded:
				r.handleRealtimeItem(ctx, st, room, ev, logger)
			case realtime.EventToolCall:
				if r.handleRealtimeTool(ctx, st, rtSess, ev, logger) {
					handedBack = true
				}
			case realtime.EventError:
				logger.Error("realtime session error", slog.String("error", ev.Err.Error()))
			case realtime.EventClosed:
			}
		}
	}

	snap := st.Snapshot()
	observe.SessionEnd(ctx, scope, sessionTypeRealtime, snap.TotalTurns, snap.Escalated, subjectStrings(snap.Subjects))
	if !handedBack {
		// The session continues on the pipeline side after a handback, so
		// only a terminal exit stamps the session row.
		closeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := r.Store.CloseSession(closeCtx, st.SessionID, snap); err != nil {
			logger.Error("session row close failed", slog.String("error", err.Error()))
		}
	}
	logger.Info("realtime session ended",
		slog.Int("turns", snap.TotalTurns),
		slog.Bool("handed_back", handedBack))
}

// handleRealtimeItem commits one realtime conversation item. Assistant items
// get the post-hoc safety check; the audio has already played, so a flag is
// audited, never rewritten.
func (r *Runtime) handleRealtimeItem(ctx context.Context, st *session.State, pub transcript.DataPublisher, ev realtime.Event, logger *slog.Logger) {
	if strings.TrimSpace(ev.Text) == "" {
		return
	}
	turnNumber := st.AdvanceTurn()
	speaker := agent.NameEnglish
	if ev.Role == "user" {
		speaker = "student"
	}

	scope := observe.SessionScope{SessionID: st.SessionID, UserID: st.StudentIdentity}
	observe.ConversationItem(ctx, scope, observe.ConversationItemAttrs{
		Subject:     string(session.SubjectEnglish),
		Role:        ev.Role,
		SessionType: sessionTypeRealtime,
		Turn:        turnNumber,
		// The realtime model carries no user-input timestamp we can anchor
		// end-to-end latency on.
		E2EResponseMS: -1,
	})

	turn := transcript.Turn{
		SessionID:  st.SessionID,
		TurnNumber: turnNumber,
		Speaker:    speaker,
		Role:       ev.Role,
		Content:    ev.Text,
		Subject:    session.SubjectEnglish,
	}
	if err := transcript.Publish(pub, turn); err != nil {
		logger.Warn("transcript publish failed", slog.String("error", err.Error()))
	}
	r.saveTurn(turn, logger)

	if ev.Role == "assistant" {
		text := ev.Text
		go func() {
			checkCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			result := r.Guard.Check(checkCtx, text)
			if result.Flagged {
				logger.Warn("realtime reply flagged after playback",
					slog.Any("categories", result.Categories))
				r.Guard.Audit(checkCtx, st.SessionID, agent.NameEnglish, text, result)
			}
		}()
	}
}

// handleRealtimeTool executes a realtime tool call. The english agent's only
// tool is the handback; anything else is absorbed. Returns true when the
// orchestrator was successfully dispatched back into the room.
func (r *Runtime) handleRealtimeTool(ctx context.Context, st *session.State, rtSess realtime.Session, ev realtime.Event, logger *slog.Logger) bool {
	call, err := routing.ParseToolCall(llm.FunctionCall{Name: ev.Tool, Arguments: ev.Args})
	if err != nil {
		logger.Warn("rejecting malformed realtime tool call", slog.String("error", err.Error()))
		return false
	}
	back, ok := call.(routing.RouteBackToOrchestrator)
	if !ok {
		logger.Warn("absorbing unsupported realtime tool", slog.String("tool", ev.Tool))
		return false
	}

	start := time.Now()
	md := dispatch.Metadata{
		dispatch.KeyReturnFromEnglish: st.SessionID,
		dispatch.KeySubject:           string(session.SubjectEnglish),
	}
	if back.Reason != "" {
		md[dispatch.KeyQuestion] = back.Reason
	}
	if err := r.Dispatch.Dispatch(ctx, dispatch.WorkerOrchestrator, st.RoomName, md); err != nil {
		logger.Error("orchestrator dispatch failed, staying in session",
			slog.String("error", err.Error()))
		return false
	}

	turnNumber := st.AdvanceTurn()
	scope := observe.SessionScope{SessionID: st.SessionID, UserID: st.StudentIdentity}
	observe.RoutingDecision(ctx, scope, observe.RoutingDecisionAttrs{
		FromAgent:       agent.NameEnglish,
		ToAgent:         agent.NameOrchestrator,
		QuestionSummary: back.Reason,
		PreviousSubject: string(session.SubjectEnglish),
		DecisionMS:      float64(time.Since(start).Microseconds()) / 1000,
	})
	decision := transcript.RoutingDecision{
		SessionID:       st.SessionID,
		TurnNumber:      turnNumber,
		FromAgent:       agent.NameEnglish,
		ToAgent:         agent.NameOrchestrator,
		QuestionSummary: back.Reason,
	}
	go func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := r.Store.SaveRoutingDecision(saveCtx, decision); err != nil {
			logger.Error("routing decision write failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("handing control back to orchestrator",
		slog.String("reason", observe.Truncate(back.Reason)))

	// The model's goodbye is still playing; close after it finishes so the
	// pipeline worker can take over cleanly.
	time.AfterFunc(realtimeCloseDelay, func() {
		if err := rtSess.Close(); err != nil {
			logger.Warn("realtime close failed", slog.String("error", err.Error()))
		}
	})
	return true
}

// watchStudentExit closes the realtime session when the student leaves.
func watchStudentExit(ctx context.Context, room *job.Room, rtSess realtime.Session, student string, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-room.Events:
			if !ok {
				return
			}
			if ev.Type != job.EventParticipantDisconnected {
				continue
			}
			if ev.Participant != nil && student != "" && ev.Participant.Identity == student {
				logger.Info("student left, closing realtime session")
				rtSess.Close()
				return
			}
		}
	}
}
