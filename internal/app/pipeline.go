package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/livekit/protocol/livekit"

	"github.com/chriscow/tutor-agents-go/internal/observe"
	"github.com/chriscow/tutor-agents-go/internal/worker"
	"github.com/chriscow/tutor-agents-go/pkg/dispatch"
	"github.com/chriscow/tutor-agents-go/pkg/job"
	"github.com/chriscow/tutor-agents-go/pkg/session"
	"github.com/chriscow/tutor-agents-go/pkg/transcript"
	"github.com/chriscow/tutor-agents-go/pkg/voice"
)

// Session types as they appear on spans.
const (
	sessionTypePipeline = "pipeline"
	sessionTypeRealtime = "realtime"
)

// pipelineIdentity is the room identity of the pipeline worker's participant.
const pipelineIdentity = "tutor-agent"

// runPipelineJob is the orchestrator worker's per-job entry point: one
// pipeline session from room join to close.
func (r *Runtime) runPipelineJob(ctx context.Context, j worker.Job) {
	logger := r.Logger.With(slog.String("room", j.Room))
	md := dispatch.ParseMetadata(j.Metadata)

	var st *session.State
	recovered := false
	switch {
	case md.IsReturnFromEnglish() && md.SessionID() != "":
		st = session.NewWithID(md.SessionID(), j.Student, j.Room)
		recovered = true
	case md.IsReturnFromEnglish():
		logger.Warn("return dispatch without session id, minting a new session")
		st = session.New(j.Student, j.Room)
	default:
		st = session.New(j.Student, j.Room)
	}
	logger = logger.With(slog.String("session_id", st.SessionID))
	scope := observe.SessionScope{SessionID: st.SessionID, UserID: st.StudentIdentity}

	observe.SessionStart(ctx, scope, j.Room, sessionTypePipeline, recovered)
	if !recovered {
		sessionID, roomName, student := st.SessionID, st.RoomName, st.StudentIdentity
		go func() {
			createCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			if err := r.Store.CreateSession(createCtx, sessionID, roomName, student); err != nil {
				logger.Error("session row create failed", slog.String("error", err.Error()))
			}
		}()
	}

	roomCfg := job.RoomConfig{
		URL:       r.Cfg.LiveKitURL,
		APIKey:    r.Cfg.LiveKitAPIKey,
		APISecret: r.Cfg.LiveKitAPISecret,
		RoomName:  j.Room,
		Identity:  pipelineIdentity,
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

	if det := r.awaitVAD(ctx); det != nil {
		logger.Info("VAD model ready")
	}

	orch := r.Agents.Orchestrator()
	if recovered {
		// The return dispatch carries the student's new question; it seeds
		// the orchestrator's first reply and the committed item it produces
		// is suppressed like any other handoff seed.
		st.SkipNextUserTurns = 1
		orch.PendingQuestion = md[dispatch.KeyQuestion]
	}

	gate := voice.NewAudioGate()
	sess := voice.NewSession(voice.SessionConfig{
		State:     st,
		Agent:     orch,
		Router:    r.Router,
		Guardrail: r.Guard,
		TTS:       r.TTS,
		Gate:      gate,
		// TODO: publish synthesized frames onto a room audio track once an
		// opus encode path lands; frames are discarded until then.
	})
	sess.OnConversationItem(r.itemHandler(ctx, st, room, sessionTypePipeline, logger))

	go r.pumpRoomEvents(ctx, room, gate, sess, j.Student, logger)

	if err := sess.Activate(ctx, orch); err != nil {
		logger.Error("initial activation failed", slog.String("error", err.Error()))
	}

	select {
	case <-sess.Closed():
	case <-ctx.Done():
		sess.CloseGracefully()
		<-sess.Closed()
	}

	snap := st.Snapshot()
	observe.SessionEnd(ctx, scope, sessionTypePipeline, snap.TotalTurns, snap.Escalated, subjectStrings(snap.Subjects))
	closeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := r.Store.CloseSession(closeCtx, st.SessionID, snap); err != nil {
		logger.Error("session row close failed", slog.String("error", err.Error()))
	}
	logger.Info("pipeline session ended",
		slog.Int("turns", snap.TotalTurns),
		slog.Bool("escalated", snap.Escalated))
}

// itemHandler commits conversation items: span, live transcript publish, and
// the fire-and-forget turn write. It runs on the session goroutine, so the
// store write is spawned off.
func (r *Runtime) itemHandler(ctx context.Context, st *session.State, pub transcript.DataPublisher, sessionType string, logger *slog.Logger) func(voice.Item) {
	scope := observe.SessionScope{SessionID: st.SessionID, UserID: st.StudentIdentity}
	return func(item voice.Item) {
		if item.Role == "user" && st.ConsumeSkip() {
			return
		}
		turnNumber := st.AdvanceTurn()

		speaker := item.Speaker
		if speaker == "" {
			if item.Role == "user" {
				speaker = "student"
			} else {
				speaker = string(st.SpeakingAgent)
			}
		}

		e2e := -1.0
		if item.Role == "assistant" && !st.LastUserInputAt.IsZero() {
			e2e = float64(time.Since(st.LastUserInputAt).Microseconds()) / 1000
			st.LastUserInputAt = time.Time{}
		}

		observe.ConversationItem(ctx, scope, observe.ConversationItemAttrs{
			Subject:       string(st.CurrentSubject),
			Role:          item.Role,
			SessionType:   sessionType,
			Turn:          turnNumber,
			E2EResponseMS: e2e,
		})

		turn := transcript.Turn{
			SessionID:  st.SessionID,
			TurnNumber: turnNumber,
			Speaker:    speaker,
			Role:       item.Role,
			Content:    item.Content,
			Subject:    st.CurrentSubject,
		}
		if err := transcript.Publish(pub, turn); err != nil {
			logger.Warn("transcript publish failed", slog.String("error", err.Error()))
		}
		r.saveTurn(turn, logger)
	}
}

// saveTurn writes the turn off the speech path.
func (r *Runtime) saveTurn(turn transcript.Turn, logger *slog.Logger) {
	go func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := r.Store.SaveTurn(saveCtx, turn); err != nil {
			logger.Error("turn write failed",
				slog.String("session_id", turn.SessionID),
				slog.String("error", err.Error()))
		}
	}()
}

// pumpRoomEvents drives the session from room activity: the student's audio
// track feeds the microphone path, and the student leaving closes the
// session.
func (r *Runtime) pumpRoomEvents(ctx context.Context, room *job.Room, gate voice.AudioGate, sess *voice.Session, student string, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Closed():
			return
		case ev, ok := <-room.Events:
			if !ok {
				return
			}
			switch ev.Type {
			case job.EventTrackSubscribed:
				if ev.Remote == nil || ev.Participant == nil || ev.Participant.Identity != student {
					continue
				}
				if ev.Track == nil || ev.Track.Type != livekit.TrackType_AUDIO {
					continue
				}
				logger.Info("student audio track subscribed", slog.String("track", ev.Track.Sid))
				go r.micPump(ctx, ev.Remote, gate, sess, logger)
			case job.EventParticipantDisconnected:
				if ev.Participant != nil && ev.Participant.Identity == student {
					logger.Info("student left, closing session")
					sess.CloseGracefully()
				}
			}
		}
	}
}

func subjectStrings(subjects []session.Subject) []string {
	out := make([]string, len(subjects))
	for i, s := range subjects {
		out[i] = string(s)
	}
	return out
}
