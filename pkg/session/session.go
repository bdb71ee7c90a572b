// Package session holds the per-room mutable state that survives agent
// handoffs. One State exists per live room; it is owned by a single voice
// session and mutated only from that session's goroutine.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Subject identifies which tutor currently owns the conversation.
type Subject string

const (
	SubjectOrchestrator Subject = "orchestrator"
	SubjectMath         Subject = "math"
	SubjectHistory      Subject = "history"
	SubjectEnglish      Subject = "english"
)

// State is the shared record carried across agent handoffs within a room.
//
// CurrentSubject is the routed-to subject; SpeakingAgent is the subject whose
// voice is currently on the wire. They differ during a handoff: the transition
// sentence ("Let me connect you with...") belongs to the outgoing agent even
// though routing has already flipped CurrentSubject.
type State struct {
	SessionID       string
	StudentIdentity string
	RoomName        string

	CurrentSubject   Subject
	SpeakingAgent    Subject
	PreviousSubjects []Subject

	TurnNumber        int
	SkipNextUserTurns int

	Escalated        bool
	EscalationReason string

	// LastUserInputAt is set when a user utterance commits and cleared when
	// the next assistant item computes its end-to-end latency.
	LastUserInputAt time.Time

	// PendingQuestion seeds a newly activated agent; consumed once on
	// activation.
	PendingQuestion string

	CreatedAt time.Time
}

// New creates a fresh State with a newly minted session id.
func New(studentIdentity, roomName string) *State {
	return NewWithID(uuid.NewString(), studentIdentity, roomName)
}

// NewWithID creates a State bound to an existing session id, used when a
// session is recovered from dispatch metadata after an out-of-process handoff.
func NewWithID(sessionID, studentIdentity, roomName string) *State {
	return &State{
		SessionID:       sessionID,
		StudentIdentity: studentIdentity,
		RoomName:        roomName,
		CurrentSubject:  SubjectOrchestrator,
		SpeakingAgent:   SubjectOrchestrator,
		CreatedAt:       time.Now(),
	}
}

// RouteTo switches the current subject, recording the old one for diagnostic
// tracing. Routing to the subject already active is a no-op so repeated tool
// calls do not pile up duplicate history entries.
func (s *State) RouteTo(subject Subject) {
	if subject == s.CurrentSubject {
		return
	}
	s.PreviousSubjects = append(s.PreviousSubjects, s.CurrentSubject)
	s.CurrentSubject = subject
}

// AdvanceTurn increments and returns the committed-item counter.
func (s *State) AdvanceTurn() int {
	s.TurnNumber++
	return s.TurnNumber
}

// ConsumeSkip reports whether the next user turn should be suppressed,
// decrementing the counter when it does. The counter never goes negative.
func (s *State) ConsumeSkip() bool {
	if s.SkipNextUserTurns <= 0 {
		return false
	}
	s.SkipNextUserTurns--
	return true
}

// Escalate latches the escalation flag. The latch is monotonic: once set it
// never clears for the life of the session, and only the first call records
// the reason.
func (s *State) Escalate(reason string) bool {
	if s.Escalated {
		return false
	}
	s.Escalated = true
	s.EscalationReason = reason
	return true
}

// SubjectsCovered returns the deduplicated set of subjects the session has
// visited, including the current one. Order follows first visit.
func (s *State) SubjectsCovered() []Subject {
	seen := make(map[Subject]bool, len(s.PreviousSubjects)+1)
	var out []Subject
	for _, sub := range append(append([]Subject{}, s.PreviousSubjects...), s.CurrentSubject) {
		if !seen[sub] {
			seen[sub] = true
			out = append(out, sub)
		}
	}
	return out
}

// Snapshot is the close-time summary persisted with the session row.
type Snapshot struct {
	SessionID       string    `json:"session_id"`
	StudentIdentity string    `json:"student_identity"`
	RoomName        string    `json:"room_name"`
	TotalTurns      int       `json:"total_turns"`
	Escalated       bool      `json:"escalated"`
	Subjects        []Subject `json:"subjects"`
	CreatedAt       time.Time `json:"created_at"`
}

// Snapshot captures the aggregate view of the session for persistence and the
// session.end span.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		SessionID:       s.SessionID,
		StudentIdentity: s.StudentIdentity,
		RoomName:        s.RoomName,
		TotalTurns:      s.TurnNumber,
		Escalated:       s.Escalated,
		Subjects:        s.SubjectsCovered(),
		CreatedAt:       s.CreatedAt,
	}
}
