package transcript

import (
	"encoding/json"
	"fmt"

	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/chriscow/tutor-agents-go/pkg/session"
)

// Topic is the data-channel topic the student UI subscribes to for live
// transcript updates.
const Topic = "transcript"

// Event is the JSON payload published per committed conversation item.
// Subject is null for items spoken before any routing happened.
type Event struct {
	Speaker   string  `json:"speaker"`
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	Subject   *string `json:"subject"`
	Turn      int     `json:"turn"`
	SessionID string  `json:"session_id"`
}

// NewEvent builds a transcript event from a committed turn. The orchestrator
// has no subject area, so its items carry a null subject.
func NewEvent(turn Turn) Event {
	ev := Event{
		Speaker:   turn.Speaker,
		Role:      turn.Role,
		Content:   turn.Content,
		Turn:      turn.TurnNumber,
		SessionID: turn.SessionID,
	}
	switch turn.Subject {
	case session.SubjectMath, session.SubjectHistory, session.SubjectEnglish:
		s := string(turn.Subject)
		ev.Subject = &s
	}
	return ev
}

// DataPublisher publishes raw payloads onto a room data channel by topic.
// *RoomPublisher implements it for a live room; tests use a recording fake.
type DataPublisher interface {
	PublishData(payload []byte, topic string) error
}

// RoomPublisher adapts a connected LiveKit room to [DataPublisher].
type RoomPublisher struct {
	Room *lksdk.Room
}

// PublishData publishes a reliable data packet with the given topic.
func (p *RoomPublisher) PublishData(payload []byte, topic string) error {
	return p.Room.LocalParticipant.PublishDataPacket(
		lksdk.UserData(payload),
		lksdk.WithDataPublishTopic(topic),
		lksdk.WithDataPublishReliable(true),
	)
}

// Publish serializes the turn as a transcript event and publishes it on the
// transcript topic.
func Publish(pub DataPublisher, turn Turn) error {
	payload, err := json.Marshal(NewEvent(turn))
	if err != nil {
		return fmt.Errorf("transcript: marshal event: %w", err)
	}
	if err := pub.PublishData(payload, Topic); err != nil {
		return fmt.Errorf("transcript: publish event: %w", err)
	}
	return nil
}
