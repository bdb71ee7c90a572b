package transcript

import (
	"encoding/json"
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/tutor-agents-go/pkg/session"
)

type recordingPublisher struct {
	payloads [][]byte
	topics   []string
}

func (r *recordingPublisher) PublishData(payload []byte, topic string) error {
	r.payloads = append(r.payloads, payload)
	r.topics = append(r.topics, topic)
	return nil
}

func TestPublishTranscriptEvent(t *testing.T) {
	is := is.New(t)

	pub := &recordingPublisher{}
	err := Publish(pub, Turn{
		SessionID:  "sess-1",
		TurnNumber: 3,
		Speaker:    "math",
		Role:       "assistant",
		Content:    "56",
		Subject:    session.SubjectMath,
	})
	is.NoErr(err)
	is.Equal(len(pub.payloads), 1)
	is.Equal(pub.topics[0], Topic)

	var ev Event
	is.NoErr(json.Unmarshal(pub.payloads[0], &ev))
	is.Equal(ev.Speaker, "math")
	is.Equal(ev.Role, "assistant")
	is.Equal(ev.Content, "56")
	is.Equal(*ev.Subject, "math")
	is.Equal(ev.Turn, 3)
	is.Equal(ev.SessionID, "sess-1")
}

func TestOrchestratorItemsCarryNullSubject(t *testing.T) {
	is := is.New(t)

	pub := &recordingPublisher{}
	err := Publish(pub, Turn{
		SessionID:  "sess-1",
		TurnNumber: 1,
		Speaker:    "orchestrator",
		Role:       "assistant",
		Content:    "Hi! What would you like to learn today?",
		Subject:    session.SubjectOrchestrator,
	})
	is.NoErr(err)

	// The wire format carries an explicit null, not a missing field.
	var raw map[string]json.RawMessage
	is.NoErr(json.Unmarshal(pub.payloads[0], &raw))
	is.Equal(string(raw["subject"]), "null")
}
