package job

import (
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/pion/webrtc/v4"
)

// EventType names a room callback surfaced through the event channel.
type EventType string

const (
	EventParticipantConnected    EventType = "participant_connected"
	EventParticipantDisconnected EventType = "participant_disconnected"
	EventTrackSubscribed         EventType = "track_subscribed"
	EventTrackUnsubscribed       EventType = "track_unsubscribed"
	EventTrackPublished          EventType = "track_published"
	EventTrackUnpublished        EventType = "track_unpublished"
	EventDataReceived            EventType = "data_received"
	EventRoomMetadataChanged     EventType = "room_metadata_changed"
)

// Event is one room callback, decoupled from the SDK callback goroutine so
// session code consumes room activity at its own pace. Fields beyond Type
// and Timestamp are populated per event kind.
type Event struct {
	Type      EventType
	Timestamp time.Time

	Participant *livekit.ParticipantInfo
	Track       *livekit.TrackInfo

	// Remote is the raw subscribed track on track events; the audio ingest
	// path reads RTP from it directly.
	Remote *webrtc.TrackRemote

	Data     []byte
	Topic    string // data channel topic on data events
	Metadata string // new metadata on metadata change events
}

// NewEvent stamps a new event of the given type with the current time.
func NewEvent(eventType EventType) *Event {
	return &Event{Type: eventType, Timestamp: time.Now()}
}

// WithParticipant attaches the participant the event concerns.
func (e *Event) WithParticipant(p *livekit.ParticipantInfo) *Event {
	e.Participant = p
	return e
}

// WithTrack attaches the track's published info.
func (e *Event) WithTrack(t *livekit.TrackInfo) *Event {
	e.Track = t
	return e
}

// WithRemoteTrack attaches the raw subscribed track.
func (e *Event) WithRemoteTrack(t *webrtc.TrackRemote) *Event {
	e.Remote = t
	return e
}

// WithData attaches a data packet payload.
func (e *Event) WithData(data []byte) *Event {
	e.Data = data
	return e
}

// WithTopic attaches the data packet's topic.
func (e *Event) WithTopic(topic string) *Event {
	e.Topic = topic
	return e
}

// WithMetadata attaches changed room metadata.
func (e *Event) WithMetadata(metadata string) *Event {
	e.Metadata = metadata
	return e
}
