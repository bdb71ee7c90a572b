// Package job wraps the LiveKit room connection a worker job runs against
// and surfaces room activity as typed events.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
)

// Room wraps the LiveKit room connection for one tutoring job and surfaces
// room activity as events. The media plane (track decode and playback) stays
// outside; the runtime consumes participant, track, and data events.
type Room struct {
	// Events channel for room events
	Events chan *Event

	room *lksdk.Room

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	connected    bool
	eventsClosed bool

	participants map[string]*livekit.ParticipantInfo
}

// RoomConfig contains configuration for connecting to a room. Agents connect
// with API credentials; a pre-signed token is accepted for tooling.
type RoomConfig struct {
	// URL of the LiveKit server
	URL string

	// APIKey and APISecret authenticate the agent participant.
	APIKey    string
	APISecret string

	// Token is an alternative to API credentials.
	Token string

	// RoomName to join
	RoomName string

	// Identity of the agent participant. Defaults to "tutor-agent".
	Identity string

	// Buffer size for events channel
	EventBufferSize int
}

// NewRoom creates a new Room wrapper with the given configuration.
func NewRoom(ctx context.Context, config RoomConfig) (*Room, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if config.Token == "" && (config.APIKey == "" || config.APISecret == "") {
		return nil, fmt.Errorf("token or API credentials are required")
	}
	if config.RoomName == "" {
		return nil, fmt.Errorf("room name is required")
	}

	bufferSize := config.EventBufferSize
	if bufferSize == 0 {
		bufferSize = 100
	}

	roomCtx, cancel := context.WithCancel(ctx)

	r := &Room{
		Events:       make(chan *Event, bufferSize),
		ctx:          roomCtx,
		cancel:       cancel,
		connected:    false,
		eventsClosed: false,
		participants: make(map[string]*livekit.ParticipantInfo),
	}

	return r, nil
}

// Connect establishes connection to the LiveKit room.
func (r *Room) Connect(config RoomConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connected {
		return fmt.Errorf("room is already connected")
	}

	callback := &lksdk.RoomCallback{
		OnParticipantConnected:    r.onParticipantConnected,
		OnParticipantDisconnected: r.onParticipantDisconnected,
		OnRoomMetadataChanged:     r.onRoomMetadataChanged,
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed:   r.onTrackSubscribed,
			OnTrackUnsubscribed: r.onTrackUnsubscribed,
			OnTrackPublished:    r.onTrackPublished,
			OnTrackUnpublished:  r.onTrackUnpublished,
			OnDataPacket:        r.onDataPacket,
		},
	}

	var (
		room *lksdk.Room
		err  error
	)
	if config.Token != "" {
		room, err = lksdk.ConnectToRoomWithToken(config.URL, config.Token, callback)
	} else {
		identity := config.Identity
		if identity == "" {
			identity = "tutor-agent"
		}
		room, err = lksdk.ConnectToRoom(config.URL, lksdk.ConnectInfo{
			APIKey:              config.APIKey,
			APISecret:           config.APISecret,
			RoomName:            config.RoomName,
			ParticipantIdentity: identity,
		}, callback)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to room: %w", err)
	}

	r.room = room
	r.connected = true

	slog.Info("Connected to LiveKit room",
		slog.String("room_name", config.RoomName),
		slog.String("url", config.URL))

	return nil
}

// Disconnect closes the room connection and cleans up resources.
func (r *Room) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Always cancel context
	r.cancel()

	if r.connected {
		r.connected = false

		if r.room != nil {
			r.room.Disconnect()
		}

		slog.Info("Disconnected from LiveKit room")
	}

	// Close the events channel (only if not already closed)
	if !r.eventsClosed {
		close(r.Events)
		r.eventsClosed = true
	}

	return nil
}

// IsConnected returns true if the room is currently connected.
func (r *Room) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// LocalParticipant returns the local participant.
func (r *Room) LocalParticipant() *lksdk.LocalParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.room == nil {
		return nil
	}

	return r.room.LocalParticipant
}

// PublishData publishes a reliable data packet on the room data channel
// under the given topic. The transcript publisher rides on this.
func (r *Room) PublishData(payload []byte, topic string) error {
	r.mu.RLock()
	room := r.room
	connected := r.connected
	r.mu.RUnlock()

	if !connected || room == nil {
		return fmt.Errorf("room not connected")
	}
	return room.LocalParticipant.PublishDataPacket(
		lksdk.UserData(payload),
		lksdk.WithDataPublishTopic(topic),
		lksdk.WithDataPublishReliable(true),
	)
}

// GetParticipants returns a copy of all participants in the room.
func (r *Room) GetParticipants() map[string]*livekit.ParticipantInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*livekit.ParticipantInfo)
	for k, v := range r.participants {
		result[k] = v
	}
	return result
}

// Event handlers

func (r *Room) onParticipantConnected(participant *lksdk.RemoteParticipant) {
	participantInfo := &livekit.ParticipantInfo{
		Sid:      participant.SID(),
		Identity: participant.Identity(),
		State:    livekit.ParticipantInfo_ACTIVE,
	}

	r.mu.Lock()
	r.participants[participant.Identity()] = participantInfo
	r.mu.Unlock()

	event := NewEvent(EventParticipantConnected).WithParticipant(participantInfo)
	r.sendEvent(event)

	slog.Info("Participant connected",
		slog.String("identity", participant.Identity()),
		slog.String("sid", participant.SID()))
}

func (r *Room) onParticipantDisconnected(participant *lksdk.RemoteParticipant) {
	participantInfo := &livekit.ParticipantInfo{
		Sid:      participant.SID(),
		Identity: participant.Identity(),
		State:    livekit.ParticipantInfo_DISCONNECTED,
	}

	r.mu.Lock()
	delete(r.participants, participant.Identity())
	r.mu.Unlock()

	event := NewEvent(EventParticipantDisconnected).WithParticipant(participantInfo)
	r.sendEvent(event)

	slog.Info("Participant disconnected",
		slog.String("identity", participant.Identity()),
		slog.String("sid", participant.SID()))
}

func (r *Room) onTrackSubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	participantInfo := &livekit.ParticipantInfo{
		Sid:      participant.SID(),
		Identity: participant.Identity(),
		State:    livekit.ParticipantInfo_ACTIVE,
	}

	trackInfo := &livekit.TrackInfo{
		Sid:  publication.SID(),
		Name: publication.Name(),
		Type: publication.Kind().ProtoType(),
	}

	event := NewEvent(EventTrackSubscribed).
		WithParticipant(participantInfo).
		WithTrack(trackInfo).
		WithRemoteTrack(track)
	r.sendEvent(event)

	slog.Info("Track subscribed",
		slog.String("participant", participant.Identity()),
		slog.String("track_sid", publication.SID()),
		slog.String("track_type", publication.Kind().String()))
}

func (r *Room) onTrackUnsubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	participantInfo := &livekit.ParticipantInfo{
		Sid:      participant.SID(),
		Identity: participant.Identity(),
		State:    livekit.ParticipantInfo_ACTIVE,
	}

	trackInfo := &livekit.TrackInfo{
		Sid:  publication.SID(),
		Name: publication.Name(),
		Type: publication.Kind().ProtoType(),
	}

	event := NewEvent(EventTrackUnsubscribed).
		WithParticipant(participantInfo).
		WithTrack(trackInfo)
	r.sendEvent(event)
}

func (r *Room) onTrackPublished(publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	participantInfo := &livekit.ParticipantInfo{
		Sid:      participant.SID(),
		Identity: participant.Identity(),
		State:    livekit.ParticipantInfo_ACTIVE,
	}

	trackInfo := &livekit.TrackInfo{
		Sid:  publication.SID(),
		Name: publication.Name(),
		Type: publication.Kind().ProtoType(),
	}

	event := NewEvent(EventTrackPublished).
		WithParticipant(participantInfo).
		WithTrack(trackInfo)
	r.sendEvent(event)
}

func (r *Room) onTrackUnpublished(publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	participantInfo := &livekit.ParticipantInfo{
		Sid:      participant.SID(),
		Identity: participant.Identity(),
		State:    livekit.ParticipantInfo_ACTIVE,
	}

	trackInfo := &livekit.TrackInfo{
		Sid:  publication.SID(),
		Name: publication.Name(),
		Type: publication.Kind().ProtoType(),
	}

	event := NewEvent(EventTrackUnpublished).
		WithParticipant(participantInfo).
		WithTrack(trackInfo)
	r.sendEvent(event)
}

func (r *Room) onDataPacket(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
	user, ok := data.(*lksdk.UserDataPacket)
	if !ok {
		return
	}

	event := NewEvent(EventDataReceived).
		WithData(user.Payload).
		WithTopic(user.Topic)
	if params.SenderIdentity != "" {
		event = event.WithParticipant(&livekit.ParticipantInfo{
			Identity: params.SenderIdentity,
			State:    livekit.ParticipantInfo_ACTIVE,
		})
	}
	r.sendEvent(event)
}

func (r *Room) onRoomMetadataChanged(metadata string) {
	event := NewEvent(EventRoomMetadataChanged).
		WithMetadata(metadata)
	r.sendEvent(event)
}

// sendEvent sends an event to the Events channel if the room is still connected.
func (r *Room) sendEvent(event *Event) {
	r.mu.RLock()
	closed := r.eventsClosed
	r.mu.RUnlock()

	if closed {
		return // Don't send events to closed channel
	}

	select {
	case r.Events <- event:
		// Event sent successfully
	case <-r.ctx.Done():
		// Room is disconnected, don't send event
		return
	default:
		// Channel is full, log warning and drop event
		slog.Warn("Events channel is full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}
