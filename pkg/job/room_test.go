package job

import (
	"context"
	"testing"
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/matryer/is"
)

func testRoom(t *testing.T, cfg RoomConfig) *Room {
	t.Helper()
	room, err := NewRoom(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	return room
}

func TestNewRoom_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  RoomConfig
		wantErr bool
	}{
		{"token auth", RoomConfig{URL: "wss://rtc.example.com", Token: "tok", RoomName: "lesson-1"}, false},
		{"api credential auth", RoomConfig{URL: "wss://rtc.example.com", APIKey: "key", APISecret: "secret", RoomName: "lesson-1", Identity: "tutor-agent"}, false},
		{"missing url", RoomConfig{Token: "tok", RoomName: "lesson-1"}, true},
		{"missing credentials", RoomConfig{URL: "wss://rtc.example.com", RoomName: "lesson-1"}, true},
		{"incomplete credentials", RoomConfig{URL: "wss://rtc.example.com", APIKey: "key", RoomName: "lesson-1"}, true},
		{"missing room name", RoomConfig{URL: "wss://rtc.example.com", Token: "tok"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := NewRoom(context.Background(), tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("config accepted, want validation error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRoom: %v", err)
			}
			defer room.Disconnect()

			if room.Events == nil {
				t.Error("events channel not initialized")
			}
			if room.IsConnected() {
				t.Error("room claims connected before Connect")
			}
		})
	}
}

func TestEventBuilders(t *testing.T) {
	is := is.New(t)

	participant := &livekit.ParticipantInfo{Sid: "PA_1", Identity: "student-1"}
	track := &livekit.TrackInfo{Sid: "TR_1", Type: livekit.TrackType_AUDIO}

	ev := NewEvent(EventTrackSubscribed).
		WithParticipant(participant).
		WithTrack(track).
		WithData([]byte(`{"kind":"turn"}`)).
		WithTopic("transcript").
		WithMetadata("phase=drill")

	is.Equal(ev.Type, EventTrackSubscribed)
	is.True(!ev.Timestamp.IsZero()) // events are stamped at creation
	is.Equal(ev.Participant, participant)
	is.Equal(ev.Track, track)
	is.Equal(string(ev.Data), `{"kind":"turn"}`)
	is.Equal(ev.Topic, "transcript")
	is.Equal(ev.Metadata, "phase=drill")
}

func TestRoom_FullEventChannelDrops(t *testing.T) {
	room := testRoom(t, RoomConfig{
		URL:             "wss://rtc.example.com",
		Token:           "tok",
		RoomName:        "lesson-1",
		EventBufferSize: 2,
	})
	defer room.Disconnect()

	// Third event exceeds the buffer and is dropped, never queued.
	for i := 0; i < 3; i++ {
		room.sendEvent(NewEvent(EventParticipantConnected))
	}

	received := 0
drain:
	for {
		select {
		case <-room.Events:
			received++
		case <-time.After(50 * time.Millisecond):
			break drain
		}
	}
	if received != 2 {
		t.Errorf("received %d events, want 2 with the overflow dropped", received)
	}
}

func TestRoom_DisconnectClosesEvents(t *testing.T) {
	room := testRoom(t, RoomConfig{URL: "wss://rtc.example.com", Token: "tok", RoomName: "lesson-1"})

	room.Disconnect()

	select {
	case _, ok := <-room.Events:
		if ok {
			t.Fatal("got an event after disconnect, want closed channel")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("events channel not closed by Disconnect")
	}

	// A second disconnect must not panic on the already closed channel,
	// and late callbacks must turn into no-ops.
	room.Disconnect()
	room.sendEvent(NewEvent(EventDataReceived))
}

func TestRoom_GetParticipantsCopies(t *testing.T) {
	is := is.New(t)

	room := testRoom(t, RoomConfig{URL: "wss://rtc.example.com", Token: "tok", RoomName: "lesson-1"})
	defer room.Disconnect()

	is.Equal(len(room.GetParticipants()), 0) // empty before anyone joins

	room.mu.Lock()
	room.participants["student-1"] = &livekit.ParticipantInfo{Sid: "PA_1", Identity: "student-1"}
	room.mu.Unlock()

	got := room.GetParticipants()
	is.Equal(len(got), 1)
	is.Equal(got["student-1"].Identity, "student-1")

	// Mutating the returned map must not touch the room's own state.
	delete(got, "student-1")
	is.Equal(len(room.GetParticipants()), 1)
}
