// Package escalation brings a human teacher into a live room. It mints a
// pre-signed room join token with admin rights and records the escalation so
// the teacher portal can surface it.
package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/chriscow/tutor-agents-go/pkg/transcript"
)

// tokenTTL bounds how long the teacher join token stays valid.
const tokenTTL = 2 * time.Hour

// SpokenConfirmation is what the agent says to the student once the
// escalation has been filed.
const SpokenConfirmation = "I'd like to get your teacher involved to help with this. " +
	"I've sent a notification to your teacher - they'll be joining us shortly. " +
	"Please hold on for a moment."

// Escalator files teacher escalations.
type Escalator struct {
	apiKey    string
	apiSecret string
	store     transcript.Store
}

// New creates an Escalator that signs tokens with the given LiveKit API
// credentials and records events in the store.
func New(apiKey, apiSecret string, store transcript.Store) *Escalator {
	return &Escalator{apiKey: apiKey, apiSecret: apiSecret, store: store}
}

// TeacherToken mints a pre-signed join token for the teacher. The token
// grants room admin so the teacher can moderate the session.
func (e *Escalator) TeacherToken(roomName string) (string, error) {
	canPublish := true
	canSubscribe := true
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         roomName,
		RoomAdmin:    true,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}

	at := auth.NewAccessToken(e.apiKey, e.apiSecret).
		SetIdentity("teacher").
		SetName("Teacher").
		SetVideoGrant(grant).
		SetValidFor(tokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("escalation: sign teacher token: %w", err)
	}
	return token, nil
}

// Escalate mints the teacher token and writes the escalation event. The
// caller treats this as fire-and-forget; a store failure is returned for
// logging but must not affect the student's session.
func (e *Escalator) Escalate(ctx context.Context, sessionID, roomName, reason string) error {
	token, err := e.TeacherToken(roomName)
	if err != nil {
		return err
	}
	err = e.store.SaveEscalation(ctx, transcript.EscalationEvent{
		SessionID:    sessionID,
		RoomName:     roomName,
		Reason:       reason,
		TeacherToken: token,
		ExpiresAt:    time.Now().Add(tokenTTL),
	})
	if err != nil {
		return fmt.Errorf("escalation: store event: %w", err)
	}
	return nil
}
