// Package vad defines the voice activity detection surface. A detector
// watches the microphone frame stream and reports where speech starts and
// stops, which is what decides when an utterance is ready to transcribe.
package vad

import (
	"context"
	"time"

	"github.com/chriscow/tutor-agents-go/pkg/ai"
	"github.com/chriscow/tutor-agents-go/pkg/rtc"
)

// Classification sentinels re-exported so callers need only this package.
var (
	// ErrRecoverable marks failures worth one more attempt, such as
	// processing overload.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal marks failures a retry cannot fix, such as an unsupported
	// audio format or a missing model.
	ErrFatal = ai.ErrFatal
)

// VADEventType discriminates VADEvent.
type VADEventType int

const (
	VADEventSpeechStart VADEventType = iota
	VADEventSpeechEnd
	VADEventError
)

// VADEvent marks a speech boundary or a detector failure.
type VADEvent struct {
	Type      VADEventType
	Timestamp time.Time
	Error     error // set on error events only
}

// VADCapabilities describes a detector's operating envelope.
type VADCapabilities struct {
	SampleRates        []int
	MinSpeechDuration  time.Duration
	MinSilenceDuration time.Duration
	Sensitivity        float32 // 0.0 to 1.0
}

// VAD is implemented by every voice activity detector.
type VAD interface {
	// Detect consumes audio frames and emits speech boundary events. The
	// event channel closes when the frame channel closes or ctx ends.
	Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan VADEvent, error)

	// Capabilities reports the detector's operating envelope.
	Capabilities() VADCapabilities
}
