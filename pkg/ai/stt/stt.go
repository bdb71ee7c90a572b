// Package stt defines the speech-to-text surface of the voice pipeline.
// A stream accepts 10 ms audio frames and emits transcription events;
// interim events may revise themselves, final events are settled text.
package stt

import (
	"context"

	"github.com/chriscow/tutor-agents-go/pkg/ai"
	"github.com/chriscow/tutor-agents-go/pkg/rtc"
)

// Classification sentinels re-exported so callers need only this package.
var (
	// ErrRecoverable marks failures worth one more attempt: network
	// timeouts, rate limits, upstream 5xx.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal marks failures a retry cannot fix: unsupported audio
	// formats, bad credentials.
	ErrFatal = ai.ErrFatal
)

// StreamConfig describes the audio a stream should expect.
type StreamConfig struct {
	SampleRate  int
	NumChannels int
	Lang        string
	MaxRetry    int
}

// SpeechEventType discriminates SpeechEvent.
type SpeechEventType int

const (
	// SpeechEventInterim is a partial transcript that later events revise.
	SpeechEventInterim SpeechEventType = iota
	// SpeechEventFinal is settled text that will not change.
	SpeechEventFinal
	// SpeechEventError reports a transcription failure.
	SpeechEventError
)

// SpeechEvent is one transcription result or error from a stream.
type SpeechEvent struct {
	Type      SpeechEventType
	Text      string // empty on error events
	IsFinal   bool
	Language  string // detected or configured language code
	Timestamp int64  // milliseconds since epoch
	Error     error  // set on error events only
}

// STTCapabilities describes what a provider can do.
type STTCapabilities struct {
	Streaming          bool
	InterimResults     bool
	SupportedLanguages []string
	SampleRates        []int
}

// STT is implemented by every speech-to-text provider.
type STT interface {
	// NewStream opens a transcription session.
	NewStream(ctx context.Context, cfg StreamConfig) (STTStream, error)

	// Capabilities reports what the provider supports.
	Capabilities() STTCapabilities
}

// STTStream is one live transcription session.
type STTStream interface {
	// Push submits an audio frame.
	Push(frame rtc.AudioFrame) error

	// Events returns the stream's transcription events. The channel closes
	// after the final event following CloseSend.
	Events() <-chan SpeechEvent

	// CloseSend ends the audio and flushes pending transcription.
	CloseSend() error
}
