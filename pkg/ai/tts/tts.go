// Package tts defines the text-to-speech surface of the voice pipeline.
// Synthesis streams 10 ms audio frames so playback can start before the
// full utterance is rendered.
package tts

import (
	"context"

	"github.com/chriscow/tutor-agents-go/pkg/ai"
	"github.com/chriscow/tutor-agents-go/pkg/rtc"
)

// Classification sentinels re-exported so callers need only this package.
var (
	// ErrRecoverable marks failures worth one more attempt: overload,
	// transient quota, network trouble.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal marks failures a retry cannot fix: an unknown voice,
	// rejected input, an exhausted quota.
	ErrFatal = ai.ErrFatal
)

// SynthesizeRequest describes one utterance to render.
type SynthesizeRequest struct {
	Text     string
	Voice    string
	Language string
	Speed    float32
	Pitch    float32
}

// TTSCapabilities describes what a provider can do.
type TTSCapabilities struct {
	Streaming            bool
	SupportedLanguages   []string
	SupportedVoices      []string
	SampleRates          []int
	SupportsSSML         bool
	SupportsSpeedControl bool
	SupportsPitchControl bool
}

// TTS is implemented by every text-to-speech provider.
type TTS interface {
	// Synthesize renders text to audio. The returned channel delivers
	// frames as they are produced and closes when the utterance ends.
	Synthesize(ctx context.Context, req SynthesizeRequest) (<-chan rtc.AudioFrame, error)

	// Capabilities reports what the provider supports.
	Capabilities() TTSCapabilities
}
