// Package fake provides a scripted speech-to-text provider. Every stream
// transcribes to a configured sentence, revealed word by word through
// interim events, so pipeline tests can assert on exact text without audio.
package fake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/tutor-agents-go/pkg/ai/stt"
	"github.com/chriscow/tutor-agents-go/pkg/rtc"
)

// interimEvery is the number of pushed frames between interim events.
const interimEvery = 10

const defaultTranscript = "I would like to practice my spoken English."

// FakeSTT hands out streams that transcribe every utterance to the same text.
type FakeSTT struct {
	transcript string
}

// NewFakeSTT returns a provider whose streams always produce transcript.
// An empty transcript falls back to a stock sentence.
func NewFakeSTT(transcript string) *FakeSTT {
	if transcript == "" {
		transcript = defaultTranscript
	}
	return &FakeSTT{transcript: transcript}
}

func (f *FakeSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	return &FakeSTTStream{
		ctx:        ctx,
		words:      strings.Fields(f.transcript),
		transcript: f.transcript,
		events:     make(chan stt.SpeechEvent, 10),
	}, nil
}

func (f *FakeSTT) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{
		Streaming:          true,
		InterimResults:     true,
		SupportedLanguages: []string{"en-US", "en-GB", "es-ES"},
		SampleRates:        []int{16000, 48000},
	}
}

// FakeSTTStream reveals the configured transcript one word per interim event
// and emits the full text as the final event on CloseSend.
type FakeSTTStream struct {
	ctx        context.Context
	words      []string
	transcript string
	events     chan stt.SpeechEvent

	mu     sync.Mutex
	frames int
	closed bool
}

var errStreamClosed = errors.New("stt stream is closed")

func (s *FakeSTTStream) Push(frame rtc.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}

	s.frames++
	if s.frames%interimEvery != 0 {
		return nil
	}

	shown := min(s.frames/interimEvery, len(s.words))
	ev := stt.SpeechEvent{
		Type:      stt.SpeechEventInterim,
		Text:      strings.Join(s.words[:shown], " "),
		Language:  "en-US",
		Timestamp: time.Now().UnixMilli(),
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *FakeSTTStream) Events() <-chan stt.SpeechEvent {
	return s.events
}

// CloseSend emits the final transcript and closes the event channel.
// A second close is a no-op.
func (s *FakeSTTStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	defer close(s.events)

	ev := stt.SpeechEvent{
		Type:      stt.SpeechEventFinal,
		Text:      s.transcript,
		IsFinal:   true,
		Language:  "en-US",
		Timestamp: time.Now().UnixMilli(),
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}
