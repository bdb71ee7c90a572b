// Package fake provides a content-keyed voice activity detector. A frame
// with any non-zero sample counts as speech, so tests script speech and
// silence through the bytes they feed in rather than through timing or
// random draws.
package fake

import (
	"context"
	"time"

	"github.com/chriscow/tutor-agents-go/pkg/ai/vad"
	"github.com/chriscow/tutor-agents-go/pkg/rtc"
)

const (
	// DefaultSensitivity is reported when the caller passes no threshold.
	DefaultSensitivity = 0.3

	// openAfter and closeAfter are the consecutive active or quiet frames
	// needed to flip the speaking state, mirroring a real detector's
	// hysteresis at 10 ms per frame.
	openAfter  = 3
	closeAfter = 10
)

// FakeVAD flags speech whenever incoming frames carry non-zero samples.
type FakeVAD struct {
	sensitivity float32
}

// NewFakeVAD creates a fake VAD. sensitivity is only surfaced through
// Capabilities; detection itself is keyed on frame content.
func NewFakeVAD(sensitivity float32) *FakeVAD {
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}
	return &FakeVAD{sensitivity: sensitivity}
}

// Detect emits SpeechStart after three consecutive non-silent frames and
// SpeechEnd after ten silent ones. Closing the frame channel mid-speech
// emits a trailing SpeechEnd before the event channel closes.
func (f *FakeVAD) Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan vad.VADEvent, error) {
	events := make(chan vad.VADEvent, 10)

	go func() {
		defer close(events)

		speaking := false
		active, quiet := 0, 0

		emit := func(t vad.VADEventType) bool {
			select {
			case events <- vad.VADEvent{Type: t, Timestamp: time.Now()}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case frame, ok := <-frames:
				if !ok {
					if speaking {
						emit(vad.VADEventSpeechEnd)
					}
					return
				}

				if hasSignal(frame.Data) {
					active++
					quiet = 0
				} else {
					quiet++
					active = 0
				}

				switch {
				case !speaking && active >= openAfter:
					speaking = true
					if !emit(vad.VADEventSpeechStart) {
						return
					}
				case speaking && quiet >= closeAfter:
					speaking = false
					if !emit(vad.VADEventSpeechEnd) {
						return
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func hasSignal(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return true
		}
	}
	return false
}

func (f *FakeVAD) Capabilities() vad.VADCapabilities {
	return vad.VADCapabilities{
		SampleRates:        []int{16000, 48000},
		MinSpeechDuration:  100 * time.Millisecond,
		MinSilenceDuration: 200 * time.Millisecond,
		Sensitivity:        f.sensitivity,
	}
}
