// Package fake provides a deterministic text-to-speech provider that renders
// a quiet sine tone instead of speech. Frame sizes and timestamps match the
// real providers, so playback code can be tested without an API key.
package fake

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/chriscow/tutor-agents-go/pkg/ai/tts"
	"github.com/chriscow/tutor-agents-go/pkg/rtc"
)

const (
	sampleRate = 48000
	baseHz     = 440.0
	msPerChar  = 100 * time.Millisecond
)

// FakeTTS synthesizes a 440 Hz tone sized to the text: 100 ms per character,
// scaled by the requested speed, pitched by the requested pitch. Frames are
// emitted as fast as the consumer reads them, not paced to wall clock.
type FakeTTS struct{}

// NewFakeTTS creates a fake TTS provider.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{}
}

func (f *FakeTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	duration := time.Duration(len(req.Text)) * msPerChar
	if req.Speed > 0 {
		duration = time.Duration(float64(duration) / float64(req.Speed))
	}
	freq := baseHz
	if req.Pitch > 0 {
		freq *= float64(req.Pitch)
	}

	out := make(chan rtc.AudioFrame, 10)
	go func() {
		defer close(out)

		perChannel := sampleRate / 100
		frameCount := int(duration / (10 * time.Millisecond))
		for i := 0; i < frameCount; i++ {
			data := make([]byte, perChannel*2)
			for j := 0; j < perChannel; j++ {
				n := i*perChannel + j
				sample := 0.3 * math.Sin(2*math.Pi*freq*float64(n)/sampleRate)
				binary.LittleEndian.PutUint16(data[j*2:], uint16(int16(sample*32767)))
			}

			frame := rtc.AudioFrame{
				Data:              data,
				SampleRate:        sampleRate,
				SamplesPerChannel: perChannel,
				NumChannels:       1,
				Timestamp:         time.Duration(i) * 10 * time.Millisecond,
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *FakeTTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		Streaming:            true,
		SupportedLanguages:   []string{"en-US", "en-GB", "es-ES"},
		SupportedVoices:      []string{"fake-voice-1", "fake-voice-2"},
		SampleRates:          []int{16000, 48000},
		SupportsSSML:         false,
		SupportsSpeedControl: true,
		SupportsPitchControl: true,
	}
}
