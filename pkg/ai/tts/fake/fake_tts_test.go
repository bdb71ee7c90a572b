package fake

import (
	"context"
	"testing"
	"time"

	"github.com/chriscow/tutor-agents-go/pkg/ai/tts"
)

func TestFakeTTS_Capabilities(t *testing.T) {
	caps := NewFakeTTS().Capabilities()
	if !caps.Streaming {
		t.Error("fake TTS should stream")
	}
	if len(caps.SupportedLanguages) == 0 || len(caps.SupportedVoices) == 0 || len(caps.SampleRates) == 0 {
		t.Errorf("capabilities missing enumerations: %+v", caps)
	}
	if !caps.SupportsSpeedControl || !caps.SupportsPitchControl {
		t.Errorf("capabilities = %+v, want speed and pitch control", caps)
	}
}

func TestFakeTTS_Synthesize(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frames, err := NewFakeTTS().Synthesize(ctx, tts.SynthesizeRequest{
		Text:  "Go!",
		Voice: "fake-voice-1",
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	count := 0
	silent := true
	for frame := range frames {
		if frame.SampleRate != 48000 || frame.NumChannels != 1 || frame.SamplesPerChannel != 480 {
			t.Fatalf("frame shape = %d Hz x%d, %d samples", frame.SampleRate, frame.NumChannels, frame.SamplesPerChannel)
		}
		if len(frame.Data) != 960 {
			t.Fatalf("frame data = %d bytes, want 960", len(frame.Data))
		}
		if want := time.Duration(count) * 10 * time.Millisecond; frame.Timestamp != want {
			t.Errorf("frame %d timestamp = %v, want %v", count, frame.Timestamp, want)
		}
		for _, b := range frame.Data {
			if b != 0 {
				silent = false
				break
			}
		}
		count++
	}

	// 3 characters at 100 ms each is 30 frames of 10 ms.
	if count != 30 {
		t.Errorf("got %d frames, want 30", count)
	}
	if silent {
		t.Error("synthesized audio is all zeros")
	}
}

func TestFakeTTS_SpeedShortensAudio(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frames, err := NewFakeTTS().Synthesize(ctx, tts.SynthesizeRequest{Text: "Go!", Speed: 2.0})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	count := 0
	for range frames {
		count++
	}
	if count != 15 {
		t.Errorf("got %d frames at double speed, want 15", count)
	}
}

func TestFakeTTS_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames, err := NewFakeTTS().Synthesize(ctx, tts.SynthesizeRequest{
		Text: "a much longer sentence that would produce several seconds of tone",
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	count := 0
	for range frames {
		count++
		if count == 3 {
			cancel()
		}
	}

	// The producer may finish filling its buffer before it notices the
	// cancellation, so allow the buffered slack but nothing close to the
	// several hundred frames of a full run.
	if count > 20 {
		t.Errorf("drained %d frames after cancellation", count)
	}
}

func TestFakeTTS_EmptyText(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frames, err := NewFakeTTS().Synthesize(ctx, tts.SynthesizeRequest{Text: ""})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	count := 0
	for range frames {
		count++
	}
	if count != 0 {
		t.Errorf("empty text produced %d frames", count)
	}
}
