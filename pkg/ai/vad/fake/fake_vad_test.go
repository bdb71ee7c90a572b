package fake

import (
	"context"
	"testing"
	"time"

	"github.com/chriscow/tutor-agents-go/pkg/ai/vad"
	"github.com/chriscow/tutor-agents-go/pkg/rtc"
)

func frame(loud bool) rtc.AudioFrame {
	data := make([]byte, 320)
	if loud {
		for i := range data {
			data[i] = 0x40
		}
	}
	return rtc.AudioFrame{
		Data:              data,
		SampleRate:        16000,
		SamplesPerChannel: 160,
		NumChannels:       1,
	}
}

// feed pushes loud then quiet frames and closes the channel.
func feed(frames chan<- rtc.AudioFrame, loud, quiet int) {
	for i := 0; i < loud; i++ {
		frames <- frame(true)
	}
	for i := 0; i < quiet; i++ {
		frames <- frame(false)
	}
	close(frames)
}

func collect(t *testing.T, events <-chan vad.VADEvent) []vad.VADEvent {
	t.Helper()
	var out []vad.VADEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out collecting VAD events")
		}
	}
}

func TestFakeVAD_Capabilities(t *testing.T) {
	caps := NewFakeVAD(0.5).Capabilities()
	if len(caps.SampleRates) == 0 {
		t.Error("no sample rates reported")
	}
	if caps.MinSpeechDuration <= 0 || caps.MinSilenceDuration <= 0 {
		t.Errorf("capabilities = %+v, want positive durations", caps)
	}
	if caps.Sensitivity != 0.5 {
		t.Errorf("sensitivity = %f, want the configured 0.5", caps.Sensitivity)
	}
}

func TestFakeVAD_DefaultSensitivity(t *testing.T) {
	if got := NewFakeVAD(0).Capabilities().Sensitivity; got != DefaultSensitivity {
		t.Errorf("sensitivity = %f, want default %f", got, float32(DefaultSensitivity))
	}
}

func TestFakeVAD_SpeechRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frames := make(chan rtc.AudioFrame, 32)
	feed(frames, openAfter+2, closeAfter+2)

	events, err := NewFakeVAD(0.5).Detect(ctx, frames)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	got := collect(t, events)
	if len(got) != 2 {
		t.Fatalf("got %d events %v, want start then end", len(got), got)
	}
	if got[0].Type != vad.VADEventSpeechStart {
		t.Errorf("first event = %v, want speech start", got[0].Type)
	}
	if got[1].Type != vad.VADEventSpeechEnd {
		t.Errorf("second event = %v, want speech end", got[1].Type)
	}
	if got[0].Timestamp.After(got[1].Timestamp) {
		t.Error("speech start timestamped after speech end")
	}
}

func TestFakeVAD_SilenceProducesNothing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frames := make(chan rtc.AudioFrame, 32)
	feed(frames, 0, 30)

	events, err := NewFakeVAD(0.5).Detect(ctx, frames)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if got := collect(t, events); len(got) != 0 {
		t.Errorf("silence produced events: %v", got)
	}
}

func TestFakeVAD_BriefNoiseIgnored(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Fewer loud frames than the hysteresis needs to open.
	frames := make(chan rtc.AudioFrame, 32)
	feed(frames, openAfter-1, 10)

	events, err := NewFakeVAD(0.5).Detect(ctx, frames)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if got := collect(t, events); len(got) != 0 {
		t.Errorf("sub-threshold noise produced events: %v", got)
	}
}

func TestFakeVAD_CloseMidSpeechEmitsEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frames := make(chan rtc.AudioFrame, 32)
	feed(frames, openAfter+5, 0)

	events, err := NewFakeVAD(0.5).Detect(ctx, frames)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	got := collect(t, events)
	if len(got) != 2 || got[1].Type != vad.VADEventSpeechEnd {
		t.Fatalf("got %v, want start then trailing end", got)
	}
}

func TestFakeVAD_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	frames := make(chan rtc.AudioFrame)
	events, err := NewFakeVAD(0.5).Detect(ctx, frames)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	cancel()
	close(frames)

	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("event channel did not close after cancellation")
		}
	}
}
