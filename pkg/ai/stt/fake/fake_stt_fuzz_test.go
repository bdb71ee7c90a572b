package fake

import (
	"context"
	"testing"
	"time"

	"github.com/chriscow/tutor-agents-go/pkg/ai/stt"
	"github.com/chriscow/tutor-agents-go/pkg/rtc"
)

// FuzzFakeSTTPayloads pushes arbitrary sample data through a stream and
// checks the event contract holds: only valid event types, a final event
// carrying the full transcript, and no hangs while draining.
func FuzzFakeSTTPayloads(f *testing.F) {
	f.Add([]byte{0x00, 0x01, 0x02, 0x03}, uint16(1), uint32(16000))
	f.Add(make([]byte, 320), uint16(1), uint32(16000))
	f.Add(make([]byte, 1920), uint16(2), uint32(48000))
	f.Add([]byte{}, uint16(1), uint32(16000))

	f.Fuzz(func(t *testing.T, data []byte, channels uint16, sampleRate uint32) {
		if channels < 1 || channels > 2 {
			return
		}
		if sampleRate != 16000 && sampleRate != 48000 {
			return
		}

		const transcript = "fuzzed utterance"
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		stream, err := NewFakeSTT(transcript).NewStream(ctx, stt.StreamConfig{
			SampleRate:  int(sampleRate),
			NumChannels: int(channels),
			Lang:        "en-US",
		})
		if err != nil {
			t.Fatalf("NewStream: %v", err)
		}

		// Fill a correctly sized 10 ms frame with the fuzzed bytes.
		payload := make([]byte, int(sampleRate)/100*int(channels)*2)
		if len(data) > 0 {
			for i := range payload {
				payload[i] = data[i%len(data)]
			}
		}
		frame := rtc.AudioFrame{
			Data:              payload,
			SampleRate:        int(sampleRate),
			SamplesPerChannel: int(sampleRate) / 100,
			NumChannels:       int(channels),
		}

		for i := 0; i < interimEvery; i++ {
			if err := stream.Push(frame); err != nil {
				t.Fatalf("Push %d: %v", i, err)
			}
		}
		if err := stream.CloseSend(); err != nil {
			t.Fatalf("CloseSend: %v", err)
		}

		var sawFinal bool
		timeout := time.After(500 * time.Millisecond)
		for {
			select {
			case ev, ok := <-stream.Events():
				if !ok {
					if !sawFinal {
						t.Error("stream closed without a final event")
					}
					return
				}
				switch ev.Type {
				case stt.SpeechEventInterim, stt.SpeechEventError:
				case stt.SpeechEventFinal:
					sawFinal = true
					if ev.Text != transcript {
						t.Errorf("final text = %q, want %q", ev.Text, transcript)
					}
				default:
					t.Errorf("unknown event type %v", ev.Type)
				}
			case <-timeout:
				t.Fatal("timed out draining events")
			}
		}
	})
}

// FuzzFakeSTTLifecycle drives an arbitrary interleaving of Push and
// CloseSend calls. Pushes after the first close must fail, further closes
// must not, and draining must always terminate.
func FuzzFakeSTTLifecycle(f *testing.F) {
	f.Add([]byte{1, 0})
	f.Add([]byte{0})
	f.Add([]byte{1, 1, 0})
	f.Add([]byte{0, 1})
	f.Add([]byte{1, 0, 1})

	f.Fuzz(func(t *testing.T, ops []byte) {
		if len(ops) == 0 || len(ops) > 20 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		stream, err := NewFakeSTT("ordering run").NewStream(ctx, stt.StreamConfig{
			SampleRate:  16000,
			NumChannels: 1,
		})
		if err != nil {
			t.Fatalf("NewStream: %v", err)
		}

		closed := false
		for i, op := range ops {
			if op%2 == 0 {
				if err := stream.CloseSend(); err != nil && !closed {
					t.Errorf("op %d: first CloseSend: %v", i, err)
				}
				closed = true
				continue
			}

			err := stream.Push(testFrame())
			if closed && err == nil {
				t.Errorf("op %d: Push succeeded after close", i)
			}
			if !closed && err != nil {
				t.Errorf("op %d: Push: %v", i, err)
			}
		}
		if !closed {
			stream.CloseSend()
		}

		timeout := time.After(500 * time.Millisecond)
		for {
			select {
			case _, ok := <-stream.Events():
				if !ok {
					return
				}
			case <-timeout:
				t.Fatal("timed out draining events")
			}
		}
	})
}
