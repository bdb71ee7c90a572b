//go:build silero

package silero

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/chriscow/tutor-agents-go/pkg/ai/vad"
	"github.com/chriscow/tutor-agents-go/pkg/plugin"
	"github.com/chriscow/tutor-agents-go/pkg/rtc"
)

// Hysteresis over 10 ms frames: speech starts after three consecutive
// voiced frames and ends after ten consecutive silent ones.
const (
	speechStartFrames = 3
	speechEndFrames   = 10
)

// Config configures the detector.
type Config struct {
	Threshold  float32 `json:"threshold"` // speech cutoff, 0 to 1
	SampleRate int     `json:"sampleRate"`
	ModelPath  string  `json:"modelPath"`
}

// SileroVAD detects speech in the student's microphone frames.
//
// TODO: load the ONNX model through onnxruntime-go. Until the loader lands
// the RMS energy heuristic runs even when the model file is present; the
// downloader and path resolution are already in place for it.
type SileroVAD struct {
	threshold  float32
	sampleRate int
	energy     *energyVAD
}

// NewSileroVAD creates a detector. Threshold defaults to DefaultThreshold
// and sample rate to 16 kHz.
func NewSileroVAD(cfg Config) (*SileroVAD, error) {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}

	modelPath := cfg.ModelPath
	if modelPath == "" {
		modelPath = defaultModelPath()
	}
	if _, err := os.Stat(modelPath); err == nil {
		slog.Info("Silero model present, running energy heuristic until the ONNX loader lands",
			slog.String("path", modelPath))
	} else {
		slog.Info("Silero model not found, using energy heuristic",
			slog.String("path", modelPath))
	}

	return &SileroVAD{
		threshold:  cfg.Threshold,
		sampleRate: cfg.SampleRate,
		energy:     &energyVAD{threshold: cfg.Threshold},
	}, nil
}

// Detect streams VAD events for the frame stream. The event channel closes
// when the frame stream ends or the context is cancelled.
func (s *SileroVAD) Detect(ctx context.Context, frames <-chan rtc.AudioFrame) (<-chan vad.VADEvent, error) {
	events := make(chan vad.VADEvent, 10)
	go func() {
		defer close(events)
		s.energy.detect(ctx, frames, events)
	}()
	return events, nil
}

// Capabilities describes the detector.
func (s *SileroVAD) Capabilities() vad.VADCapabilities {
	return vad.VADCapabilities{
		SampleRates:        []int{8000, 16000, 48000},
		MinSpeechDuration:  100 * time.Millisecond,
		MinSilenceDuration: 300 * time.Millisecond,
		Sensitivity:        s.threshold,
	}
}

// energyVAD is the RMS fallback. It applies the same hysteresis the model
// path will use.
type energyVAD struct {
	threshold float32
}

func (e *energyVAD) detect(ctx context.Context, frames <-chan rtc.AudioFrame, events chan<- vad.VADEvent) {
	var speaking bool
	var voiced, silent int

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				if speaking {
					events <- vad.VADEvent{Type: vad.VADEventSpeechEnd, Timestamp: time.Now()}
				}
				return
			}

			if rmsEnergy(frame.Data) > e.threshold {
				voiced++
				silent = 0
				if !speaking && voiced >= speechStartFrames {
					speaking = true
					events <- vad.VADEvent{Type: vad.VADEventSpeechStart, Timestamp: time.Now()}
				}
			} else {
				silent++
				voiced = 0
				if speaking && silent >= speechEndFrames {
					speaking = false
					events <- vad.VADEvent{Type: vad.VADEventSpeechEnd, Timestamp: time.Now()}
				}
			}
		}
	}
}

// rmsEnergy computes normalized RMS over 16-bit little-endian samples.
func rmsEnergy(data []byte) float32 {
	samples := len(data) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum/float64(samples))) / 32768.0
}

// newSileroVAD is the registry factory.
func newSileroVAD(cfg map[string]any) (any, error) {
	config := Config{
		Threshold:  DefaultThreshold,
		SampleRate: 16000,
	}
	if threshold, ok := cfg["threshold"].(float64); ok {
		config.Threshold = float32(threshold)
	}
	if sampleRate, ok := cfg["sampleRate"].(float64); ok {
		config.SampleRate = int(sampleRate)
	}
	if modelPath, ok := cfg["modelPath"].(string); ok {
		config.ModelPath = modelPath
	}
	return NewSileroVAD(config)
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "vad",
		Name:        "silero",
		Factory:     newSileroVAD,
		Description: "Silero VAD (energy heuristic until the ONNX loader lands)",
		Version:     "1.0.0",
		Config: map[string]interface{}{
			"threshold":  DefaultThreshold,
			"sampleRate": 16000,
			"modelPath":  "",
		},
		Downloader: &ModelDownloader{},
	})
}
