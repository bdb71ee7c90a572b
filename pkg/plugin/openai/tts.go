package openai

import (
	"context"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/tutor-agents-go/pkg/ai/tts"
	"github.com/chriscow/tutor-agents-go/pkg/rtc"
)

// TTS implements the tts.TTS interface using OpenAI text-to-speech.
type TTS struct {
	client *openai.Client
	model  string
	voice  string
}

// NewTTS creates an OpenAI-backed TTS provider. Model defaults to tts-1 and
// voice to alloy when empty; per-request voices override the default.
func NewTTS(client *openai.Client, model, voice string) *TTS {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &TTS{client: client, model: model, voice: voice}
}

// Synthesize converts text to audio frames. Frames are emitted as the
// response body streams in; the channel closes when synthesis completes.
func (o *TTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan rtc.AudioFrame, error) {
	frameChan := make(chan rtc.AudioFrame, 10)

	go func() {
		defer close(frameChan)
		start := time.Now()

		ttsReq := openai.CreateSpeechRequest{
			Model: openai.SpeechModel(o.model),
			Input: req.Text,
			Voice: openai.SpeechVoice(o.resolveVoice(req.Voice)),
		}
		if req.Speed > 0 {
			ttsReq.Speed = float64(req.Speed)
		}

		resp, err := o.client.CreateSpeech(ctx, ttsReq)
		if err != nil {
			slog.Error("openai tts synthesis failed", slog.String("error", err.Error()))
			return
		}
		defer resp.Close()

		buffer := make([]byte, 2048)
		for {
			n, err := resp.Read(buffer)
			if n > 0 {
				frame := rtc.AudioFrame{
					Data:              append([]byte(nil), buffer[:n]...),
					SampleRate:        24000,
					SamplesPerChannel: n / 2,
					NumChannels:       1,
					Timestamp:         time.Since(start),
				}
				select {
				case frameChan <- frame:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					slog.Error("openai tts read failed", slog.String("error", err.Error()))
				}
				return
			}
		}
	}()

	return frameChan, nil
}

func (o *TTS) resolveVoice(requestVoice string) string {
	if requestVoice != "" {
		return requestVoice
	}
	return o.voice
}

// Capabilities returns the OpenAI TTS provider's capabilities.
func (o *TTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		SupportedLanguages:   []string{"en", "es", "fr", "de", "it", "pt", "ja", "ko", "zh"},
		SupportedVoices:      []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"},
		SampleRates:          []int{24000},
		SupportsSpeedControl: true,
	}
}
