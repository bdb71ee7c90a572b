// Package fake registers in-memory providers for every plugin kind. Workers
// run against them in tests and local development, where a session needs the
// full STT, LLM, TTS, and VAD surface without network credentials.
package fake

import (
	"github.com/chriscow/tutor-agents-go/pkg/ai/llm"
	llmfake "github.com/chriscow/tutor-agents-go/pkg/ai/llm/fake"
	sttfake "github.com/chriscow/tutor-agents-go/pkg/ai/stt/fake"
	ttsfake "github.com/chriscow/tutor-agents-go/pkg/ai/tts/fake"
	vadfake "github.com/chriscow/tutor-agents-go/pkg/ai/vad/fake"
	"github.com/chriscow/tutor-agents-go/pkg/plugin"
)

func newFakeSTT(cfg map[string]any) (any, error) {
	transcript := "I would like to practice past tense verbs"
	if t, ok := cfg["transcript"].(string); ok {
		transcript = t
	}
	return sttfake.NewFakeSTT(transcript), nil
}

func newFakeTTS(cfg map[string]any) (any, error) {
	return ttsfake.NewFakeTTS(), nil
}

func newFakeLLM(cfg map[string]any) (any, error) {
	responses := []string{
		"Let's work through that together.",
		"Good try. Listen to the difference.",
		"Exactly right. Shall we move on?",
	}
	if r, ok := cfg["responses"].([]string); ok {
		responses = r
	}

	scripted := make([]llm.ChatResponse, 0, len(responses))
	for _, text := range responses {
		scripted = append(scripted, llmfake.Text(text))
	}
	return llmfake.NewFakeLLM(scripted...), nil
}

func newFakeVAD(cfg map[string]any) (any, error) {
	threshold := float32(0.5)
	switch t := cfg["threshold"].(type) {
	case float32:
		threshold = t
	case float64:
		threshold = float32(t)
	}
	return vadfake.NewFakeVAD(threshold), nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "stt",
		Name:        "fake",
		Factory:     newFakeSTT,
		Description: "Scripted transcripts for tests and local development",
		Version:     "1.0.0",
		Config: map[string]any{
			"transcript": "text every utterance transcribes to",
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "tts",
		Name:        "fake",
		Factory:     newFakeTTS,
		Description: "Silent audio frames for tests and local development",
		Version:     "1.0.0",
		Config:      map[string]any{},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "llm",
		Name:        "fake",
		Factory:     newFakeLLM,
		Description: "Scripted chat responses for tests and local development",
		Version:     "1.0.0",
		Config: map[string]any{
			"responses": []string{"replies returned in order; the last repeats"},
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "vad",
		Name:        "fake",
		Factory:     newFakeVAD,
		Description: "Deterministic speech detection for tests and local development",
		Version:     "1.0.0",
		Config: map[string]any{
			"threshold": 0.5,
		},
	})
}
