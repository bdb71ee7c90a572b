package openai

import (
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/tutor-agents-go/pkg/plugin"
)

// clientFromConfig builds the shared OpenAI client from plugin configuration,
// falling back to the OPENAI_API_KEY environment variable.
func clientFromConfig(cfg map[string]any) (*openai.Client, error) {
	apiKey, ok := cfg["api_key"].(string)
	if !ok || apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY environment variable or provide api_key in config)")
	}
	return openai.NewClient(apiKey), nil
}

// newOpenAISTT is the factory function for Whisper STT.
func newOpenAISTT(cfg map[string]any) (any, error) {
	client, err := clientFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	model, _ := cfg["model"].(string)
	language, _ := cfg["language"].(string)
	return NewWhisperSTT(client, model, language)
}

// newOpenAILLM is the factory function for OpenAI chat models.
func newOpenAILLM(cfg map[string]any) (any, error) {
	client, err := clientFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	model, _ := cfg["model"].(string)
	return NewLLM(client, model), nil
}

// newOpenAITTS is the factory function for OpenAI speech synthesis.
func newOpenAITTS(cfg map[string]any) (any, error) {
	client, err := clientFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	model, _ := cfg["model"].(string)
	voice, _ := cfg["voice"].(string)
	return NewTTS(client, model, voice), nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "stt",
		Name:        "openai",
		Factory:     newOpenAISTT,
		Description: "OpenAI Whisper speech-to-text service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":    "whisper-1",
			"language": "auto-detect (leave empty) or specify language code",
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "llm",
		Name:        "openai",
		Factory:     newOpenAILLM,
		Description: "OpenAI GPT chat completion service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key": "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":   "gpt-4o-mini",
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "tts",
		Name:        "openai",
		Factory:     newOpenAITTS,
		Description: "OpenAI text-to-speech service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key": "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":   "tts-1",
			"voice":   "alloy",
		},
	})
}
