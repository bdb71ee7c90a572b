// Package config loads worker configuration from the environment. There are
// no config files and no flags for service wiring: the deployment contract is
// environment variables, validated hard at startup so a misconfigured worker
// never registers for jobs.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Worker types selected by AGENT_TYPE.
const (
	AgentTypeOrchestrator = "orchestrator"
	AgentTypeEnglish      = "english"
)

type Config struct {
	AgentType string

	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string

	OpenAIKey    string
	AnthropicKey string

	DatabaseURL string

	// Trace settings are optional; telemetry is disabled when the endpoint
	// is empty.
	TraceEndpoint  string
	TracePublicKey string
	TraceSecretKey string

	LogLevel  string
	LogFormat string

	// PluginPath points at a directory of provider .so files. Empty skips
	// dynamic loading entirely.
	PluginPath string

	// Model overrides. Empty means the plugin default.
	OrchestratorModel string
	MathModel         string
	HistoryModel      string
	RewriteModel      string
	RealtimeModel     string
}

// Load reads the environment and validates the contract for the selected
// worker type. Any missing required key is fatal.
func Load() (Config, error) {
	cfg := Config{
		AgentType:        strings.TrimSpace(os.Getenv("AGENT_TYPE")),
		LiveKitURL:       os.Getenv("LIVEKIT_URL"),
		LiveKitAPIKey:    os.Getenv("LIVEKIT_API_KEY"),
		LiveKitAPISecret: os.Getenv("LIVEKIT_API_SECRET"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:     os.Getenv("ANTHROPIC_API_KEY"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		TraceEndpoint:    os.Getenv("TRACE_ENDPOINT"),
		TracePublicKey:   os.Getenv("TRACE_PUBLIC_KEY"),
		TraceSecretKey:   os.Getenv("TRACE_SECRET_KEY"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFormat:        os.Getenv("LOG_FORMAT"),
		PluginPath:       os.Getenv("TUTOR_PLUGIN_PATH"),

		OrchestratorModel: os.Getenv("ANTHROPIC_ORCHESTRATOR_MODEL"),
		MathModel:         os.Getenv("ANTHROPIC_MATH_MODEL"),
		RewriteModel:      os.Getenv("ANTHROPIC_REWRITE_MODEL"),
		HistoryModel:      os.Getenv("OPENAI_HISTORY_MODEL"),
		RealtimeModel:     os.Getenv("OPENAI_REALTIME_MODEL"),
	}

	if cfg.AgentType == "" {
		cfg.AgentType = AgentTypeOrchestrator
	}

	var required []string
	switch cfg.AgentType {
	case AgentTypeOrchestrator:
		required = []string{
			"LIVEKIT_URL", "LIVEKIT_API_KEY", "LIVEKIT_API_SECRET",
			"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "DATABASE_URL",
		}
	case AgentTypeEnglish:
		required = []string{
			"LIVEKIT_URL", "LIVEKIT_API_KEY", "LIVEKIT_API_SECRET",
			"OPENAI_API_KEY", "DATABASE_URL",
		}
	default:
		return Config{}, fmt.Errorf("config: unknown AGENT_TYPE %q (want %s or %s)",
			cfg.AgentType, AgentTypeOrchestrator, AgentTypeEnglish)
	}

	var missing []string
	for _, key := range required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: missing required environment for %s worker: %s",
			cfg.AgentType, strings.Join(missing, ", "))
	}

	return cfg, nil
}

// TracingEnabled reports whether an OTLP endpoint was configured.
func (c Config) TracingEnabled() bool { return c.TraceEndpoint != "" }
