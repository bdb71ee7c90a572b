// Package app assembles one worker process. A Runtime holds the shared
// clients and providers for whichever worker type AGENT_TYPE selects and
// hands the per-job entry point to the worker loop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/tutor-agents-go/internal/clients"
	"github.com/chriscow/tutor-agents-go/internal/config"
	"github.com/chriscow/tutor-agents-go/internal/observe"
	"github.com/chriscow/tutor-agents-go/internal/worker"
	"github.com/chriscow/tutor-agents-go/pkg/agent"
	"github.com/chriscow/tutor-agents-go/pkg/ai/realtime"
	"github.com/chriscow/tutor-agents-go/pkg/ai/tts"
	"github.com/chriscow/tutor-agents-go/pkg/ai/vad"
	"github.com/chriscow/tutor-agents-go/pkg/dispatch"
	"github.com/chriscow/tutor-agents-go/pkg/escalation"
	"github.com/chriscow/tutor-agents-go/pkg/guardrail"
	"github.com/chriscow/tutor-agents-go/pkg/plugin"
	anthropicplugin "github.com/chriscow/tutor-agents-go/pkg/plugin/anthropic"
	openaiplugin "github.com/chriscow/tutor-agents-go/pkg/plugin/openai"
	"github.com/chriscow/tutor-agents-go/pkg/routing"
	"github.com/chriscow/tutor-agents-go/pkg/transcript"
	"github.com/chriscow/tutor-agents-go/pkg/version"
)

// defaultOrchestratorModel is the routing classifier. Routing latency sits
// directly in the conversation, so this stays on the fastest Claude tier.
const defaultOrchestratorModel = "claude-haiku-4-5-20251001"

// storeTimeout bounds fire-and-forget store writes issued from the session
// paths.
const storeTimeout = 10 * time.Second

// Runtime is the per-process wiring for one worker type. One Runtime serves
// every concurrent job the worker accepts.
type Runtime struct {
	Cfg    config.Config
	Logger *slog.Logger

	Store    transcript.Store
	Guard    *guardrail.Guardrail
	Dispatch dispatch.Client

	// Pipeline worker only.
	Agents agent.Factory
	Router *routing.Router
	TTS    tts.TTS
	STT    *openaiplugin.WhisperSTT

	// English worker only.
	Realtime realtime.Model

	shutdownTracing func(context.Context) error

	vadOnce  sync.Once
	vadReady chan vad.VAD
	vadDet   vad.VAD
}

// NewRuntime builds the runtime for the configured worker type. Telemetry,
// the database pool, and the API clients are initialised here so a broken
// deployment fails before the worker registers for jobs.
func NewRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	r := &Runtime{Cfg: cfg, Logger: logger}

	if cfg.TracingEnabled() {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceVersion: version.Version,
			Endpoint:       cfg.TraceEndpoint,
			PublicKey:      cfg.TracePublicKey,
			SecretKey:      cfg.TraceSecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("app: init tracing: %w", err)
		}
		r.shutdownTracing = shutdown
	}

	pool, err := clients.Pool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store := transcript.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("app: migrate schema: %w", err)
	}
	r.Store = store

	oa := clients.OpenAI(cfg.OpenAIKey)
	moderator := openaiplugin.NewModeration(oa, "")
	r.Dispatch = clients.Dispatch(cfg.LiveKitURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)

	switch cfg.AgentType {
	case config.AgentTypeEnglish:
		model, err := openaiplugin.NewRealtimeModel(cfg.OpenAIKey, cfg.RealtimeModel)
		if err != nil {
			return nil, fmt.Errorf("app: realtime model: %w", err)
		}
		r.Realtime = model
		// The realtime check is post-hoc and audit only; there is nothing
		// left to rewrite once the audio has played.
		r.Guard = guardrail.New(moderator, nil, store)

	default:
		ac := clients.Anthropic(cfg.AnthropicKey)
		r.Guard = guardrail.New(moderator, anthropicplugin.NewRewriter(ac, cfg.RewriteModel), store)

		orchestratorModel := cfg.OrchestratorModel
		if orchestratorModel == "" {
			orchestratorModel = defaultOrchestratorModel
		}
		historyLLM := openaiplugin.NewLLM(oa, cfg.HistoryModel)
		r.Agents = agent.Factory{
			OrchestratorLLM: anthropicplugin.NewLLM(ac, orchestratorModel),
			MathLLM:         anthropicplugin.NewLLM(ac, cfg.MathModel),
			HistoryLLM:      historyLLM,
			EnglishLLM:      historyLLM,
			Tools:           routing.Definitions,
		}
		r.Router = &routing.Router{
			Agents:    r.Agents,
			Dispatch:  r.Dispatch,
			Escalator: escalation.New(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, store),
			Store:     store,
		}
		r.TTS = openaiplugin.NewTTS(oa, "", "")
		whisper, err := openaiplugin.NewWhisperSTT(oa, "", "en")
		if err != nil {
			return nil, fmt.Errorf("app: whisper stt: %w", err)
		}
		r.STT = whisper
		r.prewarmVAD()
	}

	return r, nil
}

// WorkerName returns the registered worker name for this runtime's type.
func (r *Runtime) WorkerName() string {
	if r.Cfg.AgentType == config.AgentTypeEnglish {
		return dispatch.WorkerEnglish
	}
	return dispatch.WorkerOrchestrator
}

// Handler returns the per-job entry point for this runtime's type.
func (r *Runtime) Handler() worker.Handler {
	if r.Cfg.AgentType == config.AgentTypeEnglish {
		return r.runEnglishJob
	}
	return r.runPipelineJob
}

// Close flushes telemetry. The shared clients pool stays up for the life of
// the process.
func (r *Runtime) Close(ctx context.Context) error {
	if r.shutdownTracing != nil {
		return r.shutdownTracing(ctx)
	}
	return nil
}

// prewarmVAD loads the VAD model in the background so the first job does not
// pay the load cost. Default builds carry no VAD plugin; the pipeline runs
// without one.
func (r *Runtime) prewarmVAD() {
	r.vadReady = make(chan vad.VAD, 1)
	go func() {
		factory, ok := plugin.Get("vad", "silero")
		if !ok {
			r.Logger.Warn("VAD plugin not registered, running without voice activity detection")
			r.vadReady <- nil
			return
		}
		det, err := factory(map[string]any{})
		if err != nil {
			r.Logger.Warn("VAD prewarm failed, running without voice activity detection",
				slog.String("error", err.Error()))
			r.vadReady <- nil
			return
		}
		d, _ := det.(vad.VAD)
		r.vadReady <- d
	}()
}

// awaitVAD blocks until the prewarm finishes, once; later calls return the
// cached detector. Nil means no VAD is available.
func (r *Runtime) awaitVAD(ctx context.Context) vad.VAD {
	if r.vadReady == nil {
		return nil
	}
	r.vadOnce.Do(func() {
		select {
		case r.vadDet = <-r.vadReady:
		case <-ctx.Done():
		}
	})
	return r.vadDet
}
