// Command tutor-agent runs one tutoring worker. AGENT_TYPE selects which:
// the orchestrator worker serves pipeline sessions, the english worker serves
// realtime sessions dispatched out of them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/spf13/cobra"

	"github.com/chriscow/tutor-agents-go/internal/app"
	"github.com/chriscow/tutor-agents-go/internal/config"
	"github.com/chriscow/tutor-agents-go/internal/worker"
	"github.com/chriscow/tutor-agents-go/pkg/plugin"
	_ "github.com/chriscow/tutor-agents-go/pkg/plugin/silero" // Import to register silero plugin
	"github.com/chriscow/tutor-agents-go/pkg/version"
)

// workerTokenTTL bounds the worker's registration token. The worker
// re-connects with backoff well inside this window.
const workerTokenTTL = 24 * time.Hour

var rootCmd = &cobra.Command{
	Use:          "tutor-agent",
	Short:        "Multi-agent voice tutoring worker",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the worker selected by AGENT_TYPE",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := setupLogger(cfg)

		if cfg.PluginPath != "" {
			if err := plugin.LoadDynamicPlugins(cfg.PluginPath); err != nil {
				return err
			}
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		rt, err := app.NewRuntime(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer closeCancel()
			if err := rt.Close(closeCtx); err != nil {
				logger.Error("runtime close failed", slog.String("error", err.Error()))
			}
		}()

		token, err := workerToken(cfg, rt.WorkerName())
		if err != nil {
			return err
		}

		logger.Info("Starting worker",
			slog.String("service", "tutor-agent"),
			slog.String("version", version.Version),
			slog.String("agent_type", cfg.AgentType),
			slog.String("worker", rt.WorkerName()))

		w := worker.New(worker.Config{
			URL:       cfg.LiveKitURL,
			Token:     token,
			AgentName: rt.WorkerName(),
		}, rt.Handler(), logger)

		if err := w.Run(ctx); err != nil {
			logger.Error("Worker failed", slog.String("error", err.Error()))
			return err
		}
		return nil
	},
}

var healthzCmd = &cobra.Command{
	Use:   "healthz",
	Short: "Validate the environment contract without registering",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if _, err := workerToken(cfg, cfg.AgentType); err != nil {
			return err
		}
		fmt.Printf("ok: %s worker configuration valid\n", cfg.AgentType)
		return nil
	},
}

var downloadModelsCmd = &cobra.Command{
	Use:   "download-models",
	Short: "Download missing model files for registered provider plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		var downloaded, failed int
		for _, kind := range plugin.ListKinds() {
			for _, p := range plugin.List(kind) {
				if p.Downloader == nil {
					continue
				}
				slog.Info("Downloading model files",
					slog.String("kind", p.Kind),
					slog.String("plugin", p.Name))
				if err := p.Downloader.Download(); err != nil {
					slog.Error("Model download failed",
						slog.String("plugin", p.Name),
						slog.String("error", err.Error()))
					failed++
					continue
				}
				downloaded++
			}
		}
		if failed > 0 {
			return fmt.Errorf("failed to download model files for %d plugins", failed)
		}
		if downloaded == 0 {
			fmt.Println("no model files needed")
			return nil
		}
		fmt.Printf("downloaded model files for %d plugins\n", downloaded)
		return nil
	},
}

// workerToken mints the agent-grant token the worker registers with.
func workerToken(cfg config.Config, identity string) (string, error) {
	at := auth.NewAccessToken(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret).
		SetIdentity(identity).
		SetVideoGrant(&auth.VideoGrant{Agent: true}).
		SetValidFor(workerTokenTTL)
	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("sign worker token: %w", err)
	}
	return token, nil
}

func setupLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{}
	switch cfg.LogLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.LogFormat == "console" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// Default to JSON
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func main() {
	rootCmd.AddCommand(runCmd, healthzCmd, downloadModelsCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
