// Command kotomo is the main entry point for the Kotomo podcast generation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/nats-io/nats.go"

	"github.com/kotomo-ai/kotomo/internal/audio"
	"github.com/kotomo-ai/kotomo/internal/config"
	"github.com/kotomo-ai/kotomo/internal/health"
	"github.com/kotomo-ai/kotomo/internal/observe"
	"github.com/kotomo-ai/kotomo/internal/pipeline"
	"github.com/kotomo-ai/kotomo/internal/resilience"
	"github.com/kotomo-ai/kotomo/internal/script"
	"github.com/kotomo-ai/kotomo/internal/server"
	"github.com/kotomo-ai/kotomo/internal/store"
	"github.com/kotomo-ai/kotomo/internal/synth"
	"github.com/kotomo-ai/kotomo/pkg/provider/llm"
	"github.com/kotomo-ai/kotomo/pkg/provider/llm/anyllm"
	"github.com/kotomo-ai/kotomo/pkg/provider/tts"
	ttsopenai "github.com/kotomo-ai/kotomo/pkg/provider/tts/openai"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Load .env if present so API keys can live outside the YAML file.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "kotomo: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "kotomo: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("kotomo starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	primaryLLM, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to create LLM provider", "name", cfg.Providers.LLM.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	// Every backend sits behind a circuit breaker; extra entries from
	// providers.llm_fallbacks are tried in order when the primary is down.
	llmProvider := resilience.NewLLMFallback(primaryLLM, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
	for _, entry := range cfg.Providers.LLMFallbacks {
		fb, err := reg.CreateLLM(entry)
		if err != nil {
			slog.Error("failed to create LLM fallback provider", "name", entry.Name, "err", err)
			return 1
		}
		llmProvider.AddFallback(entry.Name, fb)
		slog.Info("provider created", "kind", "llm-fallback", "name", entry.Name, "model", entry.Model)
	}

	primaryTTS, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to create TTS provider", "name", cfg.Providers.TTS.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name, "model", cfg.Providers.TTS.Model)
	ttsProvider := resilience.NewTTSFallback(primaryTTS, cfg.Providers.TTS.Name, resilience.FallbackConfig{})

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "kotomo",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Storage (optional) ────────────────────────────────────────────────────
	podcasts := store.NewDisabled()
	if cfg.Storage.URL != "" {
		nc, err := nats.Connect(cfg.Storage.URL, nats.Name("kotomo"))
		if err != nil {
			slog.Error("failed to connect to NATS", "url", cfg.Storage.URL, "err", err)
			return 1
		}
		defer nc.Close()

		js, err := nc.JetStream()
		if err != nil {
			slog.Error("failed to open JetStream context", "err", err)
			return 1
		}
		podcasts, err = store.New(js, cfg.Storage.Bucket, cfg.Server.PublicBaseURL)
		if err != nil {
			slog.Error("failed to open podcast store", "bucket", cfg.Storage.Bucket, "err", err)
			return 1
		}
		slog.Info("podcast storage enabled", "url", cfg.Storage.URL, "bucket", cfg.Storage.Bucket)
	}

	// ── Generation pipeline ───────────────────────────────────────────────────
	var mergeOpts []audio.Option
	if cfg.Merge.FFmpegPath != "" {
		mergeOpts = append(mergeOpts, audio.WithFFmpegPath(cfg.Merge.FFmpegPath))
	}
	if cfg.Merge.Timeout > 0 {
		mergeOpts = append(mergeOpts, audio.WithTimeout(time.Duration(cfg.Merge.Timeout)))
	}
	merger := audio.NewMerger(mergeOpts...)

	pipe := pipeline.New(
		script.NewService(llmProvider),
		synth.New(ttsProvider),
		merger,
		podcasts,
		metrics,
	)

	// ── Health checks ─────────────────────────────────────────────────────────
	checkers := []health.Checker{
		{
			Name: "ffmpeg",
			Check: func(ctx context.Context) error {
				path := cfg.Merge.FFmpegPath
				if path == "" {
					path = "ffmpeg"
				}
				_, err := exec.LookPath(path)
				return err
			},
		},
	}
	if podcasts.Enabled() {
		checkers = append(checkers, health.Checker{
			Name: "storage",
			Check: func(ctx context.Context) error {
				_, err := podcasts.List(ctx, 1)
				return err
			},
		})
	}
	healthHandler := health.New(health.Info{
		Service:           "kotomo",
		Version:           version,
		StorageConfigured: podcasts.Enabled(),
	}, checkers...)

	// ── HTTP server ───────────────────────────────────────────────────────────
	printStartupSummary(cfg, podcasts.Enabled())

	srv := server.New(server.Config{Addr: cfg.Server.ListenAddr}, pipe, podcasts, healthHandler, metrics)

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		return ttsopenai.New(entry.APIKey, opts...)
	})
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, storageEnabled bool) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Kotomo — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	if storageEnabled {
		fmt.Printf("║  Storage         : %-19s ║\n", "nats/"+cfg.Storage.Bucket)
	} else {
		fmt.Printf("║  Storage         : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  Merge timeout   : %-19s ║\n", cfg.Merge.Timeout)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
