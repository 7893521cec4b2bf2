package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts": {"openai"},
}

// providerEnvKeys maps provider names to the environment variable that
// conventionally carries their API key. Local providers (ollama, llamacpp,
// llamafile) need no key and are absent.
var providerEnvKeys = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
	"mistral":   "MISTRAL_API_KEY",
	"groq":      "GROQ_API_KEY",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// environment fallbacks, and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in the values a minimal config file may omit.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Providers.LLM.Name == "" {
		cfg.Providers.LLM.Name = "anthropic"
	}
	if cfg.Providers.LLM.Model == "" {
		cfg.Providers.LLM.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Providers.TTS.Name == "" {
		cfg.Providers.TTS.Name = "openai"
	}
	if cfg.Providers.TTS.Model == "" {
		cfg.Providers.TTS.Model = "tts-1"
	}
	if cfg.Storage.URL != "" && cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "podcasts"
	}
	if cfg.Merge.Timeout == 0 {
		cfg.Merge.Timeout = Duration(30 * time.Second)
	}
}

// applyEnv fills empty API keys from each provider's conventional
// environment variable.
func applyEnv(cfg *Config) {
	fill := func(entry *ProviderEntry) {
		if entry.APIKey != "" {
			return
		}
		envKey, ok := providerEnvKeys[entry.Name]
		if !ok {
			return
		}
		entry.APIKey = os.Getenv(envKey)
	}
	fill(&cfg.Providers.LLM)
	for i := range cfg.Providers.LLMFallbacks {
		fill(&cfg.Providers.LLMFallbacks[i])
	}
	fill(&cfg.Providers.TTS)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}

	// API key availability warnings. Missing keys are not a hard error so
	// that `kotomo -config ...` fails at the first provider call with a
	// clear message rather than refusing to start a test instance.
	if envKey, ok := providerEnvKeys[cfg.Providers.LLM.Name]; ok && cfg.Providers.LLM.APIKey == "" {
		slog.Warn("no API key for LLM provider; generation requests will fail",
			"provider", cfg.Providers.LLM.Name,
			"env", envKey,
		)
	}
	if envKey, ok := providerEnvKeys[cfg.Providers.TTS.Name]; ok && cfg.Providers.TTS.APIKey == "" {
		slog.Warn("no API key for TTS provider; generation requests will fail",
			"provider", cfg.Providers.TTS.Name,
			"env", envKey,
		)
	}

	// Storage
	if cfg.Storage.URL == "" {
		slog.Warn("storage.url is empty; generated audio will be returned inline and not archived")
	}
	if cfg.Storage.URL != "" && cfg.Server.PublicBaseURL == "" {
		errs = append(errs, errors.New("server.public_base_url is required when storage.url is set"))
	}

	// Merge
	if cfg.Merge.Timeout < 0 {
		errs = append(errs, fmt.Errorf("merge.timeout %s is negative", cfg.Merge.Timeout))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
