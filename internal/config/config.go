// Package config provides the configuration schema, loader, and provider registry
// for the Kotomo podcast generation service.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a [time.Duration] that decodes from YAML strings like "30s"
// or "2m". Bare integers are rejected to avoid unit ambiguity.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// String returns the duration in time.Duration notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// LogLevel controls log verbosity for the Kotomo server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Kotomo.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Storage   StorageConfig   `yaml:"storage"`
	Merge     MergeConfig     `yaml:"merge"`
}

// ServerConfig holds network and logging settings for the Kotomo server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// PublicBaseURL is the externally reachable base URL of this server,
	// used to build download links for stored podcast audio
	// (e.g., "https://kotomo.example.com"). Leave empty when storage is
	// disabled.
	PublicBaseURL string `yaml:"public_base_url"`
}

// ProvidersConfig declares which provider implementation to use for each
// generation stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks lists additional LLM backends tried in order when the
	// primary fails or its circuit breaker is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "anthropic", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	// When empty, the loader falls back to the provider's conventional
	// environment variable (e.g., ANTHROPIC_API_KEY).
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini", "tts-1").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// StorageConfig holds settings for the optional podcast archive backed by a
// NATS JetStream object store. An empty URL disables storage entirely:
// generated audio is then returned inline to the caller instead.
type StorageConfig struct {
	// URL is the NATS server address (e.g., "nats://localhost:4222").
	URL string `yaml:"url"`

	// Bucket is the object store bucket holding podcast audio.
	Bucket string `yaml:"bucket"`
}

// MergeConfig holds settings for the ffmpeg-based audio merge stage.
type MergeConfig struct {
	// FFmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg"
	// resolved via PATH.
	FFmpegPath string `yaml:"ffmpeg_path"`

	// Timeout bounds a single ffmpeg invocation.
	Timeout Duration `yaml:"timeout"`
}
