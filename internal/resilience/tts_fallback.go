package resilience

import (
	"context"

	"github.com/kotomo-ai/kotomo/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker. An episode
// synthesises every script line through this wrapper, so one flaky backend
// call does not abort a half-finished batch when a fallback is available.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize converts one line of text to audio using the first healthy
// provider. Voice identifiers are assumed to be valid on every registered
// backend; fallbacks should therefore speak the same voice catalogue.
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.SpeechRequest) ([]byte, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, req)
	})
}
