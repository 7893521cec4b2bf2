// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider converts one fragment of text into a compressed audio buffer
// using a backend-specific voice identifier and a speed multiplier. Kotomo's
// synthesizer sits above this interface and owns the mapping from logical
// voice keys and emotions to these backend parameters.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package tts

import "context"

// SpeechRequest carries the parameters for a single synthesis call.
type SpeechRequest struct {
	// Text is the content to speak. Must be non-empty.
	Text string

	// Voice is the backend voice identifier (e.g. "onyx", "nova" for OpenAI).
	Voice string

	// Speed is the playback speed multiplier. The OpenAI API accepts
	// [0.25, 4.0]; 1.0 is neutral. Zero requests the backend default.
	Speed float64
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts req.Text into one compressed audio buffer (MP3).
	// The returned bytes are a complete, playable stream for this fragment.
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
}
