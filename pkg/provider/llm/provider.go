// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., Anthropic Claude,
// OpenAI GPT-4o, or a local Ollama instance) and exposes a uniform interface
// for the Kotomo pipeline to perform completions without coupling to any
// specific SDK.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Usage holds token accounting information returned by the LLM backend.
// All counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Prompt
// must be non-empty.
type CompletionRequest struct {
	// Prompt is the user-role message driving the response.
	Prompt string

	// SystemPrompt is an optional high-priority instruction injected before
	// the prompt. Providers without a dedicated system field should prepend
	// it as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in the range [0.0, 2.0].
	// Zero requests the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// ModelInfo identifies the backend a provider talks to. It is reported to
// clients on the initial progress event of a generation run.
type ModelInfo struct {
	// Provider is the backend name (e.g. "anthropic", "openai", "ollama").
	Provider string

	// Model is the specific model identifier (e.g. "claude-sonnet-4-20250514").
	Model string
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled before the
	// completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Describe returns static identifiers for the backend and model. The
	// result is assumed to be constant for the lifetime of the Provider.
	Describe() ModelInfo
}
