// Package script implements the text-generation client of the pipeline: it
// turns a raw topic into a validated topic, research notes, and a finished
// two-host dialogue script by prompting an LLM backend.
//
// The three operations carry deliberately different failure policies:
//
//   - ValidateTopic degrades to "valid, unchanged" on a parse glitch — a
//     parsing hiccup must never block generation.
//   - GenerateResearch degrades to minimal placeholder notes.
//   - GenerateScript fails hard on parse or structural problems — a broken
//     script cannot safely proceed to synthesis.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kotomo-ai/kotomo/internal/extract"
	"github.com/kotomo-ai/kotomo/internal/observe"
	"github.com/kotomo-ai/kotomo/internal/prompt"
	"github.com/kotomo-ai/kotomo/pkg/podcast"
	"github.com/kotomo-ai/kotomo/pkg/provider/llm"
)

// Per-call completion token caps.
const (
	validateMaxTokens = 500
	researchMaxTokens = 2000
	scriptMaxTokens   = 4000
)

// temperature applied to every generation call.
const temperature = 0.7

// ErrInvalidScript is returned by GenerateScript when the model's output
// cannot be used: unparseable JSON, a missing title, no speakers, no lines,
// or a line referencing an undeclared speaker.
var ErrInvalidScript = errors.New("script: model returned an invalid script")

// Service generates podcast content through an LLM provider.
// It is safe for concurrent use.
type Service struct {
	provider llm.Provider
}

// NewService creates a Service backed by the given LLM provider.
func NewService(provider llm.Provider) *Service {
	return &Service{provider: provider}
}

// ModelInfo reports the backend identifiers of the underlying provider.
func (s *Service) ModelInfo() llm.ModelInfo {
	return s.provider.Describe()
}

// ValidateTopic asks the model whether topic is suitable for an episode and
// returns the cleaned topic. When the response cannot be parsed the topic is
// accepted unchanged; an error is returned only when the backend call itself
// fails.
func (s *Service) ValidateTopic(ctx context.Context, topic string) (podcast.TopicValidation, error) {
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt.RenderValidation(topic),
		Temperature: temperature,
		MaxTokens:   validateMaxTokens,
	})
	if err != nil {
		return podcast.TopicValidation{}, fmt.Errorf("script: validate topic: %w", err)
	}

	var v podcast.TopicValidation
	if err := extract.Unmarshal(resp.Content, &v); err != nil {
		observe.Logger(ctx).Warn("topic validation response unparseable; accepting topic as-is",
			"error", err)
		return podcast.TopicValidation{IsValid: true, CleanedTopic: topic}, nil
	}
	if v.IsValid && v.CleanedTopic == "" {
		v.CleanedTopic = topic
	}
	return v, nil
}

// GenerateResearch produces research notes for a cleaned topic. When the
// response cannot be parsed, minimal placeholder notes are synthesized from
// the topic string so the pipeline can continue.
func (s *Service) GenerateResearch(ctx context.Context, topic string, tone podcast.Tone, duration podcast.Duration) (podcast.ResearchNotes, error) {
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt.RenderResearch(topic, tone, duration),
		Temperature: temperature,
		MaxTokens:   researchMaxTokens,
	})
	if err != nil {
		return podcast.ResearchNotes{}, fmt.Errorf("script: generate research: %w", err)
	}

	var notes podcast.ResearchNotes
	if err := extract.Unmarshal(resp.Content, &notes); err != nil || len(notes.KeyPoints) == 0 {
		observe.Logger(ctx).Warn("research response unusable; falling back to placeholder notes",
			"error", err)
		return placeholderResearch(topic), nil
	}
	if notes.Topic == "" {
		notes.Topic = topic
	}
	return notes, nil
}

// GenerateScript turns research notes into a complete dialogue script.
// There is no fallback: any parse failure or structural defect returns an
// error wrapping [ErrInvalidScript] and the pipeline must abort.
func (s *Service) GenerateScript(ctx context.Context, research podcast.ResearchNotes, tone podcast.Tone, duration podcast.Duration) (podcast.Script, error) {
	researchJSON, err := json.MarshalIndent(research, "", "  ")
	if err != nil {
		return podcast.Script{}, fmt.Errorf("script: encode research: %w", err)
	}

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt.RenderScript(string(researchJSON), tone, duration),
		Temperature: temperature,
		MaxTokens:   scriptMaxTokens,
	})
	if err != nil {
		return podcast.Script{}, fmt.Errorf("script: generate script: %w", err)
	}

	var sc podcast.Script
	if err := extract.Unmarshal(resp.Content, &sc); err != nil {
		return podcast.Script{}, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if err := validateScript(sc); err != nil {
		return podcast.Script{}, err
	}
	return sc, nil
}

// validateScript enforces the structural invariants of a usable script.
func validateScript(sc podcast.Script) error {
	if sc.Title == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidScript)
	}
	if len(sc.Speakers) == 0 {
		return fmt.Errorf("%w: no speakers", ErrInvalidScript)
	}
	if len(sc.Lines) == 0 {
		return fmt.Errorf("%w: no lines", ErrInvalidScript)
	}

	names := make(map[string]struct{}, len(sc.Speakers))
	for _, sp := range sc.Speakers {
		names[sp.Name] = struct{}{}
	}
	for i, line := range sc.Lines {
		if _, ok := names[line.Speaker]; !ok {
			return fmt.Errorf("%w: line %d references unknown speaker %q", ErrInvalidScript, i+1, line.Speaker)
		}
	}
	return nil
}

// placeholderResearch is the typed fallback used when the research response
// cannot be parsed.
func placeholderResearch(topic string) podcast.ResearchNotes {
	return podcast.ResearchNotes{
		Topic:     topic,
		KeyPoints: []string{"Overview of " + topic},
		Facts:     []string{"This is an interesting topic"},
		Context:   fmt.Sprintf("A discussion about %s", topic),
	}
}
