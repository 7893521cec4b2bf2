package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kotomo-ai/kotomo/pkg/provider/llm"
	llmmock "github.com/kotomo-ai/kotomo/pkg/provider/llm/mock"
)

func TestLLMFallback_Complete_PrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{Responses: []string{"hello from primary"}}
	secondary := &llmmock.Provider{Responses: []string{"hello from secondary"}}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from primary" {
		t.Fatalf("content = %q, want 'hello from primary'", resp.Content)
	}
	if len(primary.CompleteCalls) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.CompleteCalls))
	}
	if len(secondary.CompleteCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.CompleteCalls))
	}
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	primary := &llmmock.Provider{Errs: []error{errors.New("primary down")}}
	secondary := &llmmock.Provider{Responses: []string{"hello from secondary"}}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from secondary" {
		t.Fatalf("content = %q, want 'hello from secondary'", resp.Content)
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	primary := &llmmock.Provider{Errs: []error{errors.New("primary down")}}
	secondary := &llmmock.Provider{Errs: []error{errors.New("secondary down")}}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_Complete_Cancellation(t *testing.T) {
	primary := &llmmock.Provider{Errs: []error{context.Canceled}}
	secondary := &llmmock.Provider{Responses: []string{"should not be reached"}}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(secondary.CompleteCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.CompleteCalls))
	}
}

func TestLLMFallback_Describe_AlwaysPrimary(t *testing.T) {
	primary := &llmmock.Provider{
		Errs: []error{errors.New("primary down")},
		Info: llm.ModelInfo{Provider: "anthropic", Model: "claude-sonnet-4-20250514"},
	}
	secondary := &llmmock.Provider{
		Responses: []string{"ok"},
		Info:      llm.ModelInfo{Provider: "openai", Model: "gpt-4o-mini"},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fb.AddFallback("secondary", secondary)

	// Trip the primary breaker; Describe should still name the primary.
	_, _ = fb.Complete(context.Background(), llm.CompletionRequest{})

	info := fb.Describe()
	if info.Provider != "anthropic" {
		t.Fatalf("Provider = %q, want anthropic", info.Provider)
	}
	if info.Model != "claude-sonnet-4-20250514" {
		t.Fatalf("Model = %q", info.Model)
	}
}
