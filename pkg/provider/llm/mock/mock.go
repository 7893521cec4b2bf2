// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the script generator sends correct
// CompletionRequests and to feed controlled responses without a live LLM backend.
// All fields are safe to set before calling any method; mutating them during a
// concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    Responses: []string{`{"isValid": true, "cleanedTopic": "Black Holes"}`},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/kotomo-ai/kotomo/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
//
// Each call to Complete consumes the next entry of Responses (the last entry
// repeats once the slice is exhausted). Set Errs entries to inject a per-call
// error instead; a nil entry means success.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Responses is the sequence of completion contents returned by Complete,
	// one per call in order.
	Responses []string

	// Errs, when non-nil at the index of the current call, is returned as the
	// error from Complete instead of a response.
	Errs []error

	// Info is returned by Describe.
	Info llm.ModelInfo

	// --- Call records (read after test) ---

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.CompleteCalls)
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})

	if n < len(p.Errs) && p.Errs[n] != nil {
		return nil, p.Errs[n]
	}

	var content string
	switch {
	case n < len(p.Responses):
		content = p.Responses[n]
	case len(p.Responses) > 0:
		content = p.Responses[len(p.Responses)-1]
	}
	return &llm.CompletionResponse{Content: content}, nil
}

// Describe implements llm.Provider.
func (p *Provider) Describe() llm.ModelInfo {
	return p.Info
}

// CallCount returns the number of Complete invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.CompleteCalls)
}
