// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider in unit tests to verify synthesis parameters and to feed
// deterministic audio buffers without a live speech backend.
package mock

import (
	"context"
	"sync"

	"github.com/kotomo-ai/kotomo/pkg/provider/tts"
)

// Call records a single invocation of Synthesize.
type Call struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Req is the SpeechRequest passed to Synthesize.
	Req tts.SpeechRequest
}

// Provider is a mock implementation of tts.Provider.
//
// When SynthesizeFunc is set it handles every call. Otherwise each call
// returns Audio (defaulting to the request text as bytes, so tests can assert
// ordering by content) or Err when set.
type Provider struct {
	mu sync.Mutex

	// SynthesizeFunc, when non-nil, fully controls Synthesize behaviour.
	SynthesizeFunc func(ctx context.Context, req tts.SpeechRequest) ([]byte, error)

	// Audio is returned for every call when SynthesizeFunc is nil.
	Audio []byte

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Calls records every invocation of Synthesize in order.
	Calls []Call
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.SpeechRequest) ([]byte, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Ctx: ctx, Req: req})
	fn := p.SynthesizeFunc
	audio := p.Audio
	err := p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if audio == nil {
		return []byte(req.Text), nil
	}
	return audio, nil
}

// CallCount returns the number of Synthesize invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
