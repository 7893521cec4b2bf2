package synth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kotomo-ai/kotomo/pkg/podcast"
	"github.com/kotomo-ai/kotomo/pkg/provider/tts"
	"github.com/kotomo-ai/kotomo/pkg/provider/tts/mock"
)

func twoHostScript(lineCount int) podcast.Script {
	sc := podcast.Script{
		Title: "Test Episode",
		Speakers: []podcast.Speaker{
			{Name: "Alex", Personality: "curious", VoiceID: "voice1"},
			{Name: "Sam", Personality: "expert", VoiceID: "voice2"},
		},
	}
	for i := 0; i < lineCount; i++ {
		speaker := "Alex"
		if i%2 == 1 {
			speaker = "Sam"
		}
		sc.Lines = append(sc.Lines, podcast.ScriptLine{
			Speaker: speaker,
			Text:    fmt.Sprintf("line %d", i+1),
			Emotion: "curious",
		})
	}
	return sc
}

func TestResolveVoice_KnownKeys(t *testing.T) {
	if got := ResolveVoice("voice1"); got != "onyx" {
		t.Errorf("voice1 = %q, want onyx", got)
	}
	if got := ResolveVoice("voice2"); got != "nova" {
		t.Errorf("voice2 = %q, want nova", got)
	}
	if got := ResolveVoice("shimmer"); got != "shimmer" {
		t.Errorf("shimmer = %q, want shimmer", got)
	}
}

func TestResolveVoice_UnknownKeyDefaults(t *testing.T) {
	if got := ResolveVoice("klingon"); got != "onyx" {
		t.Errorf("unknown key = %q, want onyx default", got)
	}
	if got := ResolveVoice(""); got != "onyx" {
		t.Errorf("empty key = %q, want onyx default", got)
	}
}

func TestResolveSpeed_Total(t *testing.T) {
	if got := ResolveSpeed("excited"); got != 1.15 {
		t.Errorf("excited = %v, want 1.15", got)
	}
	// Unknown and empty emotions degrade to the thoughtful profile.
	if got := ResolveSpeed("????"); got != 0.95 {
		t.Errorf("unknown emotion = %v, want 0.95", got)
	}
	if got := ResolveSpeed(""); got != 0.95 {
		t.Errorf("empty emotion = %v, want 0.95", got)
	}
}

func TestScript_SegmentsInLineOrder(t *testing.T) {
	p := &mock.Provider{}
	s := New(p)

	segments, err := s.Script(context.Background(), twoHostScript(4), nil)
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if len(segments) != 4 {
		t.Fatalf("segments = %d, want 4", len(segments))
	}
	// The mock echoes the line text as audio, so order is observable.
	for i, seg := range segments {
		want := fmt.Sprintf("line %d", i+1)
		if string(seg.Audio) != want {
			t.Errorf("segment %d audio = %q, want %q", i, seg.Audio, want)
		}
	}
}

func TestScript_ProgressCallbackExactlyOncePerLineInOrder(t *testing.T) {
	p := &mock.Provider{}
	s := New(p)

	const n = 18
	var currents []int
	sc := twoHostScript(n)

	_, err := s.Script(context.Background(), sc, func(current, total int, speaker, emotion string) {
		currents = append(currents, current)
		if total != n {
			t.Errorf("total = %d, want %d", total, n)
		}
		if speaker != sc.Lines[current-1].Speaker {
			t.Errorf("call %d speaker = %q, want %q", current, speaker, sc.Lines[current-1].Speaker)
		}
	})
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if len(currents) != n {
		t.Fatalf("callback fired %d times, want %d", len(currents), n)
	}
	for i, c := range currents {
		if c != i+1 {
			t.Errorf("call %d current = %d, want %d", i, c, i+1)
		}
	}
}

func TestScript_SpeakerVoiceResolution(t *testing.T) {
	p := &mock.Provider{}
	s := New(p)

	sc := podcast.Script{
		Title: "T",
		Speakers: []podcast.Speaker{
			{Name: "Alex", VoiceID: "voice2"},
			{Name: "Sam"}, // no explicit voice — positional default voice2
		},
		Lines: []podcast.ScriptLine{
			{Speaker: "Alex", Text: "a", Emotion: "serious"},
			{Speaker: "Sam", Text: "b", Emotion: "excited"},
		},
	}
	if _, err := s.Script(context.Background(), sc, nil); err != nil {
		t.Fatalf("Script: %v", err)
	}

	if got := p.Calls[0].Req.Voice; got != "nova" {
		t.Errorf("Alex voice = %q, want nova (voice2)", got)
	}
	if got := p.Calls[1].Req.Voice; got != "nova" {
		t.Errorf("Sam voice = %q, want nova (positional voice2)", got)
	}
	if got := p.Calls[0].Req.Speed; got != 0.9 {
		t.Errorf("serious speed = %v, want 0.9", got)
	}
	if got := p.Calls[1].Req.Speed; got != 1.15 {
		t.Errorf("excited speed = %v, want 1.15", got)
	}
}

func TestScript_FailureAbortsBatch(t *testing.T) {
	boom := errors.New("tts unavailable")
	calls := 0
	p := &mock.Provider{
		SynthesizeFunc: func(_ context.Context, req tts.SpeechRequest) ([]byte, error) {
			calls++
			if calls == 3 {
				return nil, boom
			}
			return []byte(req.Text), nil
		},
	}
	s := New(p)

	segments, err := s.Script(context.Background(), twoHostScript(6), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped tts error", err)
	}
	if segments != nil {
		t.Error("a failed batch must not return partial segments")
	}
	if calls != 3 {
		t.Errorf("synthesis calls = %d, want 3 (no calls after failure)", calls)
	}
}

func TestScript_CancelledContextStopsScheduling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &mock.Provider{}
	s := New(p)

	if _, err := s.Script(ctx, twoHostScript(3), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if p.CallCount() != 0 {
		t.Errorf("synthesis calls = %d, want 0 after cancellation", p.CallCount())
	}
}
