// Package synth converts a finished script into ordered audio segments.
//
// It owns the mapping from logical voice keys and emotion tags to backend
// parameters. Both lookups are total: unrecognised inputs degrade to defaults
// and never fail. Lines are synthesized strictly sequentially so progress
// events stay ordered and the speech backend sees bounded concurrent load.
package synth

import (
	"context"
	"fmt"

	"github.com/kotomo-ai/kotomo/internal/observe"
	"github.com/kotomo-ai/kotomo/pkg/podcast"
	"github.com/kotomo-ai/kotomo/pkg/provider/tts"
)

// voiceMap resolves logical voice keys to OpenAI voice identifiers.
// voice1/voice2 are the podcast host aliases; the six direct OpenAI voice
// names pass through.
var voiceMap = map[string]string{
	"voice1":  "onyx", // deep male voice, authoritative host
	"voice2":  "nova", // warm female voice, engaging host
	"alloy":   "alloy",
	"echo":    "echo",
	"fable":   "fable",
	"onyx":    "onyx",
	"nova":    "nova",
	"shimmer": "shimmer",
}

// defaultVoiceKey is used when a voice key is not in voiceMap.
const defaultVoiceKey = "voice1"

// emotionSpeeds maps emotion tags to TTS speed multipliers (OpenAI accepts
// 0.25–4.0; 1.0 is neutral).
var emotionSpeeds = map[string]float64{
	"curious":       1.0,
	"enthusiastic":  1.1,
	"thoughtful":    0.95,
	"surprised":     1.05,
	"amused":        1.05,
	"serious":       0.9,
	"excited":       1.15,
	"contemplative": 0.9,
	"informative":   1.0,
	"encouraging":   1.05,
	"amazed":        1.1,
	"grateful":      0.95,
}

// defaultEmotion is used when an emotion tag is not in emotionSpeeds.
const defaultEmotion = "thoughtful"

// Voice describes one logical voice key offered by the API.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Voices returns the catalogue of logical voice keys with display metadata.
// The list is static data, independent of any pipeline run.
func Voices() []Voice {
	return []Voice{
		{ID: "voice1", Name: "Host 1 (Onyx)", Description: "Deep, authoritative male voice"},
		{ID: "voice2", Name: "Host 2 (Nova)", Description: "Warm, engaging female voice"},
		{ID: "alloy", Name: "Alloy", Description: "Neutral voice"},
		{ID: "echo", Name: "Echo", Description: "Male voice"},
		{ID: "fable", Name: "Fable", Description: "British accent"},
		{ID: "shimmer", Name: "Shimmer", Description: "Soft female voice"},
	}
}

// ResolveVoice maps a logical voice key to the backend voice identifier.
// Unknown keys resolve to the primary host voice.
func ResolveVoice(voiceKey string) string {
	if v, ok := voiceMap[voiceKey]; ok {
		return v
	}
	return voiceMap[defaultVoiceKey]
}

// ResolveSpeed maps an emotion tag to a speed multiplier. Unknown emotions
// resolve to the neutral thoughtful profile.
func ResolveSpeed(emotion string) float64 {
	if s, ok := emotionSpeeds[emotion]; ok {
		return s
	}
	return emotionSpeeds[defaultEmotion]
}

// ProgressFunc observes per-line synthesis progress. current is 1-based and
// strictly increasing; total is constant for the whole batch. The hook is
// synchronous and must not be relied on for control flow.
type ProgressFunc func(current, total int, speaker, emotion string)

// Synthesizer produces audio segments from script lines.
// It is safe for concurrent use.
type Synthesizer struct {
	provider tts.Provider
}

// New creates a Synthesizer backed by the given TTS provider.
func New(provider tts.Provider) *Synthesizer {
	return &Synthesizer{provider: provider}
}

// Line synthesizes a single line of dialogue into MP3 bytes.
func (s *Synthesizer) Line(ctx context.Context, text, voiceKey, emotion string) ([]byte, error) {
	audio, err := s.provider.Synthesize(ctx, tts.SpeechRequest{
		Text:  text,
		Voice: ResolveVoice(voiceKey),
		Speed: ResolveSpeed(emotion),
	})
	if err != nil {
		return nil, fmt.Errorf("synth: synthesize line: %w", err)
	}
	return audio, nil
}

// Script synthesizes every line of sc in order and returns one segment per
// line. onProgress (optional) fires exactly once per line, in line order,
// before the underlying synthesis call. Any single-line failure aborts the
// whole batch — no partial results are returned.
func (s *Synthesizer) Script(ctx context.Context, sc podcast.Script, onProgress ProgressFunc) ([]podcast.AudioSegment, error) {
	// Speaker name → logical voice key, with positional defaults for
	// speakers the script left without an explicit voice.
	speakerVoices := make(map[string]string, len(sc.Speakers))
	for i, sp := range sc.Speakers {
		key := sp.VoiceID
		if key == "" {
			key = fmt.Sprintf("voice%d", i+1)
		}
		speakerVoices[sp.Name] = key
	}

	log := observe.Logger(ctx)
	segments := make([]podcast.AudioSegment, 0, len(sc.Lines))
	total := len(sc.Lines)

	for i, line := range sc.Lines {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("synth: cancelled at line %d/%d: %w", i+1, total, err)
		}

		voiceKey, ok := speakerVoices[line.Speaker]
		if !ok {
			voiceKey = defaultVoiceKey
		}

		if onProgress != nil {
			onProgress(i+1, total, line.Speaker, line.Emotion)
		}
		log.Debug("synthesizing line",
			"line", i+1, "total", total,
			"speaker", line.Speaker, "emotion", line.Emotion)

		audio, err := s.Line(ctx, line.Text, voiceKey, line.Emotion)
		if err != nil {
			return nil, fmt.Errorf("synth: line %d/%d (%s): %w", i+1, total, line.Speaker, err)
		}

		segments = append(segments, podcast.AudioSegment{
			SpeakerName: line.Speaker,
			Audio:       audio,
		})
	}

	return segments, nil
}
