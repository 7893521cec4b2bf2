// Package podcast defines the shared types used across all Kotomo packages.
//
// These types form the lingua franca between the script generator, the speech
// synthesizer, the merge engine, the storage client, and the orchestrator.
// They are intentionally minimal — each package defines its own domain types,
// but cross-cutting data structures live here to avoid circular imports.
package podcast

import "time"

// Tone is a fixed enumerated style directive influencing generation prompts.
type Tone string

const (
	ToneCasual      Tone = "casual"
	ToneEducational Tone = "educational"
	ToneHumorous    Tone = "humorous"
)

// IsValid reports whether t is a recognised tone.
func (t Tone) IsValid() bool {
	switch t {
	case ToneCasual, ToneEducational, ToneHumorous:
		return true
	}
	return false
}

// Duration is a fixed enumerated length directive influencing the target
// line count of the generated script.
type Duration string

const (
	DurationShort  Duration = "short"
	DurationMedium Duration = "medium"
)

// IsValid reports whether d is a recognised duration.
func (d Duration) IsValid() bool {
	return d == DurationShort || d == DurationMedium
}

// LineRange returns the advisory target line-count range for a duration.
// The range is passed to the script prompt only — it is never enforced on
// the generated script.
func (d Duration) LineRange() (min, max int) {
	if d == DurationMedium {
		return 30, 40
	}
	return 15, 20
}

// GenerateRequest is the inbound request that triggers one generation
// pipeline run. It is immutable once accepted by the orchestrator.
type GenerateRequest struct {
	// Topic is the free-text subject to generate an episode about.
	// Must be non-empty after trimming.
	Topic string `json:"topic"`

	// Tone selects the conversational style of the episode.
	Tone Tone `json:"tone"`

	// Duration selects the target episode length.
	Duration Duration `json:"duration"`
}

// TopicValidation is the result of the topic-validation step. When IsValid is
// false the pipeline terminates with a content rejection carrying Reason —
// a valid terminal outcome, not an operational error.
type TopicValidation struct {
	IsValid bool `json:"isValid"`

	// CleanedTopic is the topic with typos fixed and vague phrasing
	// clarified. All downstream steps use this instead of the raw input.
	CleanedTopic string `json:"cleanedTopic"`

	// Reason explains the rejection. Present only when IsValid is false.
	Reason string `json:"reason,omitempty"`
}

// ResearchNotes is the structured research handed to the script writer.
// It is derived from a validated topic and consumed exactly once.
type ResearchNotes struct {
	Topic     string   `json:"topic"`
	KeyPoints []string `json:"keyPoints"`
	Facts     []string `json:"facts"`
	Context   string   `json:"context"`
}

// Speaker is one podcast host as declared by the generated script.
type Speaker struct {
	// Name is unique within a script; lines reference it.
	Name string `json:"name"`

	Personality string `json:"personality"`

	// VoiceID is the logical voice key (e.g. "voice1"), resolved to a
	// backend voice by the synthesizer. May be empty; the synthesizer then
	// assigns a positional default.
	VoiceID string `json:"voiceId"`
}

// ScriptLine is one spoken exchange of the episode.
type ScriptLine struct {
	// Speaker references a Speaker.Name from the enclosing script.
	Speaker string `json:"speaker"`

	// Text is the spoken content.
	Text string `json:"text"`

	// Emotion maps to a speech-speed profile. Unknown values degrade to a
	// neutral default — they never fail.
	Emotion string `json:"emotion"`
}

// Script is the structured dialogue artifact produced before synthesis.
// The order of Lines is the spoken order and is preserved through synthesis
// and merge.
type Script struct {
	Title    string       `json:"title"`
	Speakers []Speaker    `json:"speakers"`
	Lines    []ScriptLine `json:"lines"`
}

// AudioSegment is one synthesized audio buffer corresponding to one script
// line. Segments are produced in line order and consumed (and discarded) by
// the merge engine.
type AudioSegment struct {
	// SpeakerName is the script speaker this segment voices.
	SpeakerName string

	// Audio is the raw MP3 bytes for this line.
	Audio []byte

	// Seconds is the spoken duration when known; zero when the backend does
	// not report it.
	Seconds float64
}

// StoredPodcast describes a persisted final audio artifact. Its lifecycle is
// independent from the request that produced it.
type StoredPodcast struct {
	URL        string    `json:"url"`
	Pathname   string    `json:"pathname"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// UploadMetadata carries descriptive attributes attached to a stored episode.
type UploadMetadata struct {
	Topic     string
	Tone      Tone
	Duration  Duration
	LineCount int
}
