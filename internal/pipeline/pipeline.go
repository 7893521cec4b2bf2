// Package pipeline orchestrates one podcast generation end to end: input
// validation, topic validation, research, script, per-line synthesis, merge,
// optional upload, and the terminal result.
//
// Every run produces exactly one terminal outcome — success with an artifact,
// a content rejection, or an error. Progress events are broadcast-only: they
// are pushed to an optional sink as each step completes and are never awaited
// for control flow.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/kotomo-ai/kotomo/internal/observe"
	"github.com/kotomo-ai/kotomo/internal/synth"
	"github.com/kotomo-ai/kotomo/pkg/podcast"
	"github.com/kotomo-ai/kotomo/pkg/provider/llm"
)

// Scripter generates the text artifacts of an episode.
type Scripter interface {
	ModelInfo() llm.ModelInfo
	ValidateTopic(ctx context.Context, topic string) (podcast.TopicValidation, error)
	GenerateResearch(ctx context.Context, topic string, tone podcast.Tone, duration podcast.Duration) (podcast.ResearchNotes, error)
	GenerateScript(ctx context.Context, research podcast.ResearchNotes, tone podcast.Tone, duration podcast.Duration) (podcast.Script, error)
}

// Synthesizer converts a script into ordered audio segments.
type Synthesizer interface {
	Script(ctx context.Context, sc podcast.Script, onProgress synth.ProgressFunc) ([]podcast.AudioSegment, error)
}

// Merger joins ordered segments into one audio buffer.
type Merger interface {
	Merge(ctx context.Context, segments []podcast.AudioSegment) ([]byte, error)
	Degraded() bool
}

// Storage persists finished episodes. Upload failures are non-fatal to the
// pipeline: the episode falls back to inline delivery.
type Storage interface {
	Enabled() bool
	Upload(ctx context.Context, audio []byte, title string, meta podcast.UploadMetadata) (podcast.StoredPodcast, error)
}

// InputError reports a request that failed fail-fast validation. No external
// call is made for such requests.
type InputError struct {
	Code     string
	Message  string
	Required []string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("pipeline: %s: %s", e.Code, e.Message)
}

// Rejection reports a topic turned away by content validation. It is a valid
// terminal outcome, not an operational error.
type Rejection struct {
	Reason string
}

func (e *Rejection) Error() string {
	return "pipeline: topic rejected: " + e.Reason
}

// Result is the terminal success artifact of one run.
type Result struct {
	Script podcast.Script
	Audio  []byte

	// Stored is non-nil when the episode was uploaded; inline delivery
	// otherwise.
	Stored *podcast.StoredPodcast
}

// Pipeline runs generations. It is safe for concurrent use; each Run is an
// independent sequential task.
type Pipeline struct {
	scripts Scripter
	synth   Synthesizer
	merger  Merger
	storage Storage
	metrics *observe.Metrics
}

// New creates a Pipeline. storage may be a disabled store but must be
// non-nil. metrics may be nil, in which case the package-level default is
// used.
func New(scripts Scripter, synthesizer Synthesizer, merger Merger, storage Storage, metrics *observe.Metrics) *Pipeline {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Pipeline{
		scripts: scripts,
		synth:   synthesizer,
		merger:  merger,
		storage: storage,
		metrics: metrics,
	}
}

// Run executes the full pipeline for req, pushing progress events to sink
// (may be nil) as each step completes. Exactly one terminal event is emitted:
// complete on success, error otherwise. The returned error is *InputError for
// fail-fast validation failures, *Rejection for content rejections, and a
// wrapped pipeline error for everything else.
func (p *Pipeline) Run(ctx context.Context, req podcast.GenerateRequest, sink Sink) (*Result, error) {
	start := time.Now()
	p.metrics.ActiveGenerations.Add(ctx, 1)
	defer p.metrics.ActiveGenerations.Add(ctx, -1)

	res, err := p.run(ctx, req, sink)

	outcome := "complete"
	switch {
	case err == nil:
	case errors.As(err, new(*InputError)):
		outcome = "input_error"
	case errors.As(err, new(*Rejection)):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	p.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("outcome", outcome)))

	return res, err
}

func (p *Pipeline) run(ctx context.Context, req podcast.GenerateRequest, sink Sink) (*Result, error) {
	log := observe.Logger(ctx)

	// Fail-fast validation: no external call for a bad request.
	if inErr := validateRequest(req); inErr != nil {
		emit(sink, Event{Name: EventError, Data: ErrorData{
			Code:     inErr.Code,
			Error:    inErr.Message,
			Required: inErr.Required,
		}})
		return nil, inErr
	}

	ctx, span := observe.StartSpan(ctx, "pipeline.run")
	defer span.End()

	info := p.scripts.ModelInfo()
	log.Info("starting generation",
		"topic", req.Topic, "tone", req.Tone, "duration", req.Duration,
		"provider", info.Provider, "model", info.Model)

	emit(sink, Event{Name: EventStatus, Data: StatusData{
		Step:     "started",
		Message:  "Starting podcast generation",
		Model:    info.Model,
		Provider: info.Provider,
	}})

	// Step 1: validate the topic.
	emit(sink, Event{Name: EventStatus, Data: StatusData{
		Step: "validating", Message: "Analyzing topic...",
	}})
	validation, err := timedLLM(ctx, p.metrics, "validate", func(ctx context.Context) (podcast.TopicValidation, error) {
		return p.scripts.ValidateTopic(ctx, strings.TrimSpace(req.Topic))
	})
	if err != nil {
		return nil, p.fail(ctx, sink, "generation_failed", "validate topic", err)
	}
	if !validation.IsValid {
		p.metrics.TopicsRejected.Add(ctx, 1)
		rej := &Rejection{Reason: validation.Reason}
		log.Info("topic rejected", "reason", validation.Reason)
		emit(sink, Event{Name: EventError, Data: ErrorData{
			Code:   "invalid_topic",
			Error:  "Invalid topic",
			Reason: validation.Reason,
		}})
		return nil, rej
	}
	emit(sink, Event{Name: EventValidated, Data: ValidatedData{
		Step:         "validated",
		CleanedTopic: validation.CleanedTopic,
		Message:      fmt.Sprintf("Topic validated: %q", validation.CleanedTopic),
	}})

	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, sink, "cancelled", "after validation", err)
	}

	// Step 2: research.
	emit(sink, Event{Name: EventStatus, Data: StatusData{
		Step: "researching", Message: "Generating research...",
	}})
	research, err := timedLLM(ctx, p.metrics, "research", func(ctx context.Context) (podcast.ResearchNotes, error) {
		return p.scripts.GenerateResearch(ctx, validation.CleanedTopic, req.Tone, req.Duration)
	})
	if err != nil {
		return nil, p.fail(ctx, sink, "generation_failed", "generate research", err)
	}
	emit(sink, Event{Name: EventResearched, Data: ResearchedData{
		Step:           "researched",
		KeyPointsCount: len(research.KeyPoints),
		FactsCount:     len(research.Facts),
		Message:        fmt.Sprintf("Research complete: %d key points", len(research.KeyPoints)),
	}})

	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, sink, "cancelled", "after research", err)
	}

	// Step 3: script. No fallback here: a broken script aborts the run.
	emit(sink, Event{Name: EventStatus, Data: StatusData{
		Step: "scripting", Message: "Writing script...",
	}})
	sc, err := timedLLM(ctx, p.metrics, "script", func(ctx context.Context) (podcast.Script, error) {
		return p.scripts.GenerateScript(ctx, research, req.Tone, req.Duration)
	})
	if err != nil {
		return nil, p.fail(ctx, sink, "generation_failed", "generate script", err)
	}
	emit(sink, Event{Name: EventScripted, Data: ScriptedData{
		Step:      "scripted",
		Title:     sc.Title,
		Speakers:  speakerSummaries(sc.Speakers),
		LineCount: len(sc.Lines),
		Message:   fmt.Sprintf("Script complete: %q with %d lines", sc.Title, len(sc.Lines)),
	}})

	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, sink, "cancelled", "after scripting", err)
	}

	// Step 4: per-line synthesis, strictly in order.
	emit(sink, Event{Name: EventStatus, Data: StatusData{
		Step:       "generating_audio",
		Message:    "Generating audio...",
		TotalLines: len(sc.Lines),
	}})
	ttsStart := time.Now()
	segments, err := p.synth.Script(ctx, sc, func(current, total int, speaker, emotion string) {
		emit(sink, Event{Name: EventAudioProgress, Data: AudioProgressData{
			Step:    "generating_audio",
			Current: current,
			Total:   total,
			Speaker: speaker,
			Emotion: emotion,
			Message: fmt.Sprintf("Generating line %d/%d: %s (%s)", current, total, speaker, emotion),
		}})
	})
	if err != nil {
		return nil, p.fail(ctx, sink, "generation_failed", "synthesize audio", err)
	}
	p.metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())
	p.metrics.LinesSynthesized.Add(ctx, int64(len(segments)))
	emit(sink, Event{Name: EventAudioComplete, Data: AudioCompleteData{
		Step:         "audio_complete",
		SegmentCount: len(segments),
		Message:      fmt.Sprintf("Audio generated: %d segments", len(segments)),
	}})

	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, sink, "cancelled", "after synthesis", err)
	}

	// Step 5: merge.
	emit(sink, Event{Name: EventStatus, Data: StatusData{
		Step: "merging", Message: "Merging audio segments...",
	}})
	mergeStart := time.Now()
	final, err := p.merger.Merge(ctx, segments)
	if err != nil {
		return nil, p.fail(ctx, sink, "generation_failed", "merge audio", err)
	}
	strategy := "remux"
	if p.merger.Degraded() {
		strategy = "concat"
	}
	p.metrics.MergeDuration.Record(ctx, time.Since(mergeStart).Seconds(),
		metric.WithAttributes(observe.Attr("strategy", strategy)))
	emit(sink, Event{Name: EventMerged, Data: MergedData{
		Step:    "merged",
		Size:    len(final),
		Message: fmt.Sprintf("Final audio ready: %.1f KB", float64(len(final))/1024),
	}})

	// Step 6: persist when storage is configured. Upload failure is
	// non-fatal: the episode is still delivered inline.
	var stored *podcast.StoredPodcast
	if p.storage.Enabled() {
		emit(sink, Event{Name: EventStatus, Data: StatusData{
			Step: "uploading", Message: "Uploading to storage...",
		}})
		uploadStart := time.Now()
		sp, err := p.storage.Upload(ctx, final, sc.Title, podcast.UploadMetadata{
			Topic:     validation.CleanedTopic,
			Tone:      req.Tone,
			Duration:  req.Duration,
			LineCount: len(sc.Lines),
		})
		p.metrics.UploadDuration.Record(ctx, time.Since(uploadStart).Seconds())
		if err != nil {
			log.Warn("upload failed; delivering inline", "error", err)
		} else {
			stored = &sp
			log.Info("episode uploaded", "url", sp.URL, "size", sp.Size)
		}
	}

	// Step 7: finalize.
	complete := CompleteData{
		Step:      "complete",
		Title:     sc.Title,
		Speakers:  speakerSummaries(sc.Speakers),
		LineCount: len(sc.Lines),
		AudioSize: len(final),
		Message:   "Podcast generation complete!",
	}
	if stored != nil {
		complete.AudioURL = stored.URL
	} else {
		complete.AudioBase64 = base64.StdEncoding.EncodeToString(final)
	}
	emit(sink, Event{Name: EventComplete, Data: complete})

	p.metrics.RecordEpisode(ctx, string(req.Tone), string(req.Duration))
	log.Info("generation complete",
		"title", sc.Title, "lines", len(sc.Lines), "bytes", len(final),
		"stored", stored != nil)

	return &Result{Script: sc, Audio: final, Stored: stored}, nil
}

// fail emits the terminal error event and wraps err with stage context.
func (p *Pipeline) fail(ctx context.Context, sink Sink, code, stage string, err error) error {
	observe.Logger(ctx).Error("generation failed", "stage", stage, "error", err)
	emit(sink, Event{Name: EventError, Data: ErrorData{
		Code:   code,
		Error:  "Failed to generate podcast",
		Reason: err.Error(),
	}})
	return fmt.Errorf("pipeline: %s: %w", stage, err)
}

// timedLLM wraps one text-generation call with a duration metric.
func timedLLM[T any](ctx context.Context, m *observe.Metrics, operation string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(ctx)
	m.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("operation", operation)))
	return out, err
}

// validateRequest enforces the fail-fast input rules.
func validateRequest(req podcast.GenerateRequest) *InputError {
	if strings.TrimSpace(req.Topic) == "" || req.Tone == "" || req.Duration == "" {
		return &InputError{
			Code:     "missing_fields",
			Message:  "Missing required fields",
			Required: []string{"topic", "tone", "duration"},
		}
	}
	if !req.Tone.IsValid() {
		return &InputError{
			Code:    "invalid_tone",
			Message: "Invalid tone. Must be: casual, educational, or humorous",
		}
	}
	if !req.Duration.IsValid() {
		return &InputError{
			Code:    "invalid_duration",
			Message: "Invalid duration. Must be: short or medium",
		}
	}
	return nil
}

// speakerSummaries maps speakers to their public form: voice assignments are
// withheld from clients.
func speakerSummaries(speakers []podcast.Speaker) []SpeakerSummary {
	out := make([]SpeakerSummary, len(speakers))
	for i, sp := range speakers {
		out[i] = SpeakerSummary{Name: sp.Name, Personality: sp.Personality}
	}
	return out
}
