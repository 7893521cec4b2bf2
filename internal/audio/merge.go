// Package audio implements the merge engine that joins ordered MP3 segments
// into one playable buffer.
//
// Two strategies exist. The primary shells out to ffmpeg's concat demuxer for
// a lossless frame-aware remux. The fallback is raw byte concatenation, which
// is valid specifically because MP3 frames are self-delimiting — naive
// concatenation of MP3 streams produces a playable file. The fallback must
// not be generalised to other codecs.
//
// Strategy selection is sticky per process: once ffmpeg is found unavailable
// (startup probe or first failure, including timeout), it is never retried
// for the remainder of the process lifetime.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kotomo-ai/kotomo/internal/observe"
	"github.com/kotomo-ai/kotomo/pkg/podcast"
)

// ErrNoSegments is returned when Merge is called with an empty segment list.
var ErrNoSegments = errors.New("audio: no segments to merge")

// defaultTimeout bounds one remux invocation.
const defaultTimeout = 30 * time.Second

// Runner executes the external mux tool. Injected so tests can exercise the
// degradation paths without a real ffmpeg binary.
type Runner func(ctx context.Context, name string, args ...string) error

// execRunner runs the command through os/exec, folding stderr into the error.
func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (output: %.512s)", name, err, out)
	}
	return nil
}

// Merger joins ordered audio segments. It is safe for concurrent use; the
// only mutable state is the sticky degradation flag.
type Merger struct {
	ffmpegPath string
	timeout    time.Duration
	tempDir    string
	run        Runner
	skipProbe  bool

	// degraded is set once and never cleared.
	degraded atomic.Bool
}

// Option is a functional option for configuring a Merger.
type Option func(*Merger)

// WithFFmpegPath overrides the ffmpeg binary path (default "ffmpeg", resolved
// via PATH).
func WithFFmpegPath(path string) Option {
	return func(m *Merger) {
		if path != "" {
			m.ffmpegPath = path
		}
	}
}

// WithTimeout overrides the per-remux timeout. Default is 30s.
func WithTimeout(d time.Duration) Option {
	return func(m *Merger) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithTempDir overrides the directory for intermediate segment files.
// Default is os.TempDir().
func WithTempDir(dir string) Option {
	return func(m *Merger) {
		if dir != "" {
			m.tempDir = dir
		}
	}
}

// WithRunner replaces the command runner and skips the PATH probe.
// Intended for tests.
func WithRunner(r Runner) Option {
	return func(m *Merger) {
		if r != nil {
			m.run = r
			m.skipProbe = true
		}
	}
}

// NewMerger creates a Merger and probes for the mux tool. When the binary is
// not on the PATH the merger starts out degraded and only ever concatenates.
func NewMerger(opts ...Option) *Merger {
	m := &Merger{
		ffmpegPath: "ffmpeg",
		timeout:    defaultTimeout,
		tempDir:    os.TempDir(),
		run:        execRunner,
	}
	for _, o := range opts {
		o(m)
	}

	if !m.skipProbe {
		if _, err := exec.LookPath(m.ffmpegPath); err != nil {
			m.degraded.Store(true)
		}
	}
	return m
}

// Degraded reports whether the merger has permanently fallen back to raw
// concatenation.
func (m *Merger) Degraded() bool {
	return m.degraded.Load()
}

// Merge joins segments in order into one MP3 buffer.
//
// An empty list fails with [ErrNoSegments]. A single segment is returned
// byte-identical without invoking any strategy. Otherwise the remux strategy
// is used unless the merger is degraded; a remux failure degrades the merger
// for the rest of the process and the call completes via concatenation.
func (m *Merger) Merge(ctx context.Context, segments []podcast.AudioSegment) ([]byte, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	if len(segments) == 1 {
		return segments[0].Audio, nil
	}

	if !m.degraded.Load() {
		merged, err := m.remux(ctx, segments)
		if err == nil {
			return merged, nil
		}
		// Do not degrade when the caller went away — the tool is fine.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("audio: merge cancelled: %w", ctx.Err())
		}
		m.degraded.Store(true)
		observe.Logger(ctx).Warn("remux failed; falling back to raw concatenation for the rest of this process",
			"error", err)
	}

	return concat(segments), nil
}

// remux writes the segments to temp files and joins them with ffmpeg's
// concat demuxer (stream copy, no re-encode). All temp files are removed on
// every return path; removal failures are logged and swallowed.
func (m *Merger) remux(ctx context.Context, segments []podcast.AudioSegment) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	id := uuid.NewString()
	var tempFiles []string
	defer func() {
		for _, f := range tempFiles {
			if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
				observe.Logger(ctx).Warn("failed to remove merge temp file", "file", f, "error", err)
			}
		}
	}()

	listContent := make([]byte, 0, len(segments)*64)
	for i, seg := range segments {
		path := filepath.Join(m.tempDir, fmt.Sprintf("segment-%d-%s.mp3", i, id))
		if err := os.WriteFile(path, seg.Audio, 0o600); err != nil {
			return nil, fmt.Errorf("audio: write segment %d: %w", i, err)
		}
		tempFiles = append(tempFiles, path)
		listContent = append(listContent, fmt.Sprintf("file '%s'\n", path)...)
	}

	listFile := filepath.Join(m.tempDir, fmt.Sprintf("list-%s.txt", id))
	if err := os.WriteFile(listFile, listContent, 0o600); err != nil {
		return nil, fmt.Errorf("audio: write concat list: %w", err)
	}
	tempFiles = append(tempFiles, listFile)

	outputFile := filepath.Join(m.tempDir, fmt.Sprintf("output-%s.mp3", id))
	tempFiles = append(tempFiles, outputFile)

	err := m.run(ctx, m.ffmpegPath,
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		"-y", outputFile,
	)
	if err != nil {
		return nil, fmt.Errorf("audio: remux: %w", err)
	}

	merged, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, fmt.Errorf("audio: read remux output: %w", err)
	}
	return merged, nil
}

// concat joins the segment buffers back to back. Valid for MP3 only.
func concat(segments []podcast.AudioSegment) []byte {
	total := 0
	for _, seg := range segments {
		total += len(seg.Audio)
	}
	merged := make([]byte, 0, total)
	for _, seg := range segments {
		merged = append(merged, seg.Audio...)
	}
	return merged
}
