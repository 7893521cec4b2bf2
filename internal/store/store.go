// Package store persists finished episodes in a NATS JetStream object store
// bucket.
//
// Storage is optional: when no NATS connection is configured the store is
// disabled and every operation fails with [ErrNotConfigured]. The
// orchestrator treats upload failure (including "not configured") as
// non-fatal and falls back to inline delivery; list/delete callers surface
// the failure directly.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kotomo-ai/kotomo/pkg/podcast"
)

// ErrNotConfigured is returned by every operation on a disabled store.
var ErrNotConfigured = errors.New("store: storage not configured")

// maxSlugLen bounds the title-derived part of a stored filename.
const maxSlugLen = 50

// contentType of every stored episode.
const contentType = "audio/mpeg"

// Store wraps a JetStream object store bucket holding finished episodes.
// A nil or zero Store is disabled. Store is safe for concurrent use.
type Store struct {
	bucket        string
	store         nats.ObjectStore
	publicBaseURL string

	// now is swappable for deterministic filename tests.
	now func() time.Time
}

// NewDisabled returns a Store on which Enabled reports false and every
// operation fails with [ErrNotConfigured].
func NewDisabled() *Store {
	return &Store{now: time.Now}
}

// New creates a Store over the given JetStream context, using a
// "create-first" approach: the bucket is created if missing, otherwise the
// existing bucket is bound. publicBaseURL (optional, no trailing slash) is
// prefixed to the audio route when building public URLs.
func New(js nats.JetStreamContext, bucket, publicBaseURL string) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("store: bucket must not be empty")
	}

	os, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("Finished podcast episodes (%s).", bucket),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("store: create bucket %q: %w", bucket, err)
		}
		os, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("store: bind bucket %q: %w", bucket, err)
		}
	}

	return &Store{
		bucket:        bucket,
		store:         os,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}, nil
}

// Enabled reports whether the store can persist episodes.
func (s *Store) Enabled() bool {
	return s != nil && s.store != nil
}

// Upload persists audio under a title-derived, timestamp-suffixed name and
// returns the stored artifact's descriptor.
func (s *Store) Upload(ctx context.Context, audio []byte, title string, meta podcast.UploadMetadata) (podcast.StoredPodcast, error) {
	if !s.Enabled() {
		return podcast.StoredPodcast{}, ErrNotConfigured
	}

	uploadedAt := s.now()
	name := SafeFilename(title, uploadedAt)

	objMeta := &nats.ObjectMeta{
		Name:        name,
		Description: title,
		Headers: nats.Header{
			"Content-Type": []string{contentType},
		},
		Metadata: map[string]string{
			"topic":      meta.Topic,
			"tone":       string(meta.Tone),
			"duration":   string(meta.Duration),
			"line_count": strconv.Itoa(meta.LineCount),
		},
	}

	if _, err := s.store.Put(objMeta, bytes.NewReader(audio)); err != nil {
		return podcast.StoredPodcast{}, fmt.Errorf("store: put %q to bucket %q: %w", name, s.bucket, err)
	}
	_ = ctx

	return podcast.StoredPodcast{
		URL:        s.urlFor(name),
		Pathname:   name,
		Size:       int64(len(audio)),
		UploadedAt: uploadedAt,
	}, nil
}

// List returns up to limit stored episodes, newest first. limit <= 0 means
// no limit.
func (s *Store) List(ctx context.Context, limit int) ([]podcast.StoredPodcast, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}

	infos, err := s.store.List()
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return []podcast.StoredPodcast{}, nil
		}
		return nil, fmt.Errorf("store: list bucket %q: %w", s.bucket, err)
	}
	_ = ctx

	out := make([]podcast.StoredPodcast, 0, len(infos))
	for _, info := range infos {
		if info.Deleted {
			continue
		}
		out = append(out, podcast.StoredPodcast{
			URL:        s.urlFor(info.Name),
			Pathname:   info.Name,
			Size:       int64(info.Size),
			UploadedAt: info.ModTime,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Download returns the audio bytes of a stored episode by name.
func (s *Store) Download(ctx context.Context, name string) ([]byte, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}

	obj, err := s.store.Get(name)
	if err != nil {
		return nil, fmt.Errorf("store: get %q from bucket %q: %w", name, s.bucket, err)
	}
	_ = ctx

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, fmt.Errorf("store: read %q: %w", name, readErr)
	}
	if closeErr != nil {
		return data, fmt.Errorf("store: close %q: %w", name, closeErr)
	}
	return data, nil
}

// Delete removes a stored episode by name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	if err := s.store.Delete(name); err != nil {
		return fmt.Errorf("store: delete %q from bucket %q: %w", name, s.bucket, err)
	}
	_ = ctx
	return nil
}

// urlFor builds the public URL under which the server serves a stored object.
func (s *Store) urlFor(name string) string {
	return s.publicBaseURL + "/api/audio/" + name
}

// SafeFilename derives a stored object name from an episode title: the title
// is lower-cased, runs of non-alphanumeric characters collapse to single
// dashes, leading/trailing dashes are stripped, the slug is truncated, and a
// millisecond timestamp suffix avoids collisions between same-titled
// episodes.
func SafeFilename(title string, ts time.Time) string {
	var b strings.Builder
	b.Grow(len(title))

	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		slug = "podcast"
	}

	return fmt.Sprintf("%s-%d.mp3", slug, ts.UnixMilli())
}
