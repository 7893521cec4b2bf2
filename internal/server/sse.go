package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// errStreamingUnsupported is returned when the response writer cannot flush,
// which makes server-sent events pointless.
var errStreamingUnsupported = errors.New("server: response writer does not support streaming")

// sseWriter writes server-sent events and flushes after every event so
// clients see progress immediately. Not safe for concurrent use; the
// pipeline's sink calls are already serialized.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

// newSSEWriter prepares w for an event stream: content type, cache and
// keep-alive headers, and an explicit no-buffering instruction for
// intermediaries.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &sseWriter{w: w, f: f}, nil
}

// Send writes one named event with data marshalled as its JSON payload and
// flushes.
func (s *sseWriter) Send(name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("server: marshal %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return fmt.Errorf("server: write %s event: %w", name, err)
	}
	s.f.Flush()
	return nil
}
