package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kotomo-ai/kotomo/internal/observe"
	"github.com/kotomo-ai/kotomo/internal/pipeline"
	"github.com/kotomo-ai/kotomo/internal/synth"
	"github.com/kotomo-ai/kotomo/pkg/podcast"
)

// defaultListLimit caps /api/podcasts responses.
const defaultListLimit = 50

// apiError is the JSON error body of the REST routes.
type apiError struct {
	Code     string   `json:"code"`
	Error    string   `json:"error"`
	Reason   string   `json:"reason,omitempty"`
	Required []string `json:"required,omitempty"`
}

// handleGenerate runs the whole pipeline and responds with the finished
// episode as a single audio download.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req podcast.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{
			Code:  "invalid_json",
			Error: "Request body must be valid JSON",
		})
		return
	}

	res, err := s.gen.Run(r.Context(), req, nil)
	if err != nil {
		s.writeGenerationError(w, err)
		return
	}

	filename := fmt.Sprintf("kotomo-%d.mp3", time.Now().UnixMilli())
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Audio)))
	if _, err := w.Write(res.Audio); err != nil {
		observe.Logger(r.Context()).Warn("writing audio response failed", "error", err)
	}
}

// writeGenerationError maps pipeline failures onto HTTP status codes: input
// errors and content rejections are the client's to fix (400), everything
// else is a server-side failure (500).
func (s *Server) writeGenerationError(w http.ResponseWriter, err error) {
	var inErr *pipeline.InputError
	if errors.As(err, &inErr) {
		writeJSON(w, http.StatusBadRequest, apiError{
			Code:     inErr.Code,
			Error:    inErr.Message,
			Required: inErr.Required,
		})
		return
	}

	var rej *pipeline.Rejection
	if errors.As(err, &rej) {
		writeJSON(w, http.StatusBadRequest, apiError{
			Code:   "invalid_topic",
			Error:  "Invalid topic",
			Reason: rej.Reason,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, apiError{
		Code:   "generation_failed",
		Error:  "Failed to generate podcast",
		Reason: err.Error(),
	})
}

// handleGenerateStream runs the pipeline with every progress event pushed to
// the client as a server-sent event. The pipeline emits the terminal event
// itself, so the handler only forwards.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	sse, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	log := observe.Logger(r.Context())

	var req podcast.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = sse.Send(pipeline.EventError, pipeline.ErrorData{
			Code:  "invalid_json",
			Error: "Request body must be valid JSON",
		})
		return
	}

	// Delivery is fire-and-forget: a failed write means the client went
	// away, and the pipeline notices via the request context.
	sink := func(e pipeline.Event) {
		if err := sse.Send(e.Name, e.Data); err != nil {
			log.Debug("dropping event for disconnected client", "event", e.Name)
		}
	}

	if _, err := s.gen.Run(r.Context(), req, sink); err != nil {
		// Terminal error event already sent by the pipeline.
		log.Info("streamed generation ended with failure", "error", err)
	}
}

// handleVoices serves the static voice catalogue.
func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"voices": synth.Voices()})
}

// handlePodcasts lists stored episodes, newest first.
func (s *Server) handlePodcasts(w http.ResponseWriter, r *http.Request) {
	if !s.library.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{
			"podcasts": []podcast.StoredPodcast{},
			"message":  "Storage not configured. Set storage.url to enable.",
		})
		return
	}

	podcasts, err := s.library.List(r.Context(), defaultListLimit)
	if err != nil {
		observe.Logger(r.Context()).Error("listing podcasts failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, apiError{
			Code:  "list_failed",
			Error: "Failed to list podcasts",
		})
		return
	}
	if podcasts == nil {
		podcasts = []podcast.StoredPodcast{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"podcasts": podcasts})
}

// handleDeletePodcast removes one stored episode by object name.
func (s *Server) handleDeletePodcast(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := s.library.Delete(r.Context(), name); err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) || !s.library.Enabled() {
			writeJSON(w, http.StatusNotFound, apiError{
				Code:  "not_found",
				Error: "Podcast not found",
			})
			return
		}
		observe.Logger(r.Context()).Error("deleting podcast failed", "name", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, apiError{
			Code:  "delete_failed",
			Error: "Failed to delete podcast",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": name})
}

// handleAudio streams one stored episode by object name.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	data, err := s.library.Download(r.Context(), name)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) || !s.library.Enabled() {
			writeJSON(w, http.StatusNotFound, apiError{
				Code:  "not_found",
				Error: "Podcast not found",
			})
			return
		}
		observe.Logger(r.Context()).Error("downloading podcast failed", "name", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, apiError{
			Code:  "download_failed",
			Error: "Failed to download podcast",
		})
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := w.Write(data); err != nil {
		observe.Logger(r.Context()).Warn("writing audio response failed", "error", err)
	}
}

// writeJSON encodes v with the given status. Encoding failures surface as a
// plain 500; there is nothing better to send at that point.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
