package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nats-io/nats.go"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kotomo-ai/kotomo/internal/health"
	"github.com/kotomo-ai/kotomo/internal/observe"
	"github.com/kotomo-ai/kotomo/internal/pipeline"
	"github.com/kotomo-ai/kotomo/pkg/podcast"
)

// fakeGen replays a scripted event sequence and returns a fixed outcome.
type fakeGen struct {
	events  []pipeline.Event
	res     *pipeline.Result
	err     error
	lastReq podcast.GenerateRequest
	calls   int
}

func (g *fakeGen) Run(_ context.Context, req podcast.GenerateRequest, sink pipeline.Sink) (*pipeline.Result, error) {
	g.calls++
	g.lastReq = req
	for _, e := range g.events {
		if sink != nil {
			sink(e)
		}
	}
	return g.res, g.err
}

// fakeLibrary is an in-memory Library.
type fakeLibrary struct {
	enabled bool
	list    []podcast.StoredPodcast
	listErr error
	objects map[string][]byte
}

func (l *fakeLibrary) Enabled() bool { return l.enabled }

func (l *fakeLibrary) List(_ context.Context, limit int) ([]podcast.StoredPodcast, error) {
	if l.listErr != nil {
		return nil, l.listErr
	}
	if limit > 0 && len(l.list) > limit {
		return l.list[:limit], nil
	}
	return l.list, nil
}

func (l *fakeLibrary) Download(_ context.Context, name string) ([]byte, error) {
	if !l.enabled {
		return nil, errors.New("store: not configured")
	}
	data, ok := l.objects[name]
	if !ok {
		return nil, fmt.Errorf("store: get %q: %w", name, nats.ErrObjectNotFound)
	}
	return data, nil
}

func (l *fakeLibrary) Delete(_ context.Context, name string) error {
	if !l.enabled {
		return errors.New("store: not configured")
	}
	if _, ok := l.objects[name]; !ok {
		return fmt.Errorf("store: delete %q: %w", name, nats.ErrObjectNotFound)
	}
	delete(l.objects, name)
	return nil
}

func newTestServer(t *testing.T, gen Generator, lib Library) *Server {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if lib == nil {
		lib = &fakeLibrary{}
	}
	h := health.New(health.Info{Service: "kotomo", Version: "test"})
	return New(Config{Addr: ":0"}, gen, lib, h, m)
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

const validBody = `{"topic": "quantum computing", "tone": "casual", "duration": "short"}`

func TestGenerate_Success(t *testing.T) {
	gen := &fakeGen{res: &pipeline.Result{Audio: []byte("mp3-bytes")}}
	srv := newTestServer(t, gen, nil)

	rec := postJSON(t, srv.Handler(), "/api/generate", validBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", ct)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="kotomo-`) || !strings.HasSuffix(cd, `.mp3"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != "mp3-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if gen.lastReq.Topic != "quantum computing" {
		t.Errorf("request topic = %q", gen.lastReq.Topic)
	}
}

func TestGenerate_InvalidJSON(t *testing.T) {
	gen := &fakeGen{}
	srv := newTestServer(t, gen, nil)

	rec := postJSON(t, srv.Handler(), "/api/generate", "{not json")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "invalid_json" {
		t.Errorf("code = %q, want invalid_json", e.Code)
	}
	if gen.calls != 0 {
		t.Errorf("pipeline ran %d times for invalid JSON", gen.calls)
	}
}

func TestGenerate_InputError(t *testing.T) {
	gen := &fakeGen{err: &pipeline.InputError{
		Code:     "missing_fields",
		Message:  "Missing required fields",
		Required: []string{"topic", "tone", "duration"},
	}}
	srv := newTestServer(t, gen, nil)

	rec := postJSON(t, srv.Handler(), "/api/generate", `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Code != "missing_fields" {
		t.Errorf("code = %q", e.Code)
	}
	if len(e.Required) != 3 {
		t.Errorf("required = %v", e.Required)
	}
}

func TestGenerate_Rejection(t *testing.T) {
	gen := &fakeGen{err: &pipeline.Rejection{Reason: "Topic is too vague"}}
	srv := newTestServer(t, gen, nil)

	rec := postJSON(t, srv.Handler(), "/api/generate", validBody)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Code != "invalid_topic" || e.Reason != "Topic is too vague" {
		t.Errorf("error = %+v", e)
	}
}

func TestGenerate_PipelineFailure(t *testing.T) {
	gen := &fakeGen{err: errors.New("backend exploded")}
	srv := newTestServer(t, gen, nil)

	rec := postJSON(t, srv.Handler(), "/api/generate", validBody)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "generation_failed" {
		t.Errorf("code = %q", e.Code)
	}
}

// sseEvent is one parsed frame of an event stream.
type sseEvent struct {
	name string
	data string
}

// parseSSE splits a response body into its event frames.
func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var out []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			default:
				t.Fatalf("unexpected SSE line %q", line)
			}
		}
		out = append(out, ev)
	}
	return out
}

func TestGenerateStream_ForwardsEvents(t *testing.T) {
	gen := &fakeGen{
		events: []pipeline.Event{
			{Name: pipeline.EventStatus, Data: pipeline.StatusData{Step: "started", Message: "Starting podcast generation"}},
			{Name: pipeline.EventValidated, Data: pipeline.ValidatedData{Step: "validated", CleanedTopic: "Quantum Computing"}},
			{Name: pipeline.EventComplete, Data: pipeline.CompleteData{Step: "complete", Title: "Ep", AudioBase64: "aGk="}},
		},
		res: &pipeline.Result{Audio: []byte("hi")},
	}
	srv := newTestServer(t, gen, nil)

	rec := postJSON(t, srv.Handler(), "/api/generate/stream", validBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	for header, want := range map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	events := parseSSE(t, rec.Body.String())
	if len(events) != 3 {
		t.Fatalf("event count = %d, want 3 (%q)", len(events), rec.Body.String())
	}
	wantNames := []string{"status", "validated", "complete"}
	for i, ev := range events {
		if ev.name != wantNames[i] {
			t.Errorf("event[%d] = %q, want %q", i, ev.name, wantNames[i])
		}
		if !json.Valid([]byte(ev.data)) {
			t.Errorf("event[%d] data is not valid JSON: %q", i, ev.data)
		}
	}

	var complete pipeline.CompleteData
	if err := json.Unmarshal([]byte(events[2].data), &complete); err != nil {
		t.Fatalf("unmarshal complete: %v", err)
	}
	if complete.AudioBase64 != "aGk=" {
		t.Errorf("audioBase64 = %q", complete.AudioBase64)
	}
}

func TestGenerateStream_InvalidJSON(t *testing.T) {
	gen := &fakeGen{}
	srv := newTestServer(t, gen, nil)

	rec := postJSON(t, srv.Handler(), "/api/generate/stream", "nope")

	events := parseSSE(t, rec.Body.String())
	if len(events) != 1 || events[0].name != "error" {
		t.Fatalf("events = %+v, want single error event", events)
	}
	if gen.calls != 0 {
		t.Errorf("pipeline ran for invalid JSON")
	}
}

func TestVoices(t *testing.T) {
	srv := newTestServer(t, &fakeGen{}, nil)

	req := httptest.NewRequest("GET", "/api/voices", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Voices []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"voices"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Voices) != 6 {
		t.Errorf("voice count = %d, want 6", len(body.Voices))
	}
	if body.Voices[0].ID != "voice1" {
		t.Errorf("first voice = %q, want voice1", body.Voices[0].ID)
	}
}

func TestPodcasts_StorageDisabled(t *testing.T) {
	srv := newTestServer(t, &fakeGen{}, &fakeLibrary{enabled: false})

	req := httptest.NewRequest("GET", "/api/podcasts", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Podcasts []podcast.StoredPodcast `json:"podcasts"`
		Message  string                  `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Podcasts) != 0 {
		t.Errorf("podcasts = %v, want empty", body.Podcasts)
	}
	if body.Message == "" {
		t.Error("missing explanatory message")
	}
}

func TestPodcasts_ListsStored(t *testing.T) {
	lib := &fakeLibrary{
		enabled: true,
		list: []podcast.StoredPodcast{
			{URL: "http://localhost:8080/api/audio/a.mp3", Pathname: "a.mp3", Size: 10},
			{URL: "http://localhost:8080/api/audio/b.mp3", Pathname: "b.mp3", Size: 20},
		},
	}
	srv := newTestServer(t, &fakeGen{}, lib)

	req := httptest.NewRequest("GET", "/api/podcasts", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Podcasts []podcast.StoredPodcast `json:"podcasts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Podcasts) != 2 {
		t.Errorf("podcasts = %d, want 2", len(body.Podcasts))
	}
}

func TestPodcasts_ListFailure(t *testing.T) {
	lib := &fakeLibrary{enabled: true, listErr: errors.New("bucket gone")}
	srv := newTestServer(t, &fakeGen{}, lib)

	req := httptest.NewRequest("GET", "/api/podcasts", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestAudio_Download(t *testing.T) {
	lib := &fakeLibrary{
		enabled: true,
		objects: map[string][]byte{"ep-123.mp3": []byte("audio-data")},
	}
	srv := newTestServer(t, &fakeGen{}, lib)

	req := httptest.NewRequest("GET", "/api/audio/ep-123.mp3", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "audio-data" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestAudio_NotFound(t *testing.T) {
	lib := &fakeLibrary{enabled: true, objects: map[string][]byte{}}
	srv := newTestServer(t, &fakeGen{}, lib)

	req := httptest.NewRequest("GET", "/api/audio/missing.mp3", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAudio_StorageDisabled(t *testing.T) {
	srv := newTestServer(t, &fakeGen{}, &fakeLibrary{enabled: false})

	req := httptest.NewRequest("GET", "/api/audio/ep.mp3", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeletePodcast(t *testing.T) {
	lib := &fakeLibrary{
		enabled: true,
		objects: map[string][]byte{"ep-123.mp3": []byte("audio-data")},
	}
	srv := newTestServer(t, &fakeGen{}, lib)

	req := httptest.NewRequest("DELETE", "/api/podcasts/ep-123.mp3", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, ok := lib.objects["ep-123.mp3"]; ok {
		t.Error("object still present after delete")
	}
}

func TestDeletePodcast_NotFound(t *testing.T) {
	lib := &fakeLibrary{enabled: true, objects: map[string][]byte{}}
	srv := newTestServer(t, &fakeGen{}, lib)

	req := httptest.NewRequest("DELETE", "/api/podcasts/missing.mp3", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandler_HealthRoutes(t *testing.T) {
	srv := newTestServer(t, &fakeGen{}, nil)
	h := srv.Handler()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestHandler_MetricsRoute(t *testing.T) {
	srv := newTestServer(t, &fakeGen{}, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", rec.Code)
	}
}
