// Package server exposes the Kotomo HTTP API: podcast generation (buffered
// and streamed), the voice catalogue, stored episode listing and download,
// plus health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kotomo-ai/kotomo/internal/health"
	"github.com/kotomo-ai/kotomo/internal/observe"
	"github.com/kotomo-ai/kotomo/internal/pipeline"
	"github.com/kotomo-ai/kotomo/pkg/podcast"
)

// Generator runs one podcast generation to its terminal outcome.
type Generator interface {
	Run(ctx context.Context, req podcast.GenerateRequest, sink pipeline.Sink) (*pipeline.Result, error)
}

// Library reads and removes previously stored episodes.
type Library interface {
	Enabled() bool
	List(ctx context.Context, limit int) ([]podcast.StoredPodcast, error)
	Download(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

// Config holds the HTTP server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// ShutdownTimeout bounds graceful shutdown. Defaults to 15s.
	ShutdownTimeout time.Duration
}

// Server is the Kotomo HTTP API server.
type Server struct {
	cfg     Config
	gen     Generator
	library Library
	health  *health.Handler
	metrics *observe.Metrics
}

// New creates a Server. metrics may be nil, in which case the package-level
// default is used.
func New(cfg Config, gen Generator, library Library, healthHandler *health.Handler, metrics *observe.Metrics) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{
		cfg:     cfg,
		gen:     gen,
		library: library,
		health:  healthHandler,
		metrics: metrics,
	}
}

// Handler builds the full route table. API routes run behind the observe
// middleware; health and metrics endpoints stay outside it to keep probe
// traffic out of request telemetry.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/generate", s.handleGenerate)
	api.HandleFunc("POST /api/generate/stream", s.handleGenerateStream)
	api.HandleFunc("GET /api/voices", s.handleVoices)
	api.HandleFunc("GET /api/podcasts", s.handlePodcasts)
	api.HandleFunc("DELETE /api/podcasts/{name}", s.handleDeletePodcast)
	api.HandleFunc("GET /api/audio/{name}", s.handleAudio)

	root := http.NewServeMux()
	root.Handle("/api/", observe.Middleware(s.metrics)(api))
	s.health.Register(root)
	root.Handle("GET /metrics", promhttp.Handler())
	return root
}

// Run serves the API until ctx is cancelled, then shuts down gracefully
// within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
		// Generation runs for minutes; only bound the header read.
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		slog.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
