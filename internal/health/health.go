// Package health provides HTTP health and readiness check handlers.
//
// The package exposes two endpoints:
//
//   - /healthz — liveness probe; always returns 200 OK with service and
//     storage information.
//   - /readyz  — readiness probe; returns 200 only when all registered
//     [Checker] functions pass.
//
// Readiness responses are JSON objects with a top-level "status" field ("ok"
// or "fail") and a "checks" map containing the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g. "storage",
	// "llm"). It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// Info describes the service in liveness responses.
type Info struct {
	// Service is the service name, e.g. "kotomo".
	Service string

	// Version is the build version string.
	Version string

	// StorageConfigured reports whether episode storage is available.
	StorageConfigured bool
}

// storageInfo is the storage block of the liveness response.
type storageInfo struct {
	Configured bool   `json:"configured"`
	Type       string `json:"type"`
}

// liveResult is the JSON response body for /healthz.
type liveResult struct {
	Status    string      `json:"status"`
	Service   string      `json:"service"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Storage   storageInfo `json:"storage"`
}

// readyResult is the JSON response body for /readyz.
type readyResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz endpoints. It is safe for concurrent
// use; the info and checker list are fixed at construction time.
type Handler struct {
	info     Info
	checkers []Checker
}

// New creates a [Handler] that reports info on /healthz and evaluates the
// given checkers on each /readyz request. The checkers are evaluated
// sequentially in the order provided.
func New(info Info, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{info: info, checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	storageType := "none"
	if h.info.StorageConfigured {
		storageType = "nats"
	}
	writeJSON(w, http.StatusOK, liveResult{
		Status:    "ok",
		Service:   h.info.Service,
		Version:   h.info.Version,
		Timestamp: time.Now().UTC(),
		Storage: storageInfo{
			Configured: h.info.StorageConfigured,
			Type:       storageType,
		},
	})
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker is given a context with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := readyResult{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
