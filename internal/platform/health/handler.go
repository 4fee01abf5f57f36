// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// Handler provides health check endpoints.
type Handler struct {
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// New creates a Handler whose readiness checks each run within timeout.
func New(timeout time.Duration) *Handler {
	return &Handler{timeout: timeout, checks: make(map[string]CheckFunc)}
}

// RegisterCheck adds a named readiness check.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Register mounts the probe routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health/live", h.handleLiveness)
	r.Get("/health/ready", h.handleReadiness)
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, readinessResponse{Status: "alive"})
}

func (h *Handler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := maps.Clone(h.checks)
	h.mu.RUnlock()

	resp := readinessResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
	code := http.StatusOK
	for name, check := range checks {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := check(ctx)
		cancel()
		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "not ready"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
