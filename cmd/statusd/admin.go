package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/vc"
)

// statusChanger flips the status bits of stored credentials. *vc.Service
// implements it.
type statusChanger interface {
	RevokeCredential(ctx context.Context, id string) error
	SuspendCredential(ctx context.Context, id string) error
	ReinstateCredential(ctx context.Context, id string) error
}

var _ statusChanger = (*vc.Service)(nil)

type adminHandler struct {
	credentials statusChanger
	token       string
	logger      *slog.Logger
}

func (h *adminHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireToken)
		r.Post("/credentials/{id}/revoke", h.change("revoke", h.credentials.RevokeCredential))
		r.Post("/credentials/{id}/suspend", h.change("suspend", h.credentials.SuspendCredential))
		r.Post("/credentials/{id}/reinstate", h.change("reinstate", h.credentials.ReinstateCredential))
	})
}

func (h *adminHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			h.logger.WarnContext(r.Context(), "admin token mismatch", "request_id", middleware.GetReqID(r.Context()))
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "admin token required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *adminHandler) change(action string, apply func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		if err := apply(ctx, id); err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				h.logger.ErrorContext(ctx, "status change failed", "action", action, "credential_id", id, "error", err)
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		h.logger.InfoContext(ctx, "credential status changed", "action", action, "credential_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "action": action})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrValidation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
