package credentialstatus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
)

// ListSigner attaches an issuer proof to a status list credential.
// *vc.Service implements it.
type ListSigner interface {
	SignCredential(ctx context.Context, credential *model.VerifiableCredential) (*model.VerifiableCredential, error)
}

// Handler publishes the registry's status lists over HTTP.
type Handler struct {
	registry *Registry
	signer   ListSigner
	logger   *slog.Logger
}

// NewHandler creates a Handler. A nil signer publishes unsigned lists.
func NewHandler(registry *Registry, signer ListSigner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{registry: registry, signer: signer, logger: logger}
}

// Register registers the status list routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get(statusPathPrefix+"{listID}", h.handleGetStatusList)
}

func (h *Handler) handleGetStatusList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listID := chi.URLParam(r, "listID")

	credential, err := h.registry.StatusListCredential(ctx, listID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "status list not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to build status list", "list_id", listID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build status list")
		return
	}

	if h.signer != nil {
		credential, err = h.signer.SignCredential(ctx, credential)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to sign status list", "list_id", listID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to sign status list")
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(credential); err != nil {
		h.logger.WarnContext(ctx, "failed to write status list", "list_id", listID, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
