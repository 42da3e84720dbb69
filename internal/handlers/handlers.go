// Package handlers provides the JSON HTTP API
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/findosh/shiller/internal/middleware"
	"github.com/findosh/shiller/internal/models"
	"github.com/findosh/shiller/internal/services/auth"
	"github.com/findosh/shiller/internal/services/registry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// Handler contains all HTTP handlers and dependencies
type Handler struct {
	sessions    *registry.Registry
	authService *auth.Service
}

// New creates a new handler with all dependencies
func New(sessions *registry.Registry, authService *auth.Service) *Handler {
	return &Handler{
		sessions:    sessions,
		authService: authService,
	}
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched
// unless required is set.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}, required bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) && !required {
		return true
	}
	if err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// sessionID parses the {id} URL parameter; malformed ids are reported as unknown sessions
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, "session not found", http.StatusNotFound)
		return uuid.Nil, false
	}
	return id, true
}

// trainer returns the authenticated trainer; RequireAuth guarantees one
func (h *Handler) trainer(r *http.Request) *models.Trainer {
	return middleware.GetTrainer(r)
}

// writeStatus translates a non-ok registry outcome and reports whether it wrote a response
func (h *Handler) writeStatus(w http.ResponseWriter, res registry.Result) bool {
	switch res.Status {
	case registry.StatusOK:
		return false
	case registry.StatusNotFound:
		h.jsonError(w, "session not found", http.StatusNotFound)
	case registry.StatusForbidden:
		h.jsonError(w, "forbidden", http.StatusForbidden)
	case registry.StatusClosed:
		h.jsonError(w, "session closed", http.StatusConflict)
	default:
		h.jsonError(w, "internal server error", http.StatusInternalServerError)
	}
	return true
}

// writeErr maps registry and auth errors to responses
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrValidation):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, registry.ErrStoreUnavailable), errors.Is(err, registry.ErrCodeGenerationExhausted):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("service unavailable")
		h.jsonError(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		h.jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

// json writes a JSON response
func (h *Handler) json(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// jsonError writes a JSON error response
func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	h.json(w, status, map[string]string{"error": message})
}
