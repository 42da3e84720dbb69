package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/findosh/shiller/internal/services/auth"
	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges trainer credentials for a bearer token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		h.jsonError(w, "email and password required", http.StatusBadRequest)
		return
	}

	result, err := h.authService.Login(r.Context(), email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	log.Info().Str("trainer_id", result.Trainer.ID.String()).Msg("trainer logged in")
	h.json(w, http.StatusOK, map[string]interface{}{
		"token":     result.Token,
		"expiresAt": result.Expires,
		"trainer":   result.Trainer,
	})
}
