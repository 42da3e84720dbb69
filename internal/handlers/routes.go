package handlers

import (
	"net/http"

	"github.com/findosh/shiller/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RouterConfig carries the pieces mounted next to the JSON API
type RouterConfig struct {
	Auth          *middleware.Auth
	WebSocket     http.Handler
	Metrics       http.Handler
	OriginAllowed func(origin string) bool
}

// NewRouter assembles the HTTP surface
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger, middleware.Recover)

	if cfg.WebSocket != nil {
		r.Handle("/ws", cfg.WebSocket)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)
		if cfg.OriginAllowed != nil {
			r.Use(middleware.CORS(cfg.OriginAllowed))
		}

		r.Get("/health", h.Health)
		r.Post("/auth/login", h.Login)
		r.Post("/public/session-join", h.JoinSession)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.RequireAuth)
			r.Get("/sessions", h.ListSessions)
			r.Post("/sessions", h.CreateSession)
			r.Patch("/sessions/{id}", h.RenameTrainee)
			r.Delete("/sessions/{id}", h.CloseSession)
			r.Post("/sessions/{id}/values", h.UpdateValues)
			r.Post("/sessions/{id}/sensors", h.SetSensors)
		})
	})

	return r
}
