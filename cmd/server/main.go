// Shiller - live vital-signs training sessions
// Entry point for the API and WebSocket server
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/findosh/shiller/internal/broadcast"
	"github.com/findosh/shiller/internal/config"
	"github.com/findosh/shiller/internal/handlers"
	"github.com/findosh/shiller/internal/metrics"
	"github.com/findosh/shiller/internal/middleware"
	"github.com/findosh/shiller/internal/services/auth"
	"github.com/findosh/shiller/internal/services/registry"
	"github.com/findosh/shiller/internal/services/sweeper"
	"github.com/findosh/shiller/internal/storage"
	"github.com/findosh/shiller/internal/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	setupLogger(cfg)

	// Initialize storage
	sessionStore, trainerStore, closeStore := openStores(cfg)
	defer closeStore()

	// Initialize services
	hub := broadcast.NewHub()
	hub.OnChange = metrics.SetSubscribers

	sessions := registry.New(sessionStore, hub, registry.WithSessionDuration(cfg.SessionDuration))
	authService := auth.NewService(trainerStore, cfg.SecretKey, cfg.TokenDuration)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := authService.EnsureDemoTrainer(ctx, cfg.DemoEmail, cfg.DemoPassword); err != nil {
		log.Fatal().Err(err).Msg("failed to seed demo trainer")
	}

	go sweeper.New(sessions, cfg.SweepInterval).Start(ctx)

	// Setup routes
	router := handlers.NewRouter(handlers.New(sessions, authService), handlers.RouterConfig{
		Auth:          middleware.NewAuth(authService),
		WebSocket:     ws.NewServer(sessions, hub, cfg.OriginAllowed),
		Metrics:       promhttp.Handler(),
		OriginAllowed: cfg.OriginAllowed,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Environment).
			Str("store", cfg.StoreDriver).
			Msg("shiller server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.IsDevelopment() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func openStores(cfg *config.Config) (registry.Store, auth.TrainerStore, func()) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory store; sessions are lost on restart")
		return storage.NewMemoryStore(), storage.NewMemoryTrainerStore(), func() {}
	}

	db, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	return storage.NewSessionRepository(db), storage.NewTrainerRepository(db), func() { db.Close() }
}
