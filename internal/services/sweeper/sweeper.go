// Package sweeper periodically closes sessions that outlived their expiry
package sweeper

import (
	"context"
	"time"

	"github.com/findosh/shiller/internal/metrics"
	"github.com/findosh/shiller/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is how often due sessions are collected
const DefaultInterval = 60 * time.Second

// Expirer closes every session past its expiry
type Expirer interface {
	ExpireDueSessions(ctx context.Context) ([]*models.Session, error)
}

// Sweeper drives an Expirer on a fixed interval
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
}

// New creates a sweeper; a non-positive interval falls back to DefaultInterval
func New(expirer Expirer, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{expirer: expirer, interval: interval}
}

// Interval returns the tick period
func (s *Sweeper) Interval() time.Duration {
	return s.interval
}

// Start sweeps once immediately, then on every tick until ctx is done.
// It blocks; run it in its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("session sweeper started")
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and reports how many sessions it closed.
// Failures are logged; the next tick retries.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	expired, err := s.expirer.ExpireDueSessions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return len(expired)
		}
		metrics.SweepRuns.WithLabelValues("error").Inc()
		log.Error().Err(err).Int("expired", len(expired)).Msg("session sweep failed")
		return len(expired)
	}

	metrics.SweepRuns.WithLabelValues("ok").Inc()
	for _, sess := range expired {
		log.Info().Str("session_id", sess.ID.String()).Str("code", sess.Code).Msg("session expired")
	}
	return len(expired)
}
