// Package registry owns training session state: creation, live values,
// ownership checks, closing and expiry, and publication of session events.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/findosh/shiller/internal/broadcast"
	"github.com/findosh/shiller/internal/ident"
	"github.com/findosh/shiller/internal/metrics"
	"github.com/findosh/shiller/internal/models"
	"github.com/findosh/shiller/internal/storage"
	"github.com/google/uuid"
)

var (
	ErrValidation              = errors.New("validation error")
	ErrCodeGenerationExhausted = errors.New("could not generate a unique session code")
	ErrStoreUnavailable        = errors.New("session store unavailable")
)

// guard outcomes raised inside store mutations
var (
	errForbidden     = errors.New("forbidden")
	errClosed        = errors.New("closed")
	errAlreadyClosed = errors.New("already closed")
	errNotDue        = errors.New("not due")
)

const (
	DefaultSessionDuration = time.Hour
	DefaultMaxCodeAttempts = 5
)

// Store is the persistence contract the registry relies on
type Store interface {
	Create(ctx context.Context, s *models.Session, initial *models.SessionEvent) error
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Update(ctx context.Context, id uuid.UUID, fn storage.Mutation) (*models.Session, error)
	ListByTrainer(ctx context.Context, trainerID uuid.UUID) ([]*models.Session, error)
	FindActiveByCode(ctx context.Context, code string, now time.Time) (*models.Session, error)
	ListExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// Channel is the publish/subscribe surface, one topic per session
type Channel interface {
	Subscribe(topic string, sub broadcast.Subscriber)
	Publish(topic string, ev broadcast.Event) int
	CloseTopic(topic string)
}

// Status is the outcome of an operation that callers are expected to handle
type Status string

const (
	StatusOK        Status = "ok"
	StatusNotFound  Status = "not-found"
	StatusForbidden Status = "forbidden"
	StatusClosed    Status = "closed"
)

// Result carries the status of an operation and its payload on success
type Result struct {
	Status    Status
	Session   *models.Session
	Snapshot  *models.Snapshot
	Timestamp time.Time
}

// OK reports whether the operation succeeded
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Registry is the session business logic
type Registry struct {
	store           Store
	channel         Channel
	clock           ident.Clock
	newCode         ident.CodeGenerator
	sessionDuration time.Duration
	maxCodeAttempts int
	locks           *keyedMutex
}

// Option customizes a Registry
type Option func(*Registry)

// WithClock overrides the time source
func WithClock(c ident.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithCodeGenerator overrides the join code generator
func WithCodeGenerator(g ident.CodeGenerator) Option {
	return func(r *Registry) { r.newCode = g }
}

// WithSessionDuration sets how long a new session stays joinable
func WithSessionDuration(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.sessionDuration = d
		}
	}
}

// WithMaxCodeAttempts bounds the code collision retries
func WithMaxCodeAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxCodeAttempts = n
		}
	}
}

// New creates a registry over store, publishing on channel
func New(store Store, channel Channel, opts ...Option) *Registry {
	r := &Registry{
		store:           store,
		channel:         channel,
		clock:           ident.SystemClock{},
		newCode:         ident.NewCode,
		sessionDuration: DefaultSessionDuration,
		maxCodeAttempts: DefaultMaxCodeAttempts,
		locks:           newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateSession opens a new session for trainerID with a fresh join code
func (r *Registry) CreateSession(ctx context.Context, trainerID uuid.UUID, traineeName *string) (*models.Session, error) {
	now := r.clock.Now()
	name := SanitizeName(traineeName)

	for attempt := 0; attempt < r.maxCodeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session code: %w", err)
		}

		s := &models.Session{
			ID:          ident.NewID(),
			TrainerID:   trainerID,
			Code:        code,
			TraineeName: name,
			CreatedAt:   now,
			ExpiresAt:   now.Add(r.sessionDuration),
			LastValues:  models.DefaultVitals(),
		}

		err = r.store.Create(ctx, s, models.NewSessionEvent(s.ID, s.LastValues, now))
		if errors.Is(err, storage.ErrCodeTaken) {
			metrics.CodeCollisions.Inc()
			continue
		}
		if err != nil {
			return nil, unavailable(err)
		}

		metrics.SessionsCreated.Inc()
		return s, nil
	}

	return nil, ErrCodeGenerationExhausted
}

// ListSessions returns every session owned by trainerID, newest first
func (r *Registry) ListSessions(ctx context.Context, trainerID uuid.UUID) ([]*models.Session, error) {
	sessions, err := r.store.ListByTrainer(ctx, trainerID)
	if err != nil {
		return nil, unavailable(err)
	}
	return sessions, nil
}

// UpdateValues replaces the vitals of an active session and broadcasts them
func (r *Registry) UpdateValues(ctx context.Context, sessionID, trainerID uuid.UUID, input models.VitalsInput) (Result, error) {
	vitals, err := ValidateVitals(input)
	if err != nil {
		return Result{}, err
	}

	unlock := r.locks.Lock(sessionID)
	defer unlock()

	var at time.Time
	s, status, err := r.guarded(ctx, sessionID, trainerID, func(s *models.Session, now time.Time) (*models.SessionEvent, error) {
		vitals.SensorsOn = s.LastValues.SensorsOn
		s.LastValues = vitals
		at = now
		return models.NewSessionEvent(s.ID, vitals, now), nil
	})
	if err != nil || status != StatusOK {
		return Result{Status: status}, err
	}

	r.publishValues(s, at)
	metrics.ValueUpdates.Inc()
	return Result{Status: StatusOK, Session: s, Timestamp: at}, nil
}

// RenameTrainee changes the trainee name of an active session
func (r *Registry) RenameTrainee(ctx context.Context, sessionID, trainerID uuid.UUID, name *string) (Result, error) {
	unlock := r.locks.Lock(sessionID)
	defer unlock()

	sanitized := SanitizeName(name)
	s, status, err := r.guarded(ctx, sessionID, trainerID, func(s *models.Session, _ time.Time) (*models.SessionEvent, error) {
		s.TraineeName = sanitized
		return nil, nil
	})
	if err != nil || status != StatusOK {
		return Result{Status: status}, err
	}
	return Result{Status: StatusOK, Session: s}, nil
}

// SetSensorsFlag toggles whether the simulated sensors are attached and
// rebroadcasts the full vitals
func (r *Registry) SetSensorsFlag(ctx context.Context, sessionID, trainerID uuid.UUID, on bool) (Result, error) {
	unlock := r.locks.Lock(sessionID)
	defer unlock()

	var at time.Time
	s, status, err := r.guarded(ctx, sessionID, trainerID, func(s *models.Session, now time.Time) (*models.SessionEvent, error) {
		flag := on
		s.LastValues.SensorsOn = &flag
		at = now
		return nil, nil
	})
	if err != nil || status != StatusOK {
		return Result{Status: status}, err
	}

	r.publishValues(s, at)
	return Result{Status: StatusOK, Session: s, Timestamp: at}, nil
}

// CloseSession ends a session on behalf of its trainer.
// Closing an already closed session succeeds without publishing again.
func (r *Registry) CloseSession(ctx context.Context, sessionID, trainerID uuid.UUID) (Result, error) {
	unlock := r.locks.Lock(sessionID)
	defer unlock()

	now := r.clock.Now()
	s, err := r.store.Update(ctx, sessionID, func(s *models.Session) (*models.SessionEvent, error) {
		if s.TrainerID != trainerID {
			return nil, errForbidden
		}
		if s.IsClosed() {
			return nil, errAlreadyClosed
		}
		s.ClosedAt = &now
		return nil, nil
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return Result{Status: StatusNotFound}, nil
	case errors.Is(err, errForbidden):
		return Result{Status: StatusForbidden}, nil
	case errors.Is(err, errAlreadyClosed):
		return Result{Status: StatusOK}, nil
	case err != nil:
		return Result{}, unavailable(err)
	}

	r.end(s, models.ReasonClosed)
	return Result{Status: StatusOK, Session: s, Timestamp: now}, nil
}

// JoinByCode resolves an active session for a trainee. No ownership check.
func (r *Registry) JoinByCode(ctx context.Context, code string) (Result, error) {
	code, err := ValidateCode(code)
	if err != nil {
		return Result{}, err
	}

	s, err := r.store.FindActiveByCode(ctx, code, r.clock.Now())
	if errors.Is(err, storage.ErrNotFound) {
		return Result{Status: StatusNotFound}, nil
	}
	if err != nil {
		return Result{}, unavailable(err)
	}
	return Result{Status: StatusOK, Session: s, Snapshot: s.Snapshot()}, nil
}

// Attach subscribes sub to the session holding code and sends it the
// current values. Membership is registered under the session lock, so a
// concurrent close always sees and disconnects the new subscriber.
func (r *Registry) Attach(ctx context.Context, code string, sub broadcast.Subscriber) (Result, error) {
	res, err := r.JoinByCode(ctx, code)
	if err != nil || !res.OK() {
		return res, err
	}

	id := res.Session.ID
	unlock := r.locks.Lock(id)
	defer unlock()

	now := r.clock.Now()
	s, err := r.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return Result{Status: StatusNotFound}, nil
	}
	if err != nil {
		return Result{}, unavailable(err)
	}
	if !s.IsActive(now) {
		return Result{Status: StatusNotFound}, nil
	}

	r.channel.Subscribe(Topic(id), sub)
	sub.Send(broadcast.Event{
		Name:    models.EventSessionValues,
		Payload: models.NewValuesEvent(s.ID, s.LastValues, now),
	})
	return Result{Status: StatusOK, Session: s, Snapshot: s.Snapshot(), Timestamp: now}, nil
}

// ExpireDueSessions closes every open session past its expiry and notifies
// its subscribers. Each session transitions at most once even when sweeps
// overlap with each other or with trainer closes.
func (r *Registry) ExpireDueSessions(ctx context.Context) ([]*models.Session, error) {
	now := r.clock.Now()
	ids, err := r.store.ListExpired(ctx, now)
	if err != nil {
		return nil, unavailable(err)
	}

	expired := []*models.Session{}
	var errs []error
	for _, id := range ids {
		s, err := r.expire(ctx, id, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if s != nil {
			expired = append(expired, s)
		}
	}

	return expired, errors.Join(errs...)
}

func (r *Registry) expire(ctx context.Context, id uuid.UUID, now time.Time) (*models.Session, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	s, err := r.store.Update(ctx, id, func(s *models.Session) (*models.SessionEvent, error) {
		if s.IsClosed() || !s.IsExpired(now) {
			return nil, errNotDue
		}
		s.ClosedAt = &now
		return nil, nil
	})
	if errors.Is(err, errNotDue) || errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}

	r.end(s, models.ReasonExpired)
	return s, nil
}

// guarded runs fn under the standard NotFound, Forbidden, Closed checks
func (r *Registry) guarded(ctx context.Context, sessionID, trainerID uuid.UUID, fn func(s *models.Session, now time.Time) (*models.SessionEvent, error)) (*models.Session, Status, error) {
	now := r.clock.Now()
	s, err := r.store.Update(ctx, sessionID, func(s *models.Session) (*models.SessionEvent, error) {
		if s.TrainerID != trainerID {
			return nil, errForbidden
		}
		if !s.IsActive(now) {
			return nil, errClosed
		}
		return fn(s, now)
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, StatusNotFound, nil
	case errors.Is(err, errForbidden):
		return nil, StatusForbidden, nil
	case errors.Is(err, errClosed):
		return nil, StatusClosed, nil
	case err != nil:
		return nil, "", unavailable(err)
	}
	return s, StatusOK, nil
}

func (r *Registry) publishValues(s *models.Session, at time.Time) {
	r.channel.Publish(Topic(s.ID), broadcast.Event{
		Name:    models.EventSessionValues,
		Payload: models.NewValuesEvent(s.ID, s.LastValues, at),
	})
}

func (r *Registry) end(s *models.Session, reason string) {
	r.channel.Publish(Topic(s.ID), broadcast.Event{
		Name:    models.EventSessionExpired,
		Payload: models.NewExpiredEvent(s.ID, reason),
	})
	r.channel.CloseTopic(Topic(s.ID))
	metrics.SessionsClosed.WithLabelValues(reason).Inc()
}

// Topic names the broadcast topic of a session
func Topic(id uuid.UUID) string {
	return id.String()
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
