package models

import (
	"time"

	"github.com/google/uuid"
)

// CodeLength is the number of digits in a session join code
const CodeLength = 6

// Session is a time-boxed training exercise with a join code and live vitals
type Session struct {
	ID          uuid.UUID  `json:"id"`
	TrainerID   uuid.UUID  `json:"trainerId"`
	Code        string     `json:"code"`
	TraineeName *string    `json:"traineeName"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	ClosedAt    *time.Time `json:"closedAt"`
	LastValues  Vitals     `json:"lastValues"`
	EventsCount int        `json:"eventsCount"`
}

// IsClosed reports whether the session reached its terminal state
func (s *Session) IsClosed() bool {
	return s.ClosedAt != nil
}

// IsExpired reports whether the session is past its expiry at now
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// IsActive reports whether the session is open and not yet expired
func (s *Session) IsActive(now time.Time) bool {
	return !s.IsClosed() && !s.IsExpired(now)
}

// Clone returns a deep copy safe to hand out of a store
func (s *Session) Clone() *Session {
	c := *s
	if s.TraineeName != nil {
		name := *s.TraineeName
		c.TraineeName = &name
	}
	if s.ClosedAt != nil {
		closed := *s.ClosedAt
		c.ClosedAt = &closed
	}
	if s.LastValues.SensorsOn != nil {
		on := *s.LastValues.SensorsOn
		c.LastValues.SensorsOn = &on
	}
	return &c
}

// Snapshot is the public view of a session handed to trainees.
// It never carries the owning trainer.
type Snapshot struct {
	ID                   uuid.UUID  `json:"id"`
	Code                 string     `json:"code"`
	ExpiresAt            time.Time  `json:"expiresAt"`
	TraineeName          *string    `json:"traineeName"`
	LastValues           Vitals     `json:"lastValues"`
	OutOfRange           OutOfRange `json:"outOfRange"`
	MeanArterialPressure int        `json:"meanArterialPressure"`
}

// Snapshot builds the public view of the session
func (s *Session) Snapshot() *Snapshot {
	c := s.Clone()
	return &Snapshot{
		ID:                   c.ID,
		Code:                 c.Code,
		ExpiresAt:            c.ExpiresAt,
		TraineeName:          c.TraineeName,
		LastValues:           c.LastValues,
		OutOfRange:           Evaluate(c.LastValues),
		MeanArterialPressure: MeanArterialPressure(c.LastValues.Systolic, c.LastValues.Diastolic),
	}
}

// SessionEvent is one append-only record of a value change
type SessionEvent struct {
	ID        uuid.UUID  `json:"id"`
	SessionID uuid.UUID  `json:"sessionId"`
	Vitals    Vitals     `json:"vitals"`
	Flags     OutOfRange `json:"flags"`
	CreatedAt time.Time  `json:"createdAt"`
}

// NewSessionEvent records a vitals snapshot with its computed flags
func NewSessionEvent(sessionID uuid.UUID, v Vitals, at time.Time) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		Vitals:    v,
		Flags:     Evaluate(v),
		CreatedAt: at,
	}
}
