package models

import (
	"time"

	"github.com/google/uuid"
)

// Event names published on a session topic
const (
	EventSessionValues  = "session-values"
	EventSessionExpired = "session-expired"
)

// Reasons carried by a session-expired event
const (
	ReasonClosed   = "closed"
	ReasonExpired  = "expired"
	ReasonNotFound = "not-found"
)

// ValuesEvent is the payload of a session-values event
type ValuesEvent struct {
	SessionID  uuid.UUID  `json:"sessionId"`
	Systolic   int        `json:"systolic"`
	Diastolic  int        `json:"diastolic"`
	HeartRate  int        `json:"heartRate"`
	SpO2       int        `json:"spo2"`
	SensorsOn  *bool      `json:"sensorsOn,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	OutOfRange OutOfRange `json:"outOfRange"`
}

// NewValuesEvent builds a session-values payload with freshly computed flags
func NewValuesEvent(sessionID uuid.UUID, v Vitals, at time.Time) ValuesEvent {
	return ValuesEvent{
		SessionID:  sessionID,
		Systolic:   v.Systolic,
		Diastolic:  v.Diastolic,
		HeartRate:  v.HeartRate,
		SpO2:       v.SpO2,
		SensorsOn:  v.SensorsOn,
		Timestamp:  at,
		OutOfRange: Evaluate(v),
	}
}

// ExpiredEvent is the payload of a session-expired event.
// SessionID is omitted when the session could not be resolved.
type ExpiredEvent struct {
	SessionID *uuid.UUID `json:"sessionId,omitempty"`
	Reason    string     `json:"reason"`
}

// NewExpiredEvent builds a session-expired payload for a known session
func NewExpiredEvent(sessionID uuid.UUID, reason string) ExpiredEvent {
	return ExpiredEvent{SessionID: &sessionID, Reason: reason}
}
