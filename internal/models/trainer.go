// Package models defines core domain types
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Trainer represents an authenticated trainer who owns sessions
type Trainer struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize to JSON
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewTrainer creates a new trainer with generated ID and timestamps
func NewTrainer(email, passwordHash string) *Trainer {
	now := time.Now().UTC()
	return &Trainer{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
