// Package ident provides the time source and random identifiers used by the registry
package ident

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts the current time so expiry can be tested
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock is a manually advanced clock
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock stopped at t
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t.UTC()}
}

// Now returns the clock's current time
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// CodeGenerator produces candidate join codes
type CodeGenerator func() (string, error)

var codeSpace = big.NewInt(900000)

// NewCode returns a random 6-digit code in [100000, 999999]
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to read random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// NewID returns a fresh session or event identifier
func NewID() uuid.UUID {
	return uuid.New()
}
