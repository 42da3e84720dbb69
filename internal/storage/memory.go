package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/findosh/shiller/internal/models"
	"github.com/google/uuid"
)

type memoryEntry struct {
	mu      sync.Mutex
	session *models.Session
	events  []*models.SessionEvent
}

// MemoryStore keeps sessions in process memory.
// Each session has its own lock; the maps are guarded separately so
// different sessions never wait on each other during updates.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*memoryEntry
	codes    map[string]uuid.UUID // open sessions only
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*memoryEntry),
		codes:    make(map[string]uuid.UUID),
	}
}

// Create inserts a new session together with its initial event
func (m *MemoryStore) Create(_ context.Context, s *models.Session, initial *models.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !s.IsClosed() {
		if _, taken := m.codes[s.Code]; taken {
			return ErrCodeTaken
		}
	}

	entry := &memoryEntry{session: s.Clone()}
	if initial != nil {
		e := *initial
		entry.events = append(entry.events, &e)
	}
	entry.session.EventsCount = len(entry.events)
	s.EventsCount = len(entry.events)

	m.sessions[s.ID] = entry
	if !s.IsClosed() {
		m.codes[s.Code] = s.ID
	}
	return nil
}

// Get retrieves a session by ID
func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Session, error) {
	entry := m.entry(id)
	if entry == nil {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), nil
}

// Update runs fn against a copy of the session while holding its lock
func (m *MemoryStore) Update(_ context.Context, id uuid.UUID, fn Mutation) (*models.Session, error) {
	entry := m.entry(id)
	if entry == nil {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	wasOpen := !entry.session.IsClosed()
	next := entry.session.Clone()

	event, err := fn(next)
	if err != nil {
		return nil, err
	}

	// identity fields are immutable
	next.ID = entry.session.ID
	next.TrainerID = entry.session.TrainerID
	next.Code = entry.session.Code
	next.CreatedAt = entry.session.CreatedAt
	next.ExpiresAt = entry.session.ExpiresAt

	if event != nil {
		e := *event
		entry.events = append(entry.events, &e)
	}
	next.EventsCount = len(entry.events)
	entry.session = next

	if wasOpen && next.IsClosed() {
		m.mu.Lock()
		if m.codes[next.Code] == next.ID {
			delete(m.codes, next.Code)
		}
		m.mu.Unlock()
	}

	return next.Clone(), nil
}

// ListByTrainer retrieves all sessions of a trainer, newest first
func (m *MemoryStore) ListByTrainer(_ context.Context, trainerID uuid.UUID) ([]*models.Session, error) {
	sessions := []*models.Session{}
	for _, entry := range m.entries() {
		entry.mu.Lock()
		if entry.session.TrainerID == trainerID {
			sessions = append(sessions, entry.session.Clone())
		}
		entry.mu.Unlock()
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// FindActiveByCode retrieves the open, unexpired session holding code
func (m *MemoryStore) FindActiveByCode(_ context.Context, code string, now time.Time) (*models.Session, error) {
	m.mu.RLock()
	id, ok := m.codes[code]
	entry := m.sessions[id]
	m.mu.RUnlock()
	if !ok || entry == nil {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.session.IsActive(now) {
		return nil, ErrNotFound
	}
	return entry.session.Clone(), nil
}

// ListExpired returns the ids of open sessions whose expiry is at or before now
func (m *MemoryStore) ListExpired(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, entry := range m.entries() {
		entry.mu.Lock()
		if !entry.session.IsClosed() && entry.session.IsExpired(now) {
			ids = append(ids, entry.session.ID)
		}
		entry.mu.Unlock()
	}
	return ids, nil
}

// Events returns the appended events of a session in insertion order
func (m *MemoryStore) Events(_ context.Context, id uuid.UUID) ([]*models.SessionEvent, error) {
	entry := m.entry(id)
	if entry == nil {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	events := make([]*models.SessionEvent, len(entry.events))
	for i, e := range entry.events {
		c := *e
		events[i] = &c
	}
	return events, nil
}

func (m *MemoryStore) entry(id uuid.UUID) *memoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

func (m *MemoryStore) entries() []*memoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*memoryEntry, 0, len(m.sessions))
	for _, entry := range m.sessions {
		result = append(result, entry)
	}
	return result
}

// MemoryTrainerStore keeps trainer accounts in process memory
type MemoryTrainerStore struct {
	mu       sync.RWMutex
	trainers map[uuid.UUID]*models.Trainer
}

// NewMemoryTrainerStore creates an empty in-memory trainer store
func NewMemoryTrainerStore() *MemoryTrainerStore {
	return &MemoryTrainerStore{trainers: make(map[uuid.UUID]*models.Trainer)}
}

// Create inserts a new trainer; emails are unique ignoring case
func (m *MemoryTrainerStore) Create(_ context.Context, trainer *models.Trainer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byEmail(trainer.Email) != nil {
		return fmt.Errorf("failed to create trainer: email %q already registered", trainer.Email)
	}
	c := *trainer
	m.trainers[trainer.ID] = &c
	return nil
}

// GetByID retrieves a trainer by ID, or nil when unknown
func (m *MemoryTrainerStore) GetByID(_ context.Context, id uuid.UUID) (*models.Trainer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trainers[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

// GetByEmail retrieves a trainer by email ignoring case, or nil when unknown
func (m *MemoryTrainerStore) GetByEmail(_ context.Context, email string) (*models.Trainer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t := m.byEmail(email)
	if t == nil {
		return nil, nil
	}
	c := *t
	return &c, nil
}

// EmailExists checks if an email is already registered
func (m *MemoryTrainerStore) EmailExists(ctx context.Context, email string) (bool, error) {
	t, err := m.GetByEmail(ctx, email)
	return t != nil, err
}

func (m *MemoryTrainerStore) byEmail(email string) *models.Trainer {
	for _, t := range m.trainers {
		if strings.EqualFold(t.Email, strings.TrimSpace(email)) {
			return t
		}
	}
	return nil
}
