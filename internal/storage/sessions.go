package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/findosh/shiller/internal/models"
	"github.com/google/uuid"
)

// SessionRepository provides training session data access on SQLite
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const selectSession = `
	SELECT s.id, s.trainer_id, s.code, s.trainee_name, s.created_at, s.expires_at, s.closed_at, s.last_values,
		(SELECT COUNT(*) FROM session_events e WHERE e.session_id = s.id)
	FROM sessions s
`

// Create inserts a new session together with its initial event.
// Returns ErrCodeTaken when an open session already holds the code.
func (r *SessionRepository) Create(ctx context.Context, s *models.Session, initial *models.SessionEvent) error {
	values, err := json.Marshal(s.LastValues)
	if err != nil {
		return fmt.Errorf("failed to encode values: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sessions (id, trainer_id, code, trainee_name, created_at, expires_at, closed_at, last_values)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		s.ID.String(),
		s.TrainerID.String(),
		s.Code,
		s.TraineeName,
		s.CreatedAt,
		s.ExpiresAt,
		s.ClosedAt,
		string(values),
	)
	if isUniqueViolation(err) {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	s.EventsCount = 0
	if initial != nil {
		if err := insertEvent(ctx, tx, initial); err != nil {
			return err
		}
		s.EventsCount = 1
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, selectSession+" WHERE s.id = ?", id.String()))
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotFound
	}
	return s, nil
}

// Update runs fn against the current row inside an immediate transaction
func (r *SessionRepository) Update(ctx context.Context, id uuid.UUID, fn Mutation) (*models.Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := scanSession(tx.QueryRowContext(ctx, selectSession+" WHERE s.id = ?", id.String()))
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotFound
	}

	event, err := fn(s)
	if err != nil {
		return nil, err
	}

	values, err := json.Marshal(s.LastValues)
	if err != nil {
		return nil, fmt.Errorf("failed to encode values: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET trainee_name = ?, closed_at = ?, last_values = ? WHERE id = ?",
		s.TraineeName,
		s.ClosedAt,
		string(values),
		id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	if event != nil {
		if err := insertEvent(ctx, tx, event); err != nil {
			return nil, err
		}
		s.EventsCount++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session: %w", err)
	}
	return s, nil
}

// ListByTrainer retrieves all sessions of a trainer, newest first
func (r *SessionRepository) ListByTrainer(ctx context.Context, trainerID uuid.UUID) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx, selectSession+" WHERE s.trainer_id = ? ORDER BY s.created_at DESC", trainerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*models.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// FindActiveByCode retrieves the open, unexpired session holding code
func (r *SessionRepository) FindActiveByCode(ctx context.Context, code string, now time.Time) (*models.Session, error) {
	query := selectSession + `
		WHERE s.code = ? AND s.closed_at IS NULL AND s.expires_at > ?
		LIMIT 1
	`
	s, err := scanSession(r.db.QueryRowContext(ctx, query, code, now.UTC()))
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotFound
	}
	return s, nil
}

// ListExpired returns the ids of open sessions whose expiry is at or before now
func (r *SessionRepository) ListExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM sessions WHERE closed_at IS NULL AND expires_at <= ? ORDER BY expires_at",
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid session id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Events returns the appended events of a session, oldest first
func (r *SessionRepository) Events(ctx context.Context, id uuid.UUID) ([]*models.SessionEvent, error) {
	query := `
		SELECT id, session_id, systolic, diastolic, heart_rate, spo2, flags, created_at
		FROM session_events WHERE session_id = ? ORDER BY created_at, rowid
	`
	rows, err := r.db.QueryContext(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list session events: %w", err)
	}
	defer rows.Close()

	var events []*models.SessionEvent
	for rows.Next() {
		var e models.SessionEvent
		var eventID, sessionID, flags string
		if err := rows.Scan(
			&eventID,
			&sessionID,
			&e.Vitals.Systolic,
			&e.Vitals.Diastolic,
			&e.Vitals.HeartRate,
			&e.Vitals.SpO2,
			&flags,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}
		e.ID, _ = uuid.Parse(eventID)
		e.SessionID, _ = uuid.Parse(sessionID)
		if err := json.Unmarshal([]byte(flags), &e.Flags); err != nil {
			return nil, fmt.Errorf("failed to decode flags: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

func insertEvent(ctx context.Context, tx *sql.Tx, e *models.SessionEvent) error {
	flags, err := json.Marshal(e.Flags)
	if err != nil {
		return fmt.Errorf("failed to encode flags: %w", err)
	}

	query := `
		INSERT INTO session_events (id, session_id, systolic, diastolic, heart_rate, spo2, flags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		e.ID.String(),
		e.SessionID.String(),
		e.Vitals.Systolic,
		e.Vitals.Diastolic,
		e.Vitals.HeartRate,
		e.Vitals.SpO2,
		string(flags),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append session event: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*models.Session, error) {
	var s models.Session
	var id, trainerID, values string
	var traineeName sql.NullString
	var closedAt sql.NullTime

	err := row.Scan(
		&id,
		&trainerID,
		&s.Code,
		&traineeName,
		&s.CreatedAt,
		&s.ExpiresAt,
		&closedAt,
		&values,
		&s.EventsCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	s.ID, _ = uuid.Parse(id)
	s.TrainerID, _ = uuid.Parse(trainerID)
	s.CreatedAt = s.CreatedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	if traineeName.Valid {
		name := traineeName.String
		s.TraineeName = &name
	}
	if closedAt.Valid {
		closed := closedAt.Time.UTC()
		s.ClosedAt = &closed
	}
	if err := json.Unmarshal([]byte(values), &s.LastValues); err != nil {
		return nil, fmt.Errorf("failed to decode values: %w", err)
	}

	return &s, nil
}
