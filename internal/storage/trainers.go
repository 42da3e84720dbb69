package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/findosh/shiller/internal/models"
	"github.com/google/uuid"
)

// TrainerRepository provides trainer data access
type TrainerRepository struct {
	db *DB
}

// NewTrainerRepository creates a new trainer repository
func NewTrainerRepository(db *DB) *TrainerRepository {
	return &TrainerRepository{db: db}
}

// Create inserts a new trainer
func (r *TrainerRepository) Create(ctx context.Context, trainer *models.Trainer) error {
	query := `
		INSERT INTO trainers (id, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		trainer.ID.String(),
		trainer.Email,
		trainer.PasswordHash,
		trainer.CreatedAt,
		trainer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trainer: %w", err)
	}
	return nil
}

// GetByID retrieves a trainer by ID
func (r *TrainerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Trainer, error) {
	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM trainers WHERE id = ?
	`
	return r.scanTrainer(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetByEmail retrieves a trainer by email, ignoring case
func (r *TrainerRepository) GetByEmail(ctx context.Context, email string) (*models.Trainer, error) {
	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM trainers WHERE lower(email) = lower(?)
	`
	return r.scanTrainer(r.db.QueryRowContext(ctx, query, email))
}

// EmailExists checks if an email is already registered
func (r *TrainerRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trainers WHERE lower(email) = lower(?)", email).Scan(&count)
	return count > 0, err
}

func (r *TrainerRepository) scanTrainer(row *sql.Row) (*models.Trainer, error) {
	var trainer models.Trainer
	var id string

	err := row.Scan(
		&id,
		&trainer.Email,
		&trainer.PasswordHash,
		&trainer.CreatedAt,
		&trainer.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan trainer: %w", err)
	}

	trainer.ID, _ = uuid.Parse(id)
	return &trainer, nil
}
