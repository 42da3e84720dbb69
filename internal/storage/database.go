// Package storage provides database access and repositories
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/findosh/shiller/internal/models"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a session id does not resolve
	ErrNotFound = errors.New("session not found")
	// ErrCodeTaken is returned when an open session already holds the join code
	ErrCodeTaken = errors.New("session code already in use")
)

// Mutation edits a session copy inside an exclusive read-modify-write.
// Only TraineeName, ClosedAt and LastValues are persisted. A non-nil event is
// appended in the same transaction; a non-nil error aborts without writing.
type Mutation func(s *models.Session) (*models.SessionEvent, error)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection.
// Every connection gets foreign keys, WAL, a busy timeout and immediate
// transactions so read-modify-write cycles never interleave.
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("sqlite3", dsn(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func dsn(path string) string {
	params := "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + "?" + params
}

// Migrate runs database migrations
func (db *DB) Migrate() error {
	migrations := []string{
		createTrainersTable,
		createSessionsTable,
		createSessionEventsTable,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

const createTrainersTable = `
CREATE TABLE IF NOT EXISTS trainers (
	id TEXT PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Codes are unique among open sessions only; a closed session frees its code.
const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	trainer_id TEXT NOT NULL,
	code TEXT NOT NULL,
	trainee_name TEXT,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	closed_at DATETIME,
	last_values TEXT NOT NULL DEFAULT '{}',
	FOREIGN KEY (trainer_id) REFERENCES trainers(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sessions_trainer_id ON sessions(trainer_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_open_code ON sessions(code) WHERE closed_at IS NULL;
`

const createSessionEventsTable = `
CREATE TABLE IF NOT EXISTS session_events (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	systolic INTEGER NOT NULL,
	diastolic INTEGER NOT NULL,
	heart_rate INTEGER NOT NULL,
	spo2 INTEGER NOT NULL,
	flags TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_session_events_session_id ON session_events(session_id);
CREATE INDEX IF NOT EXISTS idx_session_events_created_at ON session_events(created_at);
`
