package localsession

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/snaptab/snaptab/internal/models"
)

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// The table holds at most one row: the session is replaced wholesale on
// every transition, matching the single-active-split-per-device model.
const schema = `
CREATE TABLE IF NOT EXISTS local_session (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    pin TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    participant_name TEXT NOT NULL,
    participant_color TEXT NOT NULL,
    is_host INTEGER NOT NULL
);
`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a SQLiteStore at the given database path. Parent
// directories are created and the schema is applied automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the persisted session, or nil when none is stored.
func (s *SQLiteStore) Load(ctx context.Context) (*models.LocalSession, error) {
	session := &models.LocalSession{}
	err := s.db.QueryRowContext(ctx,
		"SELECT pin, participant_id, participant_name, participant_color, is_host FROM local_session WHERE id = 1",
	).Scan(&session.PIN, &session.ParticipantID, &session.ParticipantName, &session.ParticipantColor, &session.IsHost)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// Save replaces the persisted session wholesale.
func (s *SQLiteStore) Save(ctx context.Context, session models.LocalSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO local_session (id, pin, participant_id, participant_name, participant_color, is_host)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     pin = excluded.pin,
		     participant_id = excluded.participant_id,
		     participant_name = excluded.participant_name,
		     participant_color = excluded.participant_color,
		     is_host = excluded.is_host`,
		session.PIN, session.ParticipantID, session.ParticipantName, session.ParticipantColor, session.IsHost,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear removes the persisted session.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM local_session"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
