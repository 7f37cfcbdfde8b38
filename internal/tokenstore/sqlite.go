package tokenstore

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

const credentialKey = "access_token"

// SQLite keeps the credential in the credentials table of the local database.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite creates a store over the credentials table. The migrations must have run.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Get reads the credential row. No row means no credential.
func (s *SQLite) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get()
}

// Set upserts the single credential row.
func (s *SQLite) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" {
		return s.clear()
	}

	query := `
		INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.Exec(query, credentialKey, token); err != nil {
		return fmt.Errorf("tokenstore: saving credential: %w", err)
	}
	return nil
}

// Clear deletes the credential row.
func (s *SQLite) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear()
}

// ClearIf deletes the row only while it still holds expected.
func (s *SQLite) ClearIf(expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expected == "" {
		return false, nil
	}

	res, err := s.db.Exec("DELETE FROM credentials WHERE key = ? AND value = ?", credentialKey, expected)
	if err != nil {
		return false, fmt.Errorf("tokenstore: clearing credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("tokenstore: clearing credential: %w", err)
	}
	return n > 0, nil
}

func (s *SQLite) get() (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM credentials WHERE key = ?", credentialKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tokenstore: reading credential: %w", err)
	}
	return value, nil
}

func (s *SQLite) clear() error {
	if _, err := s.db.Exec("DELETE FROM credentials WHERE key = ?", credentialKey); err != nil {
		return fmt.Errorf("tokenstore: clearing credential: %w", err)
	}
	return nil
}
