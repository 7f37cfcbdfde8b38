// package tokenstore holds the single session credential.
//
// Exactly one live credential exists at a time. Every reader goes back to the store, no component keeps a copy.
package tokenstore

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/desertthunder/postsiva/internal/shared"
	"golang.org/x/oauth2"
)

// Store is a persisted cell holding the bearer credential.
//
// Get returns "" with a nil error when no credential is stored.
type Store interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
	// ClearIf clears the credential only while it still equals expected and reports whether it did.
	ClearIf(expected string) (bool, error)
}

// Open builds the store selected by cfg.Store. The sqlite kind needs an open, migrated db.
func Open(cfg shared.AuthConfig, db *sql.DB) (Store, error) {
	switch cfg.Store {
	case "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(shared.ExpandPath(cfg.TokenPath)), nil
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite token store requires a database", shared.ErrInvalidConfig)
		}
		return NewSQLite(db), nil
	default:
		return nil, fmt.Errorf("%w: unknown token store %q", shared.ErrInvalidConfig, cfg.Store)
	}
}

// Has reports whether s currently holds a credential. Read errors count as absent.
func Has(s Store) bool {
	tok, err := s.Get()
	return err == nil && tok != ""
}

// Memory keeps the credential in process memory.
type Memory struct {
	mu    sync.Mutex
	token string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

// NewMemoryWith returns a [Memory] store preloaded with token.
func NewMemoryWith(token string) *Memory { return &Memory{token: token} }

// Get returns the held credential, or "" when there is none.
func (m *Memory) Get() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

// Set replaces the held credential.
func (m *Memory) Set(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// Clear drops the credential.
func (m *Memory) Clear() error {
	return m.Set("")
}

// ClearIf drops the credential only while it still equals expected.
func (m *Memory) ClearIf(expected string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || m.token != expected {
		return false, nil
	}
	m.token = ""
	return true, nil
}

// tokenSource reads the store on every call so a logout or a fresh login is seen by the next request.
type tokenSource struct {
	store Store
}

// Source adapts s to an [oauth2.TokenSource] issuing bearer tokens.
//
// An empty store yields [shared.ErrNotAuthenticated].
func Source(s Store) oauth2.TokenSource {
	return tokenSource{store: s}
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.store.Get()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenStore, err)
	}
	if tok == "" {
		return nil, shared.ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}
