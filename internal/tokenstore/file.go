package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

const (
	filePerms = 0o600
	dirPerms  = 0o700
)

// tokenFile is the on-disk format: the credential as an [oauth2.Token].
type tokenFile struct {
	Token *oauth2.Token `json:"token"`
}

// File persists the credential as JSON at Path, replacing it atomically on every write.
type File struct {
	Path string
	mu   sync.Mutex
}

// NewFile creates a store backed by the JSON token file at path. The file is created on first Set.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Get reads the credential. A missing file means no credential.
func (f *File) Get() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

// Set writes the credential with owner-only permissions.
func (f *File) Set(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token == "" {
		return f.remove()
	}
	return f.save(token)
}

// Clear removes the token file.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remove()
}

// ClearIf removes the token file only while it still holds expected.
func (f *File) ClearIf(expected string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.load()
	if err != nil {
		return false, err
	}
	if current == "" || current != expected {
		return false, nil
	}
	return true, f.remove()
}

// load returns "" when the file does not exist.
func (f *File) load() (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tokenstore: reading %s: %w", f.Path, err)
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("tokenstore: decoding %s: %w", f.Path, err)
	}
	if tf.Token == nil {
		return "", nil
	}
	return tf.Token.AccessToken, nil
}

// save writes to a temp file in the same directory and renames it over Path.
func (f *File) save(token string) error {
	data, err := json.MarshalIndent(tokenFile{Token: &oauth2.Token{AccessToken: token, TokenType: "Bearer"}}, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: encoding: %w", err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return fmt.Errorf("tokenstore: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenstore: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(filePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: setting permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: writing: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: syncing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: closing: %w", err)
	}
	if err := os.Rename(tmpPath, f.Path); err != nil {
		return fmt.Errorf("tokenstore: renaming: %w", err)
	}

	committed = true
	return nil
}

func (f *File) remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tokenstore: removing %s: %w", f.Path, err)
	}
	return nil
}
