package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// TokenKey is the fixed key the session token is stored under.
const TokenKey = "access_token"

// CredentialStore holds at most one session token.
type CredentialStore interface {
	// Get returns the stored token, or "" when none is stored.
	Get() (string, error)
	// Set overwrites the stored token. The value is not validated.
	Set(token string) error
	// Clear removes the token. Clearing an empty store is not an error.
	Clear() error
}

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

var _ CredentialStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// FileStore persists the token in a JSON file so it survives restarts.
// Other keys in the file are left alone.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ CredentialStore = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFileStore stores credentials under the user's config directory.
func DefaultFileStore() (*FileStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locate config dir: %w", err)
	}
	return NewFileStore(filepath.Join(dir, "farewatch", "credentials.json")), nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(data, TokenKey).String(), nil
}

func (s *FileStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	data, err = sjson.SetBytes(data, TokenKey, token)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return s.write(data)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	if !gjson.GetBytes(data, TokenKey).Exists() {
		return nil
	}
	data, err = sjson.DeleteBytes(data, TokenKey)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return s.write(data)
}

// read returns the file contents, or an empty object when the file is missing.
func (s *FileStore) read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []byte(`{}`), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("read credentials: %s is not valid JSON", s.path)
	}
	return data, nil
}

// write replaces the file atomically with owner-only permissions.
func (s *FileStore) write(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}
