package wallet

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SessionState is the only state persisted between runs. CachedProvider
// enables silent reconnection on the next start.
type SessionState struct {
	CachedProvider bool      `yaml:"cached_provider"`
	Account        string    `yaml:"account,omitempty"`
	ConnectedAt    time.Time `yaml:"connected_at,omitempty"`
}

// SessionStore reads and writes SessionState to a yaml file.
type SessionStore struct {
	path   string
	forget func() error
}

// NewSessionStore returns a store at path. Clear also removes any stored
// keystore password.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path, forget: DeletePassword}
}

// Path returns the session file path
func (s *SessionStore) Path() string {
	return s.path
}

// Load returns the saved state, or the zero state if none exists.
func (s *SessionStore) Load() (SessionState, error) {
	var state SessionState
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, fmt.Errorf("failed to read session file: %w", err)
	}
	if err := yaml.Unmarshal(data, &state); err != nil {
		return SessionState{}, fmt.Errorf("failed to parse session file: %w", err)
	}
	return state, nil
}

// Save writes state, creating the parent directory if needed.
func (s *SessionStore) Save(state SessionState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear wipes every piece of local session storage.
func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	if s.forget != nil {
		if err := s.forget(); err != nil {
			return fmt.Errorf("failed to remove stored password: %w", err)
		}
	}
	return nil
}
