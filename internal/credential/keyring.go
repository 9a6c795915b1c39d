// Package credential keeps the user's session token in the OS keyring.
package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"io.winapps.huddle/internal/notify"
)

const (
	serviceName = "huddle"
	sessionKey  = "session-token"
)

// Config controls where the keyring lives.
type Config struct {
	// FileDir is used by the encrypted-file fallback backend.
	FileDir string
	// FilePassword unlocks the file backend.
	FilePassword string
	// Backends overrides the backend preference order.
	Backends []keyring.BackendType
}

// SessionStore reads and writes the session token. It satisfies
// notify.SessionSource.
type SessionStore struct {
	ring keyring.Keyring
}

// Open returns a keyring-backed session store.
func Open(cfg Config) (*SessionStore, error) {
	backends := cfg.Backends
	if len(backends) == 0 {
		backends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		}
	}
	fileDir := cfg.FileDir
	if fileDir == "" {
		fileDir = "~/.config/huddle/credentials"
	}
	password := cfg.FilePassword
	if password == "" {
		password = "huddle-file-key"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		AllowedBackends:          backends,
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(password),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &SessionStore{ring: ring}, nil
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *SessionStore {
	return &SessionStore{ring: ring}
}

// SessionToken returns notify.ErrNoSession when no token is stored.
func (s *SessionStore) SessionToken(ctx context.Context) (string, error) {
	item, err := s.ring.Get(sessionKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", notify.ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("getting session token: %w", err)
	}
	if len(item.Data) == 0 {
		return "", notify.ErrNoSession
	}
	return string(item.Data), nil
}

// SetSessionToken stores token after sign-in.
func (s *SessionStore) SetSessionToken(token string) error {
	err := s.ring.Set(keyring.Item{
		Key:   sessionKey,
		Data:  []byte(token),
		Label: "Huddle session",
	})
	if err != nil {
		return fmt.Errorf("setting session token: %w", err)
	}
	return nil
}

// ClearSessionToken removes the token on sign-out. A missing token is not
// an error.
func (s *SessionStore) ClearSessionToken() error {
	err := s.ring.Remove(sessionKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting session token: %w", err)
	}
	return nil
}
