package credential

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"
)

const (
	serviceName = "teamboard"

	// tokenKey is the keyring entry holding the bearer credential.
	tokenKey = "session-token"
)

// ErrNotFound is returned by Get when no credential is stored.
var ErrNotFound = errors.New("credential not found")

// Store holds the single bearer credential of the current session.
type Store interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}

// KeyringStore keeps the credential in the system keyring so that a
// session survives restarts of the client.
type KeyringStore struct {
	ring keyring.Keyring
}

// openKeyring returns a configured keyring instance. The file backend is
// rooted in dir.
func openKeyring(dir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(dir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("teamboard-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// NewKeyringStore opens the system keyring. dir is used by the encrypted
// file backend when no native keyring is available.
func NewKeyringStore(dir string) (*KeyringStore, error) {
	ring, err := openKeyring(dir)
	if err != nil {
		return nil, err
	}
	return &KeyringStore{ring: ring}, nil
}

// Get retrieves the stored credential.
func (s *KeyringStore) Get() (string, error) {
	item, err := s.ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting credential: %w", err)
	}

	return string(item.Data), nil
}

// Set stores the credential, replacing any previous one.
func (s *KeyringStore) Set(token string) error {
	err := s.ring.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(token),
		Label: "teamboard session",
	})
	if err != nil {
		return fmt.Errorf("setting credential: %w", err)
	}

	return nil
}

// Clear removes the credential. Clearing an empty store is not an error.
func (s *KeyringStore) Clear() error {
	err := s.ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential: %w", err)
	}

	return nil
}

// MemoryStore keeps the credential in process memory only.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore returns a store seeded with token (which may be empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ErrNotFound
	}
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
