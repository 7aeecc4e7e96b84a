// internal/auth/credentials.go
package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

// Chaves usadas no cofre de credenciais
const (
	KeyAccessToken = "access_token"
	KeyDoctorID    = "doctor_id"
)

var ErrCredentialNotFound = errors.New("credencial não encontrada")

// CredentialStore guarda o token e o identificador do médico
type CredentialStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

type KeyringConfig struct {
	ServiceName string
	// FileDir é usado pelo backend de arquivo quando não há cofre do sistema
	FileDir      string
	FilePassword string
}

// KeyringStore usa o cofre do sistema operacional (WinCred no serviço Windows)
type KeyringStore struct {
	ring keyring.Keyring
}

func NewKeyringStore(cfg KeyringConfig) (*KeyringStore, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "olmeda-realtime"
	}
	if cfg.FilePassword == "" {
		cfg.FilePassword = cfg.ServiceName + "-file-key"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: cfg.ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.WinCredBackend,
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.FilePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("abrindo keyring: %w", err)
	}
	return &KeyringStore{ring: ring}, nil
}

func NewKeyringStoreFrom(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (s *KeyringStore) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrCredentialNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lendo credencial %q: %w", key, err)
	}
	return string(item.Data), nil
}

func (s *KeyringStore) Set(key, value string) error {
	if err := s.ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("gravando credencial %q: %w", key, err)
	}
	return nil
}

func (s *KeyringStore) Delete(key string) error {
	err := s.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("removendo credencial %q: %w", key, err)
	}
	return nil
}

// MemoryCredentials é usado em testes e no cliente de desenvolvimento
type MemoryCredentials struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{values: make(map[string]string)}
}

func (m *MemoryCredentials) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrCredentialNotFound
	}
	return v, nil
}

func (m *MemoryCredentials) Set(key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryCredentials) Delete(key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}
