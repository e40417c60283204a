// Package securestore keeps small secrets, such as the backend session
// token, encrypted at rest in a directory only the current user can read.
package securestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	apperrors "github.com/codecraftes/mottu-yard/internal/domain/errors"
)

// Store is a durable key-value store for secrets.
type Store interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// Sealer encrypts values before they are written and decrypts them on read.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) ([]byte, error)
	Open(ctx context.Context, ciphertext []byte) ([]byte, error)
}

const fileSuffix = ".sealed"

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// FileStore stores one sealed file per key.
type FileStore struct {
	dir    string
	sealer Sealer
	mu     sync.Mutex
}

// NewFileStore creates the directory with owner-only permissions if needed.
func NewFileStore(dir string, sealer Sealer) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, apperrors.NewStorageUnavailableError("failed to create secure store directory", err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return nil, apperrors.NewStorageUnavailableError("failed to restrict secure store directory", err)
	}
	return &FileStore{dir: dir, sealer: sealer}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", apperrors.NewValidationError(fmt.Sprintf("invalid secure store key %q", key))
	}
	return filepath.Join(s.dir, key+fileSuffix), nil
}

// Set seals value and replaces the file for key atomically.
func (s *FileStore) Set(ctx context.Context, key, value string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	sealed, err := s.sealer.Seal(ctx, []byte(value))
	if err != nil {
		return apperrors.NewStorageUnavailableError("failed to seal value", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*")
	if err != nil {
		return apperrors.NewStorageUnavailableError("failed to write secure store", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return apperrors.NewStorageUnavailableError("failed to write secure store", err)
	}
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return apperrors.NewStorageUnavailableError("failed to write secure store", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperrors.NewStorageUnavailableError("failed to write secure store", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorageUnavailableError("failed to write secure store", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return apperrors.NewStorageUnavailableError("failed to write secure store", err)
	}
	return nil
}

// Get returns the value for key. A value that exists but cannot be opened is
// an error, not an absent key.
func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return "", false, err
	}

	s.mu.Lock()
	data, err := os.ReadFile(p)
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewStorageUnavailableError("failed to read secure store", err)
	}

	plain, err := s.sealer.Open(ctx, data)
	if err != nil {
		return "", false, apperrors.NewStorageUnavailableError("failed to open sealed value", err)
	}
	return string(plain), true, nil
}

// Delete removes key. Removing a missing key succeeds.
func (s *FileStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.NewStorageUnavailableError("failed to delete from secure store", err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
