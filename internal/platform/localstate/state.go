// Package localstate holds non-secret per-device preferences: the cached
// display name and the chosen interface language.
package localstate

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/codecraftes/mottu-yard/internal/domain/errors"
)

const (
	FileName = "preferences.json"

	keyDisplayName = "userNomeSocial"
	keyLocale      = "user-locale"
)

// State is the typed view of the preference store.
type State interface {
	DisplayName() (string, bool, error)
	SetDisplayName(name string) error
	Locale() (string, bool, error)
	SetLocale(tag string) error
	// ClearUserState drops everything tied to the signed-in user. The
	// locale is a device preference and survives.
	ClearUserState() error
}

// backend is the raw string map behind a State.
type backend interface {
	load() (map[string]string, error)
	save(map[string]string) error
}

type state struct {
	mu sync.Mutex
	b  backend
}

func (s *state) get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.b.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *state) update(fn func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.b.load()
	if err != nil {
		return err
	}
	fn(values)
	return s.b.save(values)
}

func (s *state) DisplayName() (string, bool, error) {
	return s.get(keyDisplayName)
}

func (s *state) SetDisplayName(name string) error {
	return s.update(func(m map[string]string) { m[keyDisplayName] = name })
}

func (s *state) Locale() (string, bool, error) {
	return s.get(keyLocale)
}

func (s *state) SetLocale(tag string) error {
	return s.update(func(m map[string]string) { m[keyLocale] = tag })
}

func (s *state) ClearUserState() error {
	return s.update(func(m map[string]string) { delete(m, keyDisplayName) })
}

type fileBackend struct {
	path string
}

// NewFileState stores preferences as JSON in dir/preferences.json.
func NewFileState(dir string) (State, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, apperrors.NewStorageUnavailableError("failed to create state directory", err)
	}
	return &state{b: &fileBackend{path: filepath.Join(dir, FileName)}}, nil
}

func (f *fileBackend) load() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageUnavailableError("failed to read local state", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, apperrors.NewStorageUnavailableError("local state is corrupt", err)
	}
	return values, nil
}

func (f *fileBackend) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return apperrors.NewInternalError("failed to encode local state", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return apperrors.NewStorageUnavailableError("failed to write local state", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return apperrors.NewStorageUnavailableError("failed to write local state", err)
	}
	return nil
}

type memoryBackend struct {
	values map[string]string
	err    error
}

// NewMemoryState is a State kept in memory.
func NewMemoryState() State {
	return &state{b: &memoryBackend{values: make(map[string]string)}}
}

func (m *memoryBackend) load() (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *memoryBackend) save(values map[string]string) error {
	if m.err != nil {
		return m.err
	}
	m.values = values
	return nil
}
