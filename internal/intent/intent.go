// Package intent persists the "migrate guest data on next login" flag outside
// the focus store.
package intent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Flag interface {
	Set(migrate bool) error
	// Consume returns the current value and clears it, whatever the value was.
	Consume() (bool, error)
}

type fileState struct {
	MigrateGuestOnLogin bool      `yaml:"migrate_guest_on_login"`
	UpdatedAt           time.Time `yaml:"updated_at"`
}

// FileFlag stores the flag as a small YAML document.
type FileFlag struct {
	mu   sync.Mutex
	path string
}

func NewFileFlag(path string) *FileFlag {
	return &FileFlag{path: path}
}

func (f *FileFlag) Set(migrate bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(migrate)
}

func (f *FileFlag) Consume() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, readErr := f.read()
	if err := f.write(false); err != nil {
		return false, err
	}
	if readErr != nil {
		return false, readErr
	}
	return state.MigrateGuestOnLogin, nil
}

// Peek reads the flag without clearing it.
func (f *FileFlag) Peek() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, err := f.read()
	if err != nil {
		return false, err
	}
	return state.MigrateGuestOnLogin, nil
}

func (f *FileFlag) read() (fileState, error) {
	var state fileState
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("read intent flag: %w", err)
	}
	if err := yaml.Unmarshal(data, &state); err != nil {
		return fileState{}, fmt.Errorf("decode intent flag: %w", err)
	}
	return state, nil
}

func (f *FileFlag) write(migrate bool) error {
	data, err := yaml.Marshal(fileState{MigrateGuestOnLogin: migrate, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode intent flag: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create intent dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write intent flag: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace intent flag: %w", err)
	}
	return nil
}

// MemoryFlag keeps the flag in process memory.
type MemoryFlag struct {
	mu      sync.Mutex
	migrate bool
}

func (m *MemoryFlag) Set(migrate bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.migrate = migrate
	return nil
}

func (m *MemoryFlag) Consume() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value := m.migrate
	m.migrate = false
	return value, nil
}
