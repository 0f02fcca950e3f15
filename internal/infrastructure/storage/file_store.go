package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/ports"
)

// FileStore persists the settings record as a YAML document.
// Writes are serialized within the process; other processes racing on the
// same file can still lose counter updates.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ ports.SettingsStore = (*FileStore)(nil)

// NewFileStore binds the store to a file path; the file is created on Install.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

// Install writes defaults when the file does not exist yet.
func (f *FileStore) Install(_ context.Context, defaults domain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, found, err := f.read()
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	return f.write(defaults)
}

// Load reads the record; a missing file yields install defaults.
func (f *FileStore) Load(_ context.Context) (domain.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	settings, _, err := f.read()
	return settings, err
}

// Update applies the patch and rewrites the file once.
func (f *FileStore) Update(_ context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	var updated domain.Settings
	err := f.mutate(func(s *domain.Settings) {
		*s = patch.Apply(*s)
		updated = *s
	})
	return updated, err
}

// SetEnabled flips the enabled flag.
func (f *FileStore) SetEnabled(_ context.Context, enabled bool) error {
	return f.mutate(func(s *domain.Settings) { s.Enabled = enabled })
}

// IncrementProcessed bumps the processed counter.
func (f *FileStore) IncrementProcessed(_ context.Context) (int64, error) {
	var n int64
	err := f.mutate(func(s *domain.Settings) {
		s.ImagesProcessed++
		n = s.ImagesProcessed
	})
	return n, err
}

// IncrementDownloaded bumps the downloaded counter.
func (f *FileStore) IncrementDownloaded(_ context.Context) (int64, error) {
	var n int64
	err := f.mutate(func(s *domain.Settings) {
		s.ImagesDownloaded++
		n = s.ImagesDownloaded
	})
	return n, err
}

func (f *FileStore) mutate(fn func(*domain.Settings)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	settings, _, err := f.read()
	if err != nil {
		return err
	}
	fn(&settings)
	return f.write(settings)
}

func (f *FileStore) read() (domain.Settings, bool, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.DefaultSettings(), false, nil
	}
	if err != nil {
		return domain.Settings{}, false, fmt.Errorf("read settings: %w", err)
	}

	settings := domain.DefaultSettings()
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return domain.Settings{}, false, fmt.Errorf("parse settings %s: %w", f.path, err)
	}
	return settings, true, nil
}

func (f *FileStore) write(settings domain.Settings) error {
	raw, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
