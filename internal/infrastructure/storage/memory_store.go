package storage

import (
	"context"
	"sync"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/ports"
)

// MemoryStore keeps the settings record in process memory.
type MemoryStore struct {
	mu        sync.Mutex
	settings  domain.Settings
	installed bool
}

var _ ports.SettingsStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty, not yet installed store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: domain.DefaultSettings()}
}

// Install stores defaults unless a record already exists.
func (m *MemoryStore) Install(_ context.Context, defaults domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.installed {
		m.settings = defaults
		m.installed = true
	}
	return nil
}

// Load returns a snapshot of the record.
func (m *MemoryStore) Load(_ context.Context) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

// Update applies the patch in one step.
func (m *MemoryStore) Update(_ context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = patch.Apply(m.settings)
	m.installed = true
	return m.settings, nil
}

// SetEnabled flips the enabled flag.
func (m *MemoryStore) SetEnabled(ctx context.Context, enabled bool) error {
	_, err := m.Update(ctx, domain.SettingsPatch{Enabled: &enabled})
	return err
}

// IncrementProcessed bumps the processed counter.
func (m *MemoryStore) IncrementProcessed(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.ImagesProcessed++
	return m.settings.ImagesProcessed, nil
}

// IncrementDownloaded bumps the downloaded counter.
func (m *MemoryStore) IncrementDownloaded(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.ImagesDownloaded++
	return m.settings.ImagesDownloaded, nil
}
