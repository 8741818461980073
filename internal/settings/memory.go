package settings

import (
	"context"
	"maps"
	"sync"
)

// MemoryRepository keeps settings in process.
type MemoryRepository struct {
	mu       sync.RWMutex
	settings Settings
	access   ModuleAccess
}

// NewMemoryRepository starts from Defaults with every module enabled.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{settings: Defaults, access: ModuleAccess{}}
}

func (m *MemoryRepository) Load(context.Context) (Settings, ModuleAccess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings, maps.Clone(m.access), nil
}

func (m *MemoryRepository) SaveSettings(_ context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}

func (m *MemoryRepository) SaveAccess(_ context.Context, access ModuleAccess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = maps.Clone(access)
	return nil
}
