package agents

import (
	"context"
	"slices"
	"sync"
)

// MemoryRepository keeps the directory in process.
type MemoryRepository struct {
	mu     sync.RWMutex
	agents []Agent
}

// NewMemoryRepository returns a store seeded with list.
func NewMemoryRepository(list ...Agent) *MemoryRepository {
	return &MemoryRepository{agents: slices.Clone(list)}
}

func (m *MemoryRepository) List(context.Context) ([]Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.agents), nil
}

func (m *MemoryRepository) Replace(_ context.Context, list []Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = slices.Clone(list)
	return nil
}
