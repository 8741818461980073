package leave

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/cserv-ai/cserv/internal/shared"
)

// MemoryRepository keeps requests in process. A transaction holds the lock
// from its first read to commit and works on a copy, so a failed
// transaction leaves nothing behind.
type MemoryRepository struct {
	mu       sync.Mutex
	requests map[int64]Request
	nextID   int64
}

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{requests: make(map[int64]Request)}
}

type memoryTx struct {
	requests map[int64]Request
	nextID   int64
}

func (m *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{requests: maps.Clone(m.requests), nextID: m.nextID}
	if err := fn(ctx, tx); err != nil {
		return shared.Storage("tx", err)
	}
	m.requests = tx.requests
	m.nextID = tx.nextID
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id int64) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return Request{}, shared.NotFound("leave request", id)
	}
	return req, nil
}

func (m *MemoryRepository) List(_ context.Context, filter ListFilter) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, req := range m.requests {
		if filter.AgentID != 0 && req.AgentID != filter.AgentID {
			continue
		}
		if filter.Month != "" && req.Month() != filter.Month {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, req)
	}
	slices.SortFunc(out, func(a, b Request) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (m *MemoryRepository) CountByStatus(_ context.Context, month string) (map[Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Status]int)
	for _, req := range m.requests {
		if req.Month() == month {
			out[req.Status]++
		}
	}
	return out, nil
}

func (m *MemoryRepository) UsageByAgent(_ context.Context, month string) ([]AgentUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byAgent := make(map[int64]*AgentUsage)
	for _, req := range m.requests {
		if req.Month() != month || !countsAgainstQuota(req.Status) {
			continue
		}
		u, ok := byAgent[req.AgentID]
		if !ok {
			u = &AgentUsage{AgentID: req.AgentID, AgentName: req.AgentName}
			byAgent[req.AgentID] = u
		}
		u.Consumed++
	}
	out := make([]AgentUsage, 0, len(byAgent))
	for _, u := range byAgent {
		out = append(out, *u)
	}
	slices.SortFunc(out, func(a, b AgentUsage) int { return cmp.Compare(a.AgentID, b.AgentID) })
	return out, nil
}

// LockQuota is a no-op: the transaction already holds the store lock.
func (t *memoryTx) LockQuota(context.Context, int64, string) error {
	return nil
}

func (t *memoryTx) ListForAgentMonth(_ context.Context, agentID int64, month string) ([]Request, error) {
	var out []Request
	for _, req := range t.requests {
		if req.AgentID == agentID && req.Month() == month {
			out = append(out, req)
		}
	}
	return out, nil
}

func (t *memoryTx) Insert(_ context.Context, req Request) (int64, error) {
	t.nextID++
	req.ID = t.nextID
	t.requests[req.ID] = req
	return req.ID, nil
}

func (t *memoryTx) GetForUpdate(_ context.Context, id int64) (Request, error) {
	req, ok := t.requests[id]
	if !ok {
		return Request{}, shared.NotFound("leave request", id)
	}
	return req, nil
}

func (t *memoryTx) Update(_ context.Context, req Request) error {
	if _, ok := t.requests[req.ID]; !ok {
		return shared.NotFound("leave request", req.ID)
	}
	t.requests[req.ID] = req
	return nil
}
