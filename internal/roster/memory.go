package roster

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/cserv-ai/cserv/internal/shared"
)

// MemoryRepository keeps rosters in process with copy-on-commit
// transactions.
type MemoryRepository struct {
	mu      sync.Mutex
	rosters map[int64]Roster
	nextID  int64
}

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rosters: make(map[int64]Roster)}
}

type memoryTx struct {
	rosters map[int64]Roster
	nextID  int64
}

func (m *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{rosters: maps.Clone(m.rosters), nextID: m.nextID}
	if err := fn(ctx, tx); err != nil {
		return shared.Storage("tx", err)
	}
	m.rosters = tx.rosters
	m.nextID = tx.nextID
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id int64) (Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rosters[id]
	if !ok {
		return Roster{}, shared.NotFound("roster", id)
	}
	return r, nil
}

func (m *MemoryRepository) List(_ context.Context, approvedOnly bool) ([]Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Roster
	for _, r := range m.rosters {
		if approvedOnly && !r.Approved {
			continue
		}
		out = append(out, r.Summary())
	}
	slices.SortFunc(out, func(a, b Roster) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (t *memoryTx) Insert(_ context.Context, r Roster) (int64, error) {
	t.nextID++
	r.ID = t.nextID
	t.rosters[r.ID] = r
	return r.ID, nil
}

func (t *memoryTx) Trim(_ context.Context, keep int) (int64, error) {
	ids := slices.Sorted(maps.Keys(t.rosters))
	if len(ids) <= keep {
		return 0, nil
	}
	var n int64
	for _, id := range ids[:len(ids)-keep] {
		delete(t.rosters, id)
		n++
	}
	return n, nil
}

func (t *memoryTx) GetForUpdate(_ context.Context, id int64) (Roster, error) {
	r, ok := t.rosters[id]
	if !ok {
		return Roster{}, shared.NotFound("roster", id)
	}
	return r, nil
}

func (t *memoryTx) MarkApproved(_ context.Context, id int64, at time.Time, by string) error {
	r, ok := t.rosters[id]
	if !ok {
		return shared.NotFound("roster", id)
	}
	r.Approved, r.ApprovedAt, r.ApprovedBy = true, &at, by
	t.rosters[id] = r
	return nil
}

func (t *memoryTx) Delete(_ context.Context, id int64) error {
	if _, ok := t.rosters[id]; !ok {
		return shared.NotFound("roster", id)
	}
	delete(t.rosters, id)
	return nil
}
