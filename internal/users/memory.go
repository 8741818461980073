package users

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
)

// MemoryRepository keeps users in process. Transactions hold the lock for
// their whole duration and only publish their changes on success.
type MemoryRepository struct {
	mu     sync.Mutex
	users  map[int64]User
	nextID int64
}

// NewMemoryRepository returns an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[int64]User)}
}

// Seed stores u as is, assigning an id when missing.
func (m *MemoryRepository) Seed(u User) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		m.nextID++
		u.ID = m.nextID
	} else if u.ID > m.nextID {
		m.nextID = u.ID
	}
	m.users[u.ID] = u
	return u
}

type memoryTx struct {
	users  map[int64]User
	nextID int64
}

func (m *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{users: make(map[int64]User, len(m.users)), nextID: m.nextID}
	for id, u := range m.users {
		tx.users[id] = u
	}
	if err := fn(ctx, tx); err != nil {
		return shared.Storage("tx", err)
	}
	m.users = tx.users
	m.nextID = tx.nextID
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.NotFound("user", id)
	}
	return u, nil
}

func (m *MemoryRepository) FindByUsername(_ context.Context, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, shared.NotFound("user", username)
}

func (m *MemoryRepository) List(context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(User) bool { return true }), nil
}

func (m *MemoryRepository) ListByRoles(_ context.Context, roles []rbac.Role) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(u User) bool { return slices.Contains(roles, u.Role) }), nil
}

func (m *MemoryRepository) sorted(keep func(User) bool) []User {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		if keep(u) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b User) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (t *memoryTx) GetForUpdate(_ context.Context, id int64) (User, error) {
	u, ok := t.users[id]
	if !ok {
		return User{}, shared.NotFound("user", id)
	}
	return u, nil
}

func (t *memoryTx) UsernameTaken(_ context.Context, username string) (bool, error) {
	for _, u := range t.users {
		if strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) Insert(_ context.Context, u User) (int64, error) {
	t.nextID++
	u.ID = t.nextID
	t.users[u.ID] = u
	return u.ID, nil
}

func (t *memoryTx) Update(_ context.Context, u User) error {
	if _, ok := t.users[u.ID]; !ok {
		return shared.NotFound("user", u.ID)
	}
	t.users[u.ID] = u
	return nil
}
