package notify

import (
	"context"
	"sync"

	"github.com/cserv-ai/cserv/internal/shared"
)

// MemoryRepository keeps the log in process, newest first.
type MemoryRepository struct {
	mu     sync.Mutex
	log    []Notification
	nextID int64
}

// NewMemoryRepository returns an empty log.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) InsertBatch(_ context.Context, batch []Notification, retention int) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]Notification, 0, len(batch))
	for _, n := range batch {
		m.nextID++
		n.ID = m.nextID
		stored = append(stored, n)
	}
	next := make([]Notification, 0, len(m.log)+len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		next = append(next, stored[i])
	}
	next = append(next, m.log...)
	if retention > 0 && len(next) > retention {
		next = next[:retention]
	}
	m.log = next
	return stored, nil
}

func (m *MemoryRepository) ListForRecipient(_ context.Context, recipientID int64) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Notification
	for _, n := range m.log {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *MemoryRepository) MarkRead(_ context.Context, recipientID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.log {
		if m.log[i].ID == id && m.log[i].RecipientID == recipientID {
			m.log[i].Read = true
			return nil
		}
	}
	return shared.NotFound("notification", id)
}

func (m *MemoryRepository) MarkAllRead(_ context.Context, recipientID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.log {
		if m.log[i].RecipientID == recipientID && !m.log[i].Read {
			m.log[i].Read = true
			n++
		}
	}
	return n, nil
}

// Len returns the number of retained records.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.log)
}
