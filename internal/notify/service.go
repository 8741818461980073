package notify

import (
	"context"

	"github.com/cserv-ai/cserv/internal/rbac"
)

// Service exposes the recipient-facing side of the notification log.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Inbox is a recipient's view of the log.
type Inbox struct {
	Items  []Notification `json:"items"`
	Unread int            `json:"unread"`
}

// List returns the actor's notifications, newest first.
func (s *Service) List(ctx context.Context, actor rbac.Principal) (Inbox, error) {
	items, err := s.repo.ListForRecipient(ctx, actor.ID)
	if err != nil {
		return Inbox{}, err
	}
	if items == nil {
		items = []Notification{}
	}
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	return Inbox{Items: items, Unread: unread}, nil
}

// MarkRead flags one of the actor's notifications as read. Notifications
// addressed to someone else are reported as not found.
func (s *Service) MarkRead(ctx context.Context, actor rbac.Principal, id int64) error {
	return s.repo.MarkRead(ctx, actor.ID, id)
}

// MarkAllRead flags every notification of the actor as read.
func (s *Service) MarkAllRead(ctx context.Context, actor rbac.Principal) (int64, error) {
	return s.repo.MarkAllRead(ctx, actor.ID)
}
