package notify

import (
	"context"
	"time"

	"github.com/cserv-ai/cserv/internal/rbac"
)

// Category classifies the transition that produced a notification.
type Category string

const (
	CategoryLeaveCreated   Category = "leave.created"
	CategoryLeaveApproved  Category = "leave.approved"
	CategoryLeaveRejected  Category = "leave.rejected"
	CategoryLeaveCancelled Category = "leave.cancelled"
	CategoryRosterApproved Category = "roster.approved"
	CategoryUserRegistered Category = "user.registered"
)

// RefType names the kind of entity a notification points at.
type RefType string

const (
	RefLeave  RefType = "leave"
	RefRoster RefType = "roster"
	RefUser   RefType = "user"
)

// Ref identifies the originating entity.
type Ref struct {
	Type RefType `json:"type"`
	ID   int64   `json:"id"`
}

// Notification is an addressed, timestamped message.
type Notification struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipientId"`
	Category    Category  `json:"category"`
	Message     string    `json:"message"`
	Ref         Ref       `json:"ref"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Event is a workflow transition handed to the dispatcher. SubjectID is the
// principal the entity belongs to (the requesting agent for leave requests).
type Event struct {
	Category  Category
	ActorID   int64
	SubjectID int64
	Ref       Ref
	Message   string
}

// DefaultRetention caps the global notification log.
const DefaultRetention = 200

// Repository persists the notification log.
type Repository interface {
	// InsertBatch stores the records and trims the global log to the newest
	// retention entries in one atomic step.
	InsertBatch(ctx context.Context, batch []Notification, retention int) ([]Notification, error)
	ListForRecipient(ctx context.Context, recipientID int64) ([]Notification, error)
	MarkRead(ctx context.Context, recipientID, id int64) error
	MarkAllRead(ctx context.Context, recipientID int64) (int64, error)
}

// Directory resolves principals for fan-out.
type Directory interface {
	ListPrincipals(ctx context.Context, roles ...rbac.Role) ([]rbac.Principal, error)
	FindPrincipal(ctx context.Context, id int64) (rbac.Principal, error)
}

// Deliverer pushes a stored notification to an outside channel.
type Deliverer interface {
	Deliver(ctx context.Context, recipient rbac.Principal, n Notification) error
}

// Observer receives dispatch outcomes for metrics.
type Observer interface {
	ObserveNotification(category string, outcome string)
}
