package leave

import (
	"strings"
	"time"

	"github.com/cserv-ai/cserv/internal/shared"
)

// Status is the lifecycle state of a leave request.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusCancelled Status = "Cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Type tells whether the leave was filed ahead of time.
type Type string

const (
	TypePlanned   Type = "Planned"
	TypeUnplanned Type = "Unplanned"
)

// HalfDay designates which half of the day is taken.
type HalfDay string

const (
	FirstHalf  HalfDay = "1st Half"
	SecondHalf HalfDay = "2nd Half"
)

// ParseHalfDay validates the designator.
func ParseHalfDay(raw string) (HalfDay, error) {
	switch h := HalfDay(strings.TrimSpace(raw)); h {
	case FirstHalf, SecondHalf:
		return h, nil
	case "":
		return "", shared.Validation("halfDay required")
	default:
		return "", shared.Validation("halfDay must be %q or %q", FirstHalf, SecondHalf)
	}
}

// Transition names a workflow edge.
type Transition string

const (
	TransitionApply   Transition = "apply"
	TransitionApprove Transition = "approve"
	TransitionReject  Transition = "reject"
	TransitionCancel  Transition = "cancel"
)

// DateLayout is the wire format of leave dates.
const DateLayout = "2006-01-02"

// Request is one short-leave application.
type Request struct {
	ID          int64
	AgentID     int64
	AgentName   string
	LeaveDate   time.Time
	HalfDay     HalfDay
	Reason      string
	Status      Status
	Type        Type
	RequestedAt time.Time

	ApprovedAt     *time.Time
	ApprovedBy     string
	ApproveRemarks string
	RejectedAt     *time.Time
	RejectedBy     string
	RejectRemarks  string
	CancelledAt    *time.Time
	CancelledBy    string
	CancelRemarks  string

	UpdatedAt time.Time
}

// Month returns the quota bucket of the request.
func (r Request) Month() string {
	return Month(r.LeaveDate)
}

// ApplyInput is the payload of a new application.
type ApplyInput struct {
	LeaveDate string
	HalfDay   string
	Reason    string
	// RequestedAt overrides the filing time, mainly for imports.
	RequestedAt    time.Time
	IdempotencyKey string
}

// ListFilter narrows List results.
type ListFilter struct {
	AgentID int64
	Month   string
	Status  Status
}

// Quota summarises one agent's bucket.
type Quota struct {
	Month     string `json:"month"`
	Limit     int    `json:"limit"`
	Consumed  int    `json:"consumed"`
	Remaining int    `json:"remaining"`
}

// Dashboard aggregates a month for administrators.
type Dashboard struct {
	Month    string         `json:"month"`
	ByStatus map[Status]int `json:"byStatus"`
	ByAgent  []AgentUsage   `json:"byAgent"`
	Limit    int            `json:"limit"`
}

// AgentUsage is the consumed quota of one agent.
type AgentUsage struct {
	AgentID   int64  `json:"agentId"`
	AgentName string `json:"agentName"`
	Consumed  int    `json:"consumed"`
}
