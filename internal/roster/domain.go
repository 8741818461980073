package roster

import (
	"encoding/json"
	"time"
)

// Roster is a saved monthly schedule. It starts unapproved and becomes
// visible to non-administrators once approved.
type Roster struct {
	ID         int64           `json:"id"`
	Title      string          `json:"title"`
	Month      int             `json:"month"`
	Year       int             `json:"year"`
	AgentCount int             `json:"agentCount"`
	TargetWO   int             `json:"targetWO"`
	Document   json.RawMessage `json:"document,omitempty"`
	SavedAt    time.Time       `json:"savedAt"`
	SavedBy    string          `json:"savedBy"`
	Approved   bool            `json:"approved"`
	ApprovedAt *time.Time      `json:"approvedAt,omitempty"`
	ApprovedBy string          `json:"approvedBy,omitempty"`
}

// Summary drops the document for listings.
func (r Roster) Summary() Roster {
	r.Document = nil
	return r
}

// SaveInput is the payload of a new roster.
type SaveInput struct {
	Title      string
	Month      int
	Year       int
	AgentCount int
	TargetWO   int
	Document   json.RawMessage
}

// DefaultRetention is how many rosters are kept.
const DefaultRetention = 30
