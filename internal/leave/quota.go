package leave

import (
	"fmt"
	"time"

	"github.com/cserv-ai/cserv/internal/shared"
)

// MonthLayout formats quota buckets.
const MonthLayout = "2006-01"

// Month buckets a leave date by year-month.
func Month(date time.Time) string {
	return date.Format(MonthLayout)
}

// ParseMonth validates a YYYY-MM bucket.
func ParseMonth(raw string) (string, error) {
	t, err := time.Parse(MonthLayout, raw)
	if err != nil {
		return "", shared.Validation("month must be YYYY-MM")
	}
	return Month(t), nil
}

// countsAgainstQuota reports whether a request occupies a slot. Rejected
// requests keep their slot; only cancellation frees it.
func countsAgainstQuota(s Status) bool {
	return s != StatusCancelled
}

// ConsumedQuota counts the agent's slots used in the bucket of isoDate.
func ConsumedQuota(agentID int64, isoDate string, existing []Request) (int, error) {
	date, err := time.Parse(DateLayout, isoDate)
	if err != nil {
		return 0, shared.Validation("leaveDate must be YYYY-MM-DD")
	}
	return consumedInMonth(agentID, Month(date), existing), nil
}

func consumedInMonth(agentID int64, month string, existing []Request) int {
	n := 0
	for _, r := range existing {
		if r.AgentID == agentID && r.Month() == month && countsAgainstQuota(r.Status) {
			n++
		}
	}
	return n
}

// CheckQuota refuses a new application once consumed reaches limit.
func CheckQuota(agentID int64, month string, existing []Request, limit int) error {
	consumed := consumedInMonth(agentID, month, existing)
	if consumed >= limit {
		return fmt.Errorf("%w: %d of %d short leaves already used in %s", shared.ErrQuotaExceeded, consumed, limit, month)
	}
	return nil
}

// QuotaFor summarises the agent's bucket.
func QuotaFor(agentID int64, month string, existing []Request, limit int) Quota {
	consumed := consumedInMonth(agentID, month, existing)
	return Quota{Month: month, Limit: limit, Consumed: consumed, Remaining: max(limit-consumed, 0)}
}
