package shared

import (
	"fmt"
	"hash/fnv"
)

// QuotaLockKey derives the advisory lock key guarding one agent's quota bucket.
func QuotaLockKey(agentID int64, month string) int64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "shortleave:quota:%d:%s", agentID, month)
	return int64(h.Sum64())
}
