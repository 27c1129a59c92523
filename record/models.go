package record

import "time"

// Record is one tracked collaboration: a creator fulfilling a campaign. The
// engine references records by id only; these fields exist for operators
// browsing the workload.
type Record struct {
	ID            int64
	CreatorHandle string
	Campaign      string
	Brand         string
	CreatedAt     time.Time
}
