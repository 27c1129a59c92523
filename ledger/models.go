package ledger

import "time"

// Entry is one row of a record's stage ledger. Entries are append-only: an
// entry is created when its stage becomes current and closed exactly once when
// the record advances past it. The plan fields are copied from the catalog at
// open time and never recomputed.
type Entry struct {
	ID                   int64
	RecordID             int64
	Seq                  int
	FromStage            *string
	ToStage              string
	StageStart           time.Time
	StageEnd             *time.Time
	Deadline             time.Time
	PlannedDurationHours float64
	ActualDurationHours  *float64
	ChangeReason         string
	Remarks              *string
	OperatorID           *string
	CreatedAt            time.Time
}

// Open reports whether the entry's stage is still current.
func (e Entry) Open() bool {
	return e.StageEnd == nil
}

// OverdueHours is the derived lateness of the entry: elapsed time past the
// deadline, measured at now for open entries and at close for closed ones.
// Never negative.
func (e Entry) OverdueHours(now time.Time) float64 {
	ref := now
	if e.StageEnd != nil {
		ref = *e.StageEnd
	}
	if !ref.After(e.Deadline) {
		return 0
	}
	return ref.Sub(e.Deadline).Hours()
}

// WasLate reports whether a closed entry missed its deadline. Open entries
// report false regardless of the clock; use OverdueHours for live lateness.
func (e Entry) WasLate() bool {
	return e.StageEnd != nil && e.StageEnd.After(e.Deadline)
}
