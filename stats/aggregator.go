package stats

import (
	"fmt"
	"time"

	"collabflow/catalog"
	"collabflow/ledger"
)

// TimelinessStats is the global rollup over all tracked records.
type TimelinessStats struct {
	TotalRecords       int
	OnTimeRecords      int
	OverdueRecords     int
	AvgCompletionHours float64
}

// Aggregator rolls ledger snapshots up into timeliness metrics. Like the
// overdue detector it is a pure, synchronous pass over the snapshots.
type Aggregator struct {
	catalog *catalog.Catalog
}

// NewAggregator wires an aggregator against the stage catalog.
func NewAggregator(cat *catalog.Catalog) *Aggregator {
	return &Aggregator{catalog: cat}
}

// Aggregate computes the rollup at now. A record counts as overdue when its
// open entry is past deadline or when any closed entry missed its deadline:
// lateness is sticky, a record that was ever late stays overdue in the stats
// even after recovering. Zero records is not an error and yields zero values.
func (a *Aggregator) Aggregate(ledgers []*ledger.Ledger, now time.Time) (TimelinessStats, error) {
	var s TimelinessStats
	var completionSum float64
	var completionN int

	for _, l := range ledgers {
		if l.Len() == 0 {
			continue
		}
		s.TotalRecords++

		late := false
		for _, e := range l.History() {
			if e.Open() {
				if e.OverdueHours(now) > 0 {
					late = true
				}
				continue
			}
			if e.WasLate() {
				late = true
			}
			stage, err := a.catalog.Stage(e.ToStage)
			if err != nil {
				return TimelinessStats{}, fmt.Errorf("stats: record %d: %w", l.RecordID(), err)
			}
			if stage.Terminal && e.ActualDurationHours != nil {
				completionSum += *e.ActualDurationHours
				completionN++
			}
		}

		if late {
			s.OverdueRecords++
		} else {
			s.OnTimeRecords++
		}
	}

	if completionN > 0 {
		s.AvgCompletionHours = completionSum / float64(completionN)
	}
	return s, nil
}
