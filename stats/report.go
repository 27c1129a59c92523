package stats

import (
	"sort"

	"collabflow/overdue"
)

// Summary carries the headline rates. Both are zero when no records exist;
// the composer never divides by zero.
type Summary struct {
	OnTimeRate  float64
	OverdueRate float64
}

// Report combines the aggregate rollup with the live overdue set and a ranked
// shortlist of the worst offenders.
type Report struct {
	Summary        Summary
	Stats          TimelinessStats
	CurrentOverdue []overdue.Record
	TopIssues      []overdue.Record
}

// DefaultTopIssues is the shortlist size when none is configured.
const DefaultTopIssues = 3

// Composer builds reports.
type Composer struct {
	topN int
}

// NewComposer wires a composer; non-positive topN selects the default.
func NewComposer(topN int) *Composer {
	if topN <= 0 {
		topN = DefaultTopIssues
	}
	return &Composer{topN: topN}
}

// Compose builds the report. TopIssues keeps only critical and expired
// findings, ranked by severity then overdue hours descending, with ascending
// record id breaking ties for determinism. CurrentOverdue is returned sorted
// by overdue hours descending for presentation.
func (c *Composer) Compose(s TimelinessStats, overdueSet []overdue.Record) Report {
	r := Report{Stats: s}

	if s.TotalRecords > 0 {
		total := float64(s.TotalRecords)
		r.Summary.OnTimeRate = float64(s.OnTimeRecords) / total
		r.Summary.OverdueRate = float64(s.OverdueRecords) / total
	}

	current := make([]overdue.Record, len(overdueSet))
	copy(current, overdueSet)
	sort.Slice(current, func(i, j int) bool {
		if current[i].OverdueHours != current[j].OverdueHours {
			return current[i].OverdueHours > current[j].OverdueHours
		}
		return current[i].RecordID < current[j].RecordID
	})
	r.CurrentOverdue = current

	issues := make([]overdue.Record, 0, len(current))
	for _, rec := range current {
		if rec.Level == overdue.LevelCritical || rec.Level == overdue.LevelExpired {
			issues = append(issues, rec)
		}
	}
	sort.Slice(issues, func(i, j int) bool {
		if ri, rj := issues[i].Level.Rank(), issues[j].Level.Rank(); ri != rj {
			return ri > rj
		}
		if issues[i].OverdueHours != issues[j].OverdueHours {
			return issues[i].OverdueHours > issues[j].OverdueHours
		}
		return issues[i].RecordID < issues[j].RecordID
	})
	if len(issues) > c.topN {
		issues = issues[:c.topN]
	}
	r.TopIssues = issues

	return r
}
