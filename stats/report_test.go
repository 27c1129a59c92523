package stats

import (
	"math"
	"testing"

	"collabflow/overdue"
)

func TestCompose_Rates(t *testing.T) {
	c := NewComposer(0)

	r := c.Compose(TimelinessStats{TotalRecords: 4, OnTimeRecords: 3, OverdueRecords: 1}, nil)
	if math.Abs(r.Summary.OnTimeRate-0.75) > 1e-9 || math.Abs(r.Summary.OverdueRate-0.25) > 1e-9 {
		t.Fatalf("unexpected rates: %+v", r.Summary)
	}
	if math.Abs(r.Summary.OnTimeRate+r.Summary.OverdueRate-1) > 1e-9 {
		t.Fatalf("rates must sum to 1, got %v", r.Summary.OnTimeRate+r.Summary.OverdueRate)
	}
}

func TestCompose_ZeroRecords(t *testing.T) {
	c := NewComposer(0)

	r := c.Compose(TimelinessStats{}, nil)
	if r.Summary.OnTimeRate != 0 || r.Summary.OverdueRate != 0 {
		t.Fatalf("expected zero rates for empty rollup, got %+v", r.Summary)
	}
	if len(r.TopIssues) != 0 || len(r.CurrentOverdue) != 0 {
		t.Fatalf("expected empty sets, got %+v", r)
	}
}

func TestCompose_TopIssues(t *testing.T) {
	c := NewComposer(3)

	set := []overdue.Record{
		{RecordID: 1, OverdueHours: 6, Level: overdue.LevelWarning},
		{RecordID: 2, OverdueHours: 30, Level: overdue.LevelCritical},
		{RecordID: 3, OverdueHours: 90, Level: overdue.LevelExpired},
		{RecordID: 4, OverdueHours: 100, Level: overdue.LevelExpired},
		{RecordID: 5, OverdueHours: 40, Level: overdue.LevelCritical},
	}

	r := c.Compose(TimelinessStats{TotalRecords: 5, OverdueRecords: 5}, set)

	// Warning-level findings never make the shortlist.
	if len(r.TopIssues) != 3 {
		t.Fatalf("expected 3 top issues, got %d", len(r.TopIssues))
	}
	wantOrder := []int64{4, 3, 5}
	for i, want := range wantOrder {
		if r.TopIssues[i].RecordID != want {
			t.Fatalf("top issue %d: expected record %d, got %d", i, want, r.TopIssues[i].RecordID)
		}
	}

	// The full overdue set stays available, worst first.
	if len(r.CurrentOverdue) != 5 || r.CurrentOverdue[0].RecordID != 4 {
		t.Fatalf("unexpected current overdue set: %+v", r.CurrentOverdue)
	}
}

func TestCompose_TieBreaksByRecordID(t *testing.T) {
	c := NewComposer(3)

	set := []overdue.Record{
		{RecordID: 9, OverdueHours: 80, Level: overdue.LevelExpired},
		{RecordID: 2, OverdueHours: 80, Level: overdue.LevelExpired},
		{RecordID: 5, OverdueHours: 80, Level: overdue.LevelExpired},
	}

	r := c.Compose(TimelinessStats{TotalRecords: 3, OverdueRecords: 3}, set)

	want := []int64{2, 5, 9}
	for i, id := range want {
		if r.TopIssues[i].RecordID != id {
			t.Fatalf("tie break: expected %v, got %+v", want, r.TopIssues)
		}
	}
}

func TestCompose_DoesNotMutateInput(t *testing.T) {
	c := NewComposer(1)

	set := []overdue.Record{
		{RecordID: 1, OverdueHours: 10, Level: overdue.LevelCritical},
		{RecordID: 2, OverdueHours: 99, Level: overdue.LevelExpired},
	}

	_ = c.Compose(TimelinessStats{TotalRecords: 2, OverdueRecords: 2}, set)

	if set[0].RecordID != 1 || set[1].RecordID != 2 {
		t.Fatalf("compose must not reorder the caller's slice: %+v", set)
	}
}
