package ledger

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func openEntry(recordID int64, seq int, stage string, start time.Time, plannedHours float64) Entry {
	return Entry{
		RecordID:             recordID,
		Seq:                  seq,
		ToStage:              stage,
		StageStart:           start,
		Deadline:             start.Add(time.Duration(plannedHours * float64(time.Hour))),
		PlannedDurationHours: plannedHours,
		ChangeReason:         "test",
		CreatedAt:            start,
	}
}

func closed(e Entry, end time.Time) Entry {
	e.StageEnd = &end
	actual := end.Sub(e.StageStart).Hours()
	e.ActualDurationHours = &actual
	return e
}

func TestLedger_OpenEntry(t *testing.T) {
	l := New(7)
	if _, ok := l.Open(); ok {
		t.Fatal("empty ledger must have no open entry")
	}

	if err := l.Append(openEntry(7, 1, "pending_sample", t0, 24)); err != nil {
		t.Fatalf("append: %v", err)
	}

	open, ok := l.Open()
	if !ok || open.ToStage != "pending_sample" {
		t.Fatalf("expected open pending_sample entry, got ok=%v stage=%s", ok, open.ToStage)
	}
}

func TestLedger_RejectsSecondOpenEntry(t *testing.T) {
	l := New(7)
	if err := l.Append(openEntry(7, 1, "pending_sample", t0, 24)); err != nil {
		t.Fatalf("append: %v", err)
	}

	err := l.Append(openEntry(7, 2, "sample_sent", t0.Add(time.Hour), 72))
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestLedger_RejectsOutOfOrderAppend(t *testing.T) {
	l := New(7)
	first := closed(openEntry(7, 2, "pending_sample", t0, 24), t0.Add(20*time.Hour))
	if err := l.Append(first); err != nil {
		t.Fatalf("append: %v", err)
	}

	// stale sequence
	if err := l.Append(openEntry(7, 2, "sample_sent", t0.Add(21*time.Hour), 72)); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation for stale seq, got %v", err)
	}

	// created_at behind the tail
	late := openEntry(7, 3, "sample_sent", t0.Add(-time.Hour), 72)
	if err := l.Append(late); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation for rewound created_at, got %v", err)
	}
}

func TestLedger_RejectsForeignRecord(t *testing.T) {
	l := New(7)
	if err := l.Append(openEntry(8, 1, "pending_sample", t0, 24)); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestFromHistory_RoundTrip(t *testing.T) {
	entries := []Entry{
		closed(openEntry(7, 1, "pending_sample", t0, 24), t0.Add(20*time.Hour)),
		openEntry(7, 2, "sample_sent", t0.Add(20*time.Hour), 72),
	}

	l, err := FromHistory(7, entries)
	if err != nil {
		t.Fatalf("from history: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", l.Len())
	}

	open, ok := l.Open()
	if !ok || open.ToStage != "sample_sent" {
		t.Fatalf("expected sample_sent open, got ok=%v stage=%s", ok, open.ToStage)
	}

	hist := l.History()
	hist[0].ToStage = "mutated"
	if l.History()[0].ToStage != "pending_sample" {
		t.Fatal("History must return a copy")
	}
}

func TestEntry_OverdueHours(t *testing.T) {
	// Scenario: planned 24h, observed 30h in -> 6h overdue.
	e := openEntry(7, 1, "pending_sample", t0, 24)

	if got := e.OverdueHours(t0.Add(30 * time.Hour)); got != 6 {
		t.Fatalf("expected 6 overdue hours, got %v", got)
	}
	if got := e.OverdueHours(t0.Add(10 * time.Hour)); got != 0 {
		t.Fatalf("on-time entry must report 0, got %v", got)
	}

	// Closed entries measure lateness at close time, not at now.
	c := closed(e, t0.Add(20*time.Hour))
	if got := c.OverdueHours(t0.Add(100 * time.Hour)); got != 0 {
		t.Fatalf("closed-on-time entry must report 0, got %v", got)
	}
	if c.WasLate() {
		t.Fatal("entry closed before deadline must not be late")
	}
	if c.ActualDurationHours == nil || *c.ActualDurationHours != 20 {
		t.Fatalf("expected 20 actual hours, got %v", c.ActualDurationHours)
	}

	lateClose := closed(e, t0.Add(25*time.Hour))
	if got := lateClose.OverdueHours(t0); got != 1 {
		t.Fatalf("expected 1 overdue hour at close, got %v", got)
	}
	if !lateClose.WasLate() {
		t.Fatal("entry closed after deadline must be late")
	}
}
