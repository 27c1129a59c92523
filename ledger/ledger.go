package ledger

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation signals that a write would corrupt the ledger: a
// second simultaneously-open entry, or an append that is not at the tail.
// Callers should reload state and retry rather than ignore it.
var ErrInvariantViolation = errors.New("ledger: invariant violation")

// Ledger is the ordered stage history of one record. At most one entry is
// open at a time; the open entry marks the record's current stage.
type Ledger struct {
	recordID int64
	entries  []Entry
}

// New returns an empty ledger for a record that has not started the workflow.
func New(recordID int64) *Ledger {
	return &Ledger{recordID: recordID}
}

// FromHistory rebuilds a ledger from rows already ordered by sequence,
// revalidating the invariants on the way in. Stores use it so a corrupt
// history is rejected at load time instead of poisoning later scans.
func FromHistory(recordID int64, entries []Entry) (*Ledger, error) {
	l := New(recordID)
	for _, e := range entries {
		if err := l.Append(e); err != nil {
			return nil, fmt.Errorf("record %d seq %d: %w", recordID, e.Seq, err)
		}
	}
	return l, nil
}

// RecordID identifies the record this ledger belongs to.
func (l *Ledger) RecordID() int64 {
	return l.recordID
}

// Len is the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Open returns the unique open entry, if any. A record with no entries has
// not started; a record whose last entry is closed and terminal has finished.
func (l *Ledger) Open() (Entry, bool) {
	if n := len(l.entries); n > 0 && l.entries[n-1].Open() {
		return l.entries[n-1], true
	}
	return Entry{}, false
}

// Append inserts an entry at the tail. It fails with ErrInvariantViolation
// when the entry would coexist with an already-open one, or when its sequence
// or creation time does not follow the tail.
func (l *Ledger) Append(e Entry) error {
	if e.RecordID != l.recordID {
		return fmt.Errorf("%w: entry for record %d appended to ledger of record %d", ErrInvariantViolation, e.RecordID, l.recordID)
	}
	if n := len(l.entries); n > 0 {
		tail := l.entries[n-1]
		if tail.Open() && e.Open() {
			return fmt.Errorf("%w: two open entries", ErrInvariantViolation)
		}
		if e.Seq <= tail.Seq {
			return fmt.Errorf("%w: sequence %d not after tail %d", ErrInvariantViolation, e.Seq, tail.Seq)
		}
		if e.CreatedAt.Before(tail.CreatedAt) {
			return fmt.Errorf("%w: created_at before tail", ErrInvariantViolation)
		}
	}
	l.entries = append(l.entries, e)
	return nil
}

// History returns the chronological entries as a copy; mutating the result
// does not touch the ledger.
func (l *Ledger) History() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
