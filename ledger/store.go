package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `id, record_id, seq, from_stage, to_stage, stage_start, stage_end,
       deadline, planned_duration_hours, actual_duration_hours,
       change_reason, remarks, operator_id, created_at`

// Store reads ledger snapshots from PostgreSQL. All mutation goes through the
// transition engine; the store is deliberately read-only.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgxpool-backed store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// History loads one record's entries ordered by sequence.
func (s *Store) History(ctx context.Context, recordID int64) ([]Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM status_log
		WHERE record_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("ledger: load history: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// Ledger loads a record's history into a validated snapshot.
func (s *Store) Ledger(ctx context.Context, recordID int64) (*Ledger, error) {
	entries, err := s.History(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return FromHistory(recordID, entries)
}

// OpenEntries enumerates the open entry of every record currently inside the
// workflow, for overdue scans. At most one row per record by construction.
func (s *Store) OpenEntries(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM status_log
		WHERE stage_end IS NULL
		ORDER BY record_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ledger: list open entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// AllLedgers loads every record's full history for aggregate rollups.
func (s *Store) AllLedgers(ctx context.Context) ([]*Ledger, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM status_log
		ORDER BY record_id ASC, seq ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ledger: load all ledgers: %w", err)
	}
	defer rows.Close()

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}

	ledgers := make([]*Ledger, 0, 16)
	var current *Ledger
	for _, e := range entries {
		if current == nil || current.recordID != e.RecordID {
			current = New(e.RecordID)
			ledgers = append(ledgers, current)
		}
		if err := current.Append(e); err != nil {
			return nil, err
		}
	}
	return ledgers, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	entries := make([]Entry, 0, 8)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID,
			&e.RecordID,
			&e.Seq,
			&e.FromStage,
			&e.ToStage,
			&e.StageStart,
			&e.StageEnd,
			&e.Deadline,
			&e.PlannedDurationHours,
			&e.ActualDurationHours,
			&e.ChangeReason,
			&e.Remarks,
			&e.OperatorID,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate entries: %w", err)
	}
	return entries, nil
}
