package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"collabflow/ledger"
)

// Repository is the write-side data access the engine needs inside a single
// transaction.
type Repository interface {
	RecordExists(ctx context.Context, tx pgx.Tx, recordID int64) (bool, error)
	Tail(ctx context.Context, tx pgx.Tx, recordID int64) (ledger.Entry, bool, error)
	CloseEntry(ctx context.Context, tx pgx.Tx, entryID int64, end time.Time, actualHours float64) error
	InsertEntry(ctx context.Context, tx pgx.Tx, entry ledger.Entry, expectedTailSeq int) (ledger.Entry, error)
}

// PGRepository implements Repository against the status_log table.
type PGRepository struct{}

// NewRepository returns the PostgreSQL-backed repository.
func NewRepository() *PGRepository {
	return &PGRepository{}
}

// RecordExists checks the fulfillment record row; the engine never creates
// records, it only appends to their ledgers.
func (r *PGRepository) RecordExists(ctx context.Context, tx pgx.Tx, recordID int64) (bool, error) {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fulfillment_records WHERE id = $1)`, recordID).Scan(&exists); err != nil {
		return false, fmt.Errorf("workflow: check record: %w", err)
	}
	return exists, nil
}

// Tail loads the latest ledger entry for the record, without locking. The
// engine validates against this snapshot and relies on the guarded insert to
// detect a concurrent writer.
func (r *PGRepository) Tail(ctx context.Context, tx pgx.Tx, recordID int64) (ledger.Entry, bool, error) {
	const query = `
		SELECT id, record_id, seq, from_stage, to_stage, stage_start, stage_end,
		       deadline, planned_duration_hours, actual_duration_hours,
		       change_reason, remarks, operator_id, created_at
		FROM status_log
		WHERE record_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`

	var e ledger.Entry
	err := tx.QueryRow(ctx, query, recordID).Scan(
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
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Entry{}, false, nil
		}
		return ledger.Entry{}, false, fmt.Errorf("workflow: load tail: %w", err)
	}
	return e, true, nil
}

// CloseEntry sets stage_end and the actual duration on a still-open entry.
// Zero rows affected means another writer closed it first.
func (r *PGRepository) CloseEntry(ctx context.Context, tx pgx.Tx, entryID int64, end time.Time, actualHours float64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE status_log
		SET stage_end = $2, actual_duration_hours = $3
		WHERE id = $1 AND stage_end IS NULL
	`, entryID, end, actualHours)
	if err != nil {
		return fmt.Errorf("workflow: close entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: entry %d already closed", ledger.ErrInvariantViolation, entryID)
	}
	return nil
}

// InsertEntry appends the new open entry guarded by the expected tail
// sequence. The guard plus the unique indexes turn a lost race into
// ledger.ErrInvariantViolation for the caller to retry against fresh state.
func (r *PGRepository) InsertEntry(ctx context.Context, tx pgx.Tx, entry ledger.Entry, expectedTailSeq int) (ledger.Entry, error) {
	const insertSQL = `
		INSERT INTO status_log (record_id, seq, from_stage, to_stage, stage_start, stage_end,
		                        deadline, planned_duration_hours, actual_duration_hours,
		                        change_reason, remarks, operator_id, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		WHERE (SELECT COALESCE(MAX(seq), 0) FROM status_log WHERE record_id = $1) = $14
		RETURNING id
	`

	err := tx.QueryRow(ctx, insertSQL,
		entry.RecordID,
		entry.Seq,
		entry.FromStage,
		entry.ToStage,
		entry.StageStart,
		entry.StageEnd,
		entry.Deadline,
		entry.PlannedDurationHours,
		entry.ActualDurationHours,
		entry.ChangeReason,
		entry.Remarks,
		entry.OperatorID,
		entry.CreatedAt,
		expectedTailSeq,
	).Scan(&entry.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Entry{}, fmt.Errorf("%w: tail moved past seq %d", ledger.ErrInvariantViolation, expectedTailSeq)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505": // duplicate seq or second open entry
				return ledger.Entry{}, fmt.Errorf("%w: concurrent append on record %d", ledger.ErrInvariantViolation, entry.RecordID)
			case "23503": // record foreign key
				return ledger.Entry{}, fmt.Errorf("%w: id %d", ErrRecordNotFound, entry.RecordID)
			}
		}
		return ledger.Entry{}, fmt.Errorf("workflow: insert entry: %w", err)
	}
	return entry, nil
}
