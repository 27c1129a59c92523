package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"collabflow/catalog"
	"collabflow/ledger"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Engine performs stage transitions. It is the only writer of status_log;
// overdue and stats passes read snapshots and never mutate.
type Engine struct {
	pool    TxBeginner
	repo    Repository
	catalog *catalog.Catalog
}

// NewEngine wires the transition engine. A nil repo selects the PostgreSQL
// implementation.
func NewEngine(pool TxBeginner, repo Repository, cat *catalog.Catalog) *Engine {
	if repo == nil {
		repo = NewRepository()
	}
	return &Engine{pool: pool, repo: repo, catalog: cat}
}

// TransitionParams carries one transition request. Now is supplied by the
// caller; the engine never reads the wall clock.
type TransitionParams struct {
	RecordID   int64
	ToStageID  string
	Now        time.Time
	Reason     string
	OperatorID *string
	Remarks    *string
	// Override bypasses the forward-only single-step order rule for explicit
	// out-of-order corrections. The reason is still required and logged.
	Override bool
}

// CompleteParams closes the open terminal entry of a record, finishing the
// workflow.
type CompleteParams struct {
	RecordID   int64
	Now        time.Time
	OperatorID *string
	Remarks    *string
}

// Transition validates and performs a stage transition: it closes the current
// open entry (if any) and opens the next one, both in a single transaction.
// The new entry's deadline is fixed at open time from the catalog.
//
// A concurrent transition on the same record makes the tail-sequence guard
// fail for the loser, which surfaces as ledger.ErrInvariantViolation; the
// caller reloads state and retries. Transitions on different records are
// fully independent.
func (e *Engine) Transition(ctx context.Context, params TransitionParams) (ledger.Entry, error) {
	if params.Now.IsZero() {
		return ledger.Entry{}, fmt.Errorf("workflow: missing transition time")
	}
	if params.Reason == "" {
		return ledger.Entry{}, fmt.Errorf("workflow: change reason required")
	}

	toStage, err := e.catalog.Stage(params.ToStageID)
	if err != nil {
		return ledger.Entry{}, err
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("workflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	exists, err := e.repo.RecordExists(ctx, tx, params.RecordID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if !exists {
		return ledger.Entry{}, fmt.Errorf("%w: id %d", ErrRecordNotFound, params.RecordID)
	}

	tail, hasTail, err := e.repo.Tail(ctx, tx, params.RecordID)
	if err != nil {
		return ledger.Entry{}, err
	}

	expectedSeq := 0
	var fromStage *string

	if hasTail {
		expectedSeq = tail.Seq
		current, err := e.catalog.Stage(tail.ToStage)
		if err != nil {
			return ledger.Entry{}, fmt.Errorf("workflow: ledger stage missing from catalog: %w", err)
		}

		if !tail.Open() {
			if current.Terminal {
				return ledger.Entry{}, fmt.Errorf("%w: record %d", ErrWorkflowCompleted, params.RecordID)
			}
			return ledger.Entry{}, fmt.Errorf("%w: closed non-terminal tail on record %d", ledger.ErrInvariantViolation, params.RecordID)
		}

		if !params.Override {
			if current.Terminal {
				return ledger.Entry{}, fmt.Errorf("%w: no transitions leave terminal stage %s", ErrInvalidTransition, current.ID)
			}
			if toStage.Order != current.Order+1 {
				return ledger.Entry{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.ID, toStage.ID)
			}
		}
		if params.Now.Before(tail.CreatedAt) {
			return ledger.Entry{}, fmt.Errorf("%w: transition time precedes tail entry", ledger.ErrInvariantViolation)
		}

		from := current.ID
		fromStage = &from

		actual := params.Now.Sub(tail.StageStart).Hours()
		if err := e.repo.CloseEntry(ctx, tx, tail.ID, params.Now, actual); err != nil {
			return ledger.Entry{}, err
		}
	} else if !params.Override && toStage.ID != e.catalog.First().ID {
		return ledger.Entry{}, fmt.Errorf("%w: workflow must start at %s", ErrInvalidTransition, e.catalog.First().ID)
	}

	entry := ledger.Entry{
		RecordID:             params.RecordID,
		Seq:                  expectedSeq + 1,
		FromStage:            fromStage,
		ToStage:              toStage.ID,
		StageStart:           params.Now,
		Deadline:             Deadline(toStage, params.Now),
		PlannedDurationHours: toStage.PlannedDurationHours,
		ChangeReason:         params.Reason,
		Remarks:              params.Remarks,
		OperatorID:           params.OperatorID,
		CreatedAt:            params.Now,
	}

	inserted, err := e.repo.InsertEntry(ctx, tx, entry, expectedSeq)
	if err != nil {
		return ledger.Entry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ledger.Entry{}, fmt.Errorf("workflow: commit transition: %w", err)
	}

	return inserted, nil
}

// Complete closes the open terminal entry, marking the record finished. Once
// completed, every further transition fails with ErrWorkflowCompleted.
func (e *Engine) Complete(ctx context.Context, params CompleteParams) (ledger.Entry, error) {
	if params.Now.IsZero() {
		return ledger.Entry{}, fmt.Errorf("workflow: missing completion time")
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("workflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tail, hasTail, err := e.repo.Tail(ctx, tx, params.RecordID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if !hasTail {
		return ledger.Entry{}, fmt.Errorf("%w: id %d", ErrNotStarted, params.RecordID)
	}

	stage, err := e.catalog.Stage(tail.ToStage)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("workflow: ledger stage missing from catalog: %w", err)
	}

	if !tail.Open() {
		if stage.Terminal {
			return ledger.Entry{}, fmt.Errorf("%w: record %d", ErrWorkflowCompleted, params.RecordID)
		}
		return ledger.Entry{}, fmt.Errorf("%w: closed non-terminal tail on record %d", ledger.ErrInvariantViolation, params.RecordID)
	}
	if !stage.Terminal {
		return ledger.Entry{}, fmt.Errorf("%w: stage %s is not terminal", ErrInvalidTransition, stage.ID)
	}
	if params.Now.Before(tail.StageStart) {
		return ledger.Entry{}, fmt.Errorf("%w: completion time precedes stage start", ledger.ErrInvariantViolation)
	}

	actual := params.Now.Sub(tail.StageStart).Hours()
	if err := e.repo.CloseEntry(ctx, tx, tail.ID, params.Now, actual); err != nil {
		return ledger.Entry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ledger.Entry{}, fmt.Errorf("workflow: commit completion: %w", err)
	}

	end := params.Now
	tail.StageEnd = &end
	tail.ActualDurationHours = &actual
	return tail, nil
}
