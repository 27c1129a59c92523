package actors

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"collabflow/catalog"
	"collabflow/ledger"
	"collabflow/overdue"
	"collabflow/stats"
	"collabflow/workflow"
)

// expected reports whether err is a normal outcome under contention rather
// than a bug: lost races, order-rule rejections and already-finished records
// all happen when several actors hammer the same ledger. Anything else is
// treated as transient (the chaos actor kills backends), because the SQL
// oracles are the authority on correctness.
func expected(err error) bool {
	return errors.Is(err, ledger.ErrInvariantViolation) ||
		errors.Is(err, workflow.ErrInvalidTransition) ||
		errors.Is(err, workflow.ErrWorkflowCompleted) ||
		errors.Is(err, workflow.ErrNotStarted) ||
		errors.Is(err, catalog.ErrUnknownStage)
}

func done(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

func jitter(baseMillis int) {
	time.Sleep(time.Duration(baseMillis+rand.Intn(baseMillis)) * time.Millisecond)
}

// Advancer pushes one record forward through the stage table. Several
// advancers contend on the same record; losers see invariant violations and
// reload, which is the retry loop real callers run.
func Advancer(ctx context.Context, engine *workflow.Engine, store *ledger.Store, cat *catalog.Catalog, recordID int64, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		entries, err := store.History(ctx, recordID)
		if err != nil {
			jitter(20)
			continue
		}

		var target catalog.StageDefinition
		if len(entries) == 0 {
			target = cat.First()
		} else {
			tail := entries[len(entries)-1]
			if !tail.Open() {
				// workflow finished, nothing left to advance
				jitter(20)
				continue
			}
			next, ok, err := cat.Next(tail.ToStage)
			if err != nil || !ok {
				jitter(20)
				continue
			}
			target = next
		}

		_, err = engine.Transition(ctx, workflow.TransitionParams{
			RecordID:  recordID,
			ToStageID: target.ID,
			Now:       time.Now().UTC(),
			Reason:    "stress advance",
		})
		_ = err // expected rejections and transient failures alike; oracles decide
		jitter(10)
	}
	return nil
}

// Corrector occasionally rewinds the record to an earlier stage via the
// override path, simulating a manager fixing a mis-click.
func Corrector(ctx context.Context, engine *workflow.Engine, cat *catalog.Catalog, recordID int64, stop <-chan struct{}) error {
	stages := cat.Stages()
	for !done(ctx, stop) {
		target := stages[rand.Intn(len(stages))]
		_, err := engine.Transition(ctx, workflow.TransitionParams{
			RecordID:  recordID,
			ToStageID: target.ID,
			Now:       time.Now().UTC(),
			Reason:    "stress correction",
			Override:  true,
		})
		_ = err
		jitter(150)
	}
	return nil
}

// Completer keeps trying to close the terminal stage; it succeeds at most
// once per pass and otherwise gets rejected.
func Completer(ctx context.Context, engine *workflow.Engine, recordID int64, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		_, err := engine.Complete(ctx, workflow.CompleteParams{
			RecordID: recordID,
			Now:      time.Now().UTC(),
		})
		_ = err
		jitter(100)
	}
	return nil
}

// Scanner runs the read side concurrently with the writers: overdue
// detection over open entries and the aggregate rollup over full histories.
// FromHistory revalidates every snapshot when ledgers are rebuilt, so a
// broken ledger surfaces here as ErrInvariantViolation even before the SQL
// oracles fire.
func Scanner(ctx context.Context, pool *pgxpool.Pool, cat *catalog.Catalog, stop <-chan struct{}) error {
	store := ledger.NewStore(pool)
	detector := overdue.NewDetector(cat, overdue.NewClassifier(24, 72))
	aggregator := stats.NewAggregator(cat)
	composer := stats.NewComposer(3)

	for !done(ctx, stop) {
		now := time.Now().UTC()

		open, err := store.OpenEntries(ctx)
		if err != nil {
			jitter(50)
			continue
		}
		findings, err := detector.Detect(open, now)
		if err != nil {
			if expected(err) {
				return err
			}
			jitter(50)
			continue
		}

		ledgers, err := store.AllLedgers(ctx)
		if err != nil {
			// Append validation failures mean the table itself is broken.
			if errors.Is(err, ledger.ErrInvariantViolation) {
				return err
			}
			jitter(50)
			continue
		}
		rollup, err := aggregator.Aggregate(ledgers, now)
		if err != nil {
			return err
		}

		_ = composer.Compose(rollup, findings)
		jitter(50)
	}
	return nil
}
