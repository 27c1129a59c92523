package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"collabflow/catalog"
	"collabflow/ledger"
)

// TestTransition_Integration connects to a real PostgreSQL via DATABASE_URL
// and verifies the end-to-end engine behavior including the concurrent
// append guard.
func TestTransition_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(ctx, t, pool, "fulfillment_records") || !tableExists(ctx, t, pool, "status_log") {
		t.Skip("database schema missing; apply migrations/0001_init.sql first")
	}

	cat, err := catalog.New([]catalog.StageDefinition{
		{ID: "pending_sample", Order: 0, PlannedDurationHours: 24},
		{ID: "sample_sent", Order: 1, PlannedDurationHours: 72},
		{ID: "published", Order: 2, PlannedDurationHours: 12, Terminal: true},
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	engine := NewEngine(pool, nil, cat)

	var recordID int64
	if err := pool.QueryRow(ctx, `
		INSERT INTO fulfillment_records (creator_handle, campaign, brand)
		VALUES ($1, 'Integration Campaign', 'TestCo')
		RETURNING id
	`, fmt.Sprintf("@itest_%d", time.Now().UnixNano())).Scan(&recordID); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	start := time.Now().UTC().Truncate(time.Millisecond)

	first, err := engine.Transition(ctx, TransitionParams{
		RecordID:  recordID,
		ToStageID: "pending_sample",
		Now:       start,
		Reason:    "record entered workflow",
	})
	if err != nil {
		t.Fatalf("first transition: %v", err)
	}
	if first.Seq != 1 || !first.Open() {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	if !first.Deadline.Equal(start.Add(24 * time.Hour)) {
		t.Fatalf("unexpected deadline: %v", first.Deadline)
	}

	// forward step closes the previous entry and fixes the next deadline
	later := start.Add(20 * time.Hour)
	second, err := engine.Transition(ctx, TransitionParams{
		RecordID:  recordID,
		ToStageID: "sample_sent",
		Now:       later,
		Reason:    "samples shipped",
	})
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if second.Seq != 2 || !second.Deadline.Equal(later.Add(72*time.Hour)) {
		t.Fatalf("unexpected second entry: %+v", second)
	}

	var closedActual float64
	if err := pool.QueryRow(ctx, `
		SELECT actual_duration_hours FROM status_log WHERE id = $1
	`, first.ID).Scan(&closedActual); err != nil {
		t.Fatalf("load closed entry: %v", err)
	}
	if closedActual < 19.99 || closedActual > 20.01 {
		t.Fatalf("expected actual ~20h, got %v", closedActual)
	}

	// two writers race to advance the same record; exactly one may win
	var (
		wg        sync.WaitGroup
		successes int
		conflicts int
		mu        sync.Mutex
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Transition(ctx, TransitionParams{
				RecordID:  recordID,
				ToStageID: "published",
				Now:       later.Add(time.Hour),
				Reason:    "content live",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ledger.ErrInvariantViolation), errors.Is(err, ErrInvalidTransition):
				conflicts++
			default:
				t.Errorf("unexpected race error: %v", err)
			}
		}()
	}
	wg.Wait()
	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winner, got %d successes / %d conflicts", successes, conflicts)
	}

	var openCount int
	if err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM status_log WHERE record_id = $1 AND stage_end IS NULL
	`, recordID).Scan(&openCount); err != nil {
		t.Fatalf("count open entries: %v", err)
	}
	if openCount != 1 {
		t.Fatalf("expected one open entry, got %d", openCount)
	}

	// completing the terminal stage finishes the workflow
	done, err := engine.Complete(ctx, CompleteParams{
		RecordID: recordID,
		Now:      later.Add(3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Open() {
		t.Fatalf("expected closed terminal entry: %+v", done)
	}

	if _, err := engine.Transition(ctx, TransitionParams{
		RecordID:  recordID,
		ToStageID: "pending_sample",
		Now:       later.Add(4 * time.Hour),
		Reason:    "should fail",
	}); !errors.Is(err, ErrWorkflowCompleted) {
		t.Fatalf("expected ErrWorkflowCompleted, got %v", err)
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, name).Scan(&exists); err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
