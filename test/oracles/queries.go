package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against the live database while the
// actors are writing. Each query selects violating rows, so an empty result
// means the invariant holds.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_open_entry",
			SQL: `SELECT record_id, COUNT(*) FROM status_log
                  WHERE stage_end IS NULL
                  GROUP BY record_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_seq_contiguous",
			SQL: `WITH seqs AS (
                      SELECT record_id, seq,
                             LAG(seq) OVER (PARTITION BY record_id ORDER BY seq) AS prev
                      FROM status_log)
                  SELECT * FROM seqs
                  WHERE (prev IS NULL AND seq <> 1)
                     OR (prev IS NOT NULL AND seq <> prev + 1)`,
		},
		{
			Name: "O3_open_is_tail",
			SQL: `SELECT o.record_id, o.seq FROM status_log o
                  WHERE o.stage_end IS NULL
                    AND o.seq <> (SELECT MAX(seq) FROM status_log t WHERE t.record_id = o.record_id)`,
		},
		{
			Name: "O4_end_after_start",
			SQL: `SELECT id, record_id, seq FROM status_log
                  WHERE stage_end IS NOT NULL AND stage_end < stage_start`,
		},
		{
			Name: "O5_deadline_arithmetic",
			SQL: `SELECT id, record_id, seq FROM status_log
                  WHERE ABS(EXTRACT(EPOCH FROM (deadline - stage_start)) - planned_duration_hours * 3600) > 1`,
		},
		{
			Name: "O6_closed_have_actuals",
			SQL: `SELECT id, record_id, seq FROM status_log
                  WHERE stage_end IS NOT NULL AND actual_duration_hours IS NULL`,
		},
		{
			Name: "O7_reason_present",
			SQL:  `SELECT id, record_id, seq FROM status_log WHERE change_reason = ''`,
		},
		{
			Name: "O8_entries_have_record",
			SQL: `SELECT s.id FROM status_log s
                  LEFT JOIN fulfillment_records r ON r.id = s.record_id
                  WHERE r.id IS NULL`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
