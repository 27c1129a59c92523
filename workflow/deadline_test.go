package workflow

import (
	"testing"
	"time"

	"collabflow/catalog"
)

func TestDeadline(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		hours float64
		want  time.Time
	}{
		{24, start.Add(24 * time.Hour)},
		{1.5, start.Add(90 * time.Minute)},
		{0.25, start.Add(15 * time.Minute)},
	}

	for _, tc := range cases {
		stage := catalog.StageDefinition{ID: "s", PlannedDurationHours: tc.hours}
		if got := Deadline(stage, start); !got.Equal(tc.want) {
			t.Fatalf("planned %vh: expected %v, got %v", tc.hours, tc.want, got)
		}
	}
}
