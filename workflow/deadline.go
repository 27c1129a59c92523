package workflow

import (
	"time"

	"collabflow/catalog"
)

// Deadline computes when a stage entered at start must be left: start plus
// the stage's planned duration in fixed-length hours. No calendar or
// business-hours adjustment.
func Deadline(stage catalog.StageDefinition, start time.Time) time.Time {
	return start.Add(time.Duration(stage.PlannedDurationHours * float64(time.Hour)))
}
