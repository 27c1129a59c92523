package overdue

import (
	"fmt"
	"time"

	"collabflow/catalog"
	"collabflow/ledger"
)

// Record is one overdue finding: a record whose current stage has passed its
// deadline as of the scan time.
type Record struct {
	RecordID         int64
	CurrentStage     string
	OverdueHours     float64
	Level            Level
	SuggestedActions []string
}

// Detector scans open ledger entries against a caller-supplied clock. It is a
// pure read-only pass: the same entries and the same now always produce the
// same findings.
type Detector struct {
	catalog    *catalog.Catalog
	classifier *Classifier
}

// NewDetector wires a detector. A nil classifier selects the default
// thresholds.
func NewDetector(cat *catalog.Catalog, classifier *Classifier) *Detector {
	if classifier == nil {
		classifier = NewClassifier(DefaultWarningMaxHours, DefaultCriticalMaxHours)
	}
	return &Detector{catalog: cat, classifier: classifier}
}

// Detect computes the overdue set from the open entries, one per record.
// On-time entries are excluded; records without an open entry never reach the
// detector (they are not started or already completed). No result order is
// guaranteed; callers sort per their need.
func (d *Detector) Detect(open []ledger.Entry, now time.Time) ([]Record, error) {
	out := make([]Record, 0, len(open))
	for _, e := range open {
		if !e.Open() {
			continue
		}
		hours := e.OverdueHours(now)
		if hours == 0 {
			continue
		}
		stage, err := d.catalog.Stage(e.ToStage)
		if err != nil {
			return nil, fmt.Errorf("overdue: record %d: %w", e.RecordID, err)
		}
		out = append(out, Record{
			RecordID:         e.RecordID,
			CurrentStage:     stage.ID,
			OverdueHours:     hours,
			Level:            d.classifier.Classify(hours),
			SuggestedActions: stage.SuggestedActions,
		})
	}
	return out, nil
}
