package overdue

// Level is the severity bucket derived from overdue duration.
type Level string

const (
	LevelNone     Level = "none"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
	LevelExpired  Level = "expired"
)

// Rank orders levels by severity for sorting; higher is worse.
func (l Level) Rank() int {
	switch l {
	case LevelWarning:
		return 1
	case LevelCritical:
		return 2
	case LevelExpired:
		return 3
	default:
		return 0
	}
}

// boundary is one row of the ordered threshold table: overdue hours up to and
// including Max map to Level. The final open-ended bucket is LevelExpired.
type boundary struct {
	max   float64
	level Level
}

// Classifier maps overdue hours to a severity level. Boundaries are
// closed-below/open-above by construction, so every nonnegative value falls
// into exactly one bucket.
type Classifier struct {
	boundaries []boundary
}

// Default thresholds: warning up to 24h overdue, critical up to 72h, expired
// beyond.
const (
	DefaultWarningMaxHours  = 24.0
	DefaultCriticalMaxHours = 72.0
)

// NewClassifier builds a classifier from the two configurable ceilings.
// Non-positive or inverted ceilings fall back to the defaults.
func NewClassifier(warningMaxHours, criticalMaxHours float64) *Classifier {
	if warningMaxHours <= 0 || criticalMaxHours <= warningMaxHours {
		warningMaxHours = DefaultWarningMaxHours
		criticalMaxHours = DefaultCriticalMaxHours
	}
	return &Classifier{
		boundaries: []boundary{
			{max: 0, level: LevelNone},
			{max: warningMaxHours, level: LevelWarning},
			{max: criticalMaxHours, level: LevelCritical},
		},
	}
}

// Classify returns the severity level for the given overdue duration.
func (c *Classifier) Classify(overdueHours float64) Level {
	for _, b := range c.boundaries {
		if overdueHours <= b.max {
			return b.level
		}
	}
	return LevelExpired
}
