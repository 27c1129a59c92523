package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownStage signals that a referenced stage id is not in the catalog.
var ErrUnknownStage = errors.New("catalog: unknown stage")

// StageDefinition describes one phase of the fulfillment workflow. The planned
// duration is fixed at catalog build time; entries copy it when they open, so
// later catalog changes never rewrite history.
type StageDefinition struct {
	ID                   string
	Order                int
	PlannedDurationHours float64
	Terminal             bool
	SuggestedActions     []string
}

// Catalog is the read-only stage table, ordered by Order. It is built once at
// process start and never mutated afterwards.
type Catalog struct {
	byID    map[string]StageDefinition
	ordered []StageDefinition
}

// New validates the stage definitions and builds a catalog.
func New(defs []StageDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog: no stages defined")
	}

	byID := make(map[string]StageDefinition, len(defs))
	byOrder := make(map[int]string, len(defs))
	ordered := make([]StageDefinition, 0, len(defs))

	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("catalog: stage with empty id")
		}
		if def.PlannedDurationHours <= 0 {
			return nil, fmt.Errorf("catalog: stage %s: planned duration must be positive, got %v", def.ID, def.PlannedDurationHours)
		}
		if def.Order < 0 {
			return nil, fmt.Errorf("catalog: stage %s: negative order %d", def.ID, def.Order)
		}
		if _, dup := byID[def.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate stage id %s", def.ID)
		}
		if other, dup := byOrder[def.Order]; dup {
			return nil, fmt.Errorf("catalog: stages %s and %s share order %d", other, def.ID, def.Order)
		}
		byID[def.ID] = def
		byOrder[def.Order] = def.ID
		ordered = append(ordered, def)
	}

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	if !ordered[len(ordered)-1].Terminal {
		return nil, fmt.Errorf("catalog: last stage %s must be terminal", ordered[len(ordered)-1].ID)
	}

	return &Catalog{byID: byID, ordered: ordered}, nil
}

// Stage looks up a stage definition by id.
func (c *Catalog) Stage(id string) (StageDefinition, error) {
	def, ok := c.byID[id]
	if !ok {
		return StageDefinition{}, fmt.Errorf("%w: %s", ErrUnknownStage, id)
	}
	return def, nil
}

// Next returns the stage following id in order. The second return is false
// when id names a terminal stage or no later stage exists.
func (c *Catalog) Next(id string) (StageDefinition, bool, error) {
	def, err := c.Stage(id)
	if err != nil {
		return StageDefinition{}, false, err
	}
	if def.Terminal {
		return StageDefinition{}, false, nil
	}
	for i, s := range c.ordered {
		if s.ID == id && i+1 < len(c.ordered) {
			return c.ordered[i+1], true, nil
		}
	}
	return StageDefinition{}, false, nil
}

// First returns the stage with the lowest order, where every workflow starts.
func (c *Catalog) First() StageDefinition {
	return c.ordered[0]
}

// Stages returns the definitions in order.
func (c *Catalog) Stages() []StageDefinition {
	out := make([]StageDefinition, len(c.ordered))
	copy(out, c.ordered)
	return out
}
