package domain

import (
	"fmt"
	"strings"
)

// Behavior names an operation that can be dispatched against an entity.
// The set is closed; handlers live in a registry, never on the entity.
type Behavior string

// Supported behaviors.
const (
	// BehaviorSummary renders "name | full_code".
	BehaviorSummary Behavior = "summary"
	// BehaviorLineage renders the names from the root down to the entity.
	BehaviorLineage Behavior = "lineage"
	// BehaviorAttributes renders one "type: description" line per attribute.
	BehaviorAttributes Behavior = "attributes"
)

// Behaviors lists every declared behavior.
func Behaviors() []Behavior {
	return []Behavior{BehaviorSummary, BehaviorLineage, BehaviorAttributes}
}

// Valid reports whether b is declared.
func (b Behavior) Valid() bool {
	for _, known := range Behaviors() {
		if b == known {
			return true
		}
	}
	return false
}

// ParseBehavior normalizes s into a declared behavior.
func ParseBehavior(s string) (Behavior, error) {
	b := Behavior(strings.ToLower(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownBehavior, s)
	}
	return b, nil
}
