package domain

import "context"

// Severity captures rule outcomes.
type Severity string

// Integrity severities.
const (
	// SeverityBlock marks a broken structural guarantee.
	SeverityBlock Severity = "block"
	// SeverityWarn marks a tolerated irregularity such as a dangling reference.
	SeverityWarn Severity = "warn"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Kind     Kind     `json:"kind,omitempty"`
	Code     string   `json:"code,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Count returns the number of violations with the given severity.
func (r Result) Count(severity Severity) int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == severity {
			n++
		}
	}
	return n
}

// RuleView provides read-only access to the model for rule evaluation. A
// view over a single store reports ok=false from Layout for other kinds and
// returns no connections.
type RuleView interface {
	Kinds() []Kind
	Layout(kind Kind) (Layout, bool)
	Entities(kind Kind) []Entity
	FindEntity(kind Kind, fullCode string) (Entity, bool)
	Connections() []Connection
}

// Rule defines one integrity check.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	out := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.Name())
	}
	return out
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
