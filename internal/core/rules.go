package core

import "twincore/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in integrity checks.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(CodeLayoutRule())
	engine.Register(HierarchyIntegrityRule())
	engine.Register(SiblingDensityRule())
	engine.Register(DanglingReferenceRule())
	return engine
}

func violation(rule string, severity domain.Severity, kind domain.Kind, code, message string) domain.Violation {
	return domain.Violation{Rule: rule, Severity: severity, Message: message, Kind: kind, Code: code}
}
