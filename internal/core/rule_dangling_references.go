package core

import (
	"context"
	"fmt"
	"twincore/pkg/domain"
)

const danglingReferenceRuleName = "dangling_reference"

// DanglingReferenceRule warns about technology refs and connection endpoints
// that no longer resolve. Only kinds present in the view are checked.
func DanglingReferenceRule() domain.Rule {
	return danglingReferenceRule{}
}

type danglingReferenceRule struct{}

func (danglingReferenceRule) Name() string { return danglingReferenceRuleName }

func (danglingReferenceRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	_, haveSystems := view.Layout(domain.KindSystem)
	_, haveTech := view.Layout(domain.KindTechnology)
	if haveSystems && haveTech {
		for _, sys := range view.Entities(domain.KindSystem) {
			for _, ref := range sys.TechnologyRefs {
				if _, ok := view.FindEntity(domain.KindTechnology, ref); !ok {
					res.Violations = append(res.Violations, violation(danglingReferenceRuleName, domain.SeverityWarn, domain.KindSystem, sys.FullCode,
						fmt.Sprintf("system %s references missing technology %s", sys.FullCode, ref)))
				}
			}
		}
	}
	if !haveSystems {
		return res, nil
	}
	for _, c := range view.Connections() {
		for _, endpoint := range []string{c.Source, c.Target} {
			if !resolvesAnywhere(view, endpoint) {
				res.Violations = append(res.Violations, violation(danglingReferenceRuleName, domain.SeverityWarn, "", c.ID,
					fmt.Sprintf("connection %s endpoint %s does not resolve", c.ID, endpoint)))
			}
		}
	}
	return res, nil
}

func resolvesAnywhere(view domain.RuleView, code string) bool {
	for _, kind := range view.Kinds() {
		if _, ok := view.FindEntity(kind, code); ok {
			return true
		}
	}
	return false
}
