package core

import (
	"context"
	"fmt"
	"twincore/pkg/domain"
)

const hierarchyIntegrityRuleName = "hierarchy_integrity"

// HierarchyIntegrityRule checks parent references against child lists in
// both directions.
func HierarchyIntegrityRule() domain.Rule {
	return hierarchyIntegrityRule{}
}

type hierarchyIntegrityRule struct{}

func (hierarchyIntegrityRule) Name() string { return hierarchyIntegrityRuleName }

func (hierarchyIntegrityRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, kind := range view.Kinds() {
		layout, ok := view.Layout(kind)
		if !ok {
			continue
		}
		report := func(code, format string, args ...any) {
			res.Violations = append(res.Violations, violation(hierarchyIntegrityRuleName, domain.SeverityBlock, kind, code, fmt.Sprintf(format, args...)))
		}
		for _, e := range view.Entities(kind) {
			if layout.IsRoot(e.ParentCode) {
				if len(e.FullCode) == layout.FullCodeWidth() && e.FullCode[:layout.CodeWidth()] != layout.RootCode() {
					report(e.FullCode, "root %s does not carry the root prefix", e.FullCode)
				}
			} else {
				parent, found := view.FindEntity(kind, e.ParentCode)
				if !found {
					report(e.FullCode, "parent %s does not exist", e.ParentCode)
				} else {
					if parent.Level+1 != e.Level {
						report(e.FullCode, "level %d is not parent level %d + 1", e.Level, parent.Level)
					}
					if n := count(parent.ChildrenCodes, e.FullCode); n != 1 {
						report(e.FullCode, "parent %s lists the entity %d times", parent.FullCode, n)
					}
				}
			}
			for _, child := range e.ChildrenCodes {
				c, found := view.FindEntity(kind, child)
				if !found {
					report(e.FullCode, "child %s does not exist", child)
					continue
				}
				if c.ParentCode != e.FullCode {
					report(e.FullCode, "child %s points at parent %s", child, c.ParentCode)
				}
			}
		}
	}
	return res, nil
}

func count(codes []string, code string) int {
	n := 0
	for _, c := range codes {
		if c == code {
			n++
		}
	}
	return n
}
