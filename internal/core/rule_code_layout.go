package core

import (
	"context"
	"fmt"
	"strings"
	"twincore/pkg/domain"
)

const codeLayoutRuleName = "code_layout"

// CodeLayoutRule verifies that every code has the store's width, parses back
// to the recorded level and sibling index, and that full codes are unique.
func CodeLayoutRule() domain.Rule {
	return codeLayoutRule{}
}

type codeLayoutRule struct{}

func (codeLayoutRule) Name() string { return codeLayoutRuleName }

func (codeLayoutRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, kind := range view.Kinds() {
		layout, ok := view.Layout(kind)
		if !ok {
			continue
		}
		seen := make(map[string]struct{})
		for _, e := range view.Entities(kind) {
			report := func(format string, args ...any) {
				res.Violations = append(res.Violations, violation(codeLayoutRuleName, domain.SeverityBlock, kind, e.FullCode, fmt.Sprintf(format, args...)))
			}
			if _, dup := seen[e.FullCode]; dup {
				report("full code %s is not unique", e.FullCode)
			}
			seen[e.FullCode] = struct{}{}
			if e.Layout() != layout {
				report("layout %d/%d differs from store layout %d/%d", e.HierarchyDigits, e.SiblingDigits, layout.HierarchyDigits, layout.SiblingDigits)
				continue
			}
			level, idx, err := layout.Parse(e.Code)
			if err != nil {
				report("%v", err)
				continue
			}
			if level != e.Level || idx != e.SiblingIndex {
				report("code %s encodes level %d index %d, record has %d/%d", e.Code, level, idx, e.Level, e.SiblingIndex)
			}
			if len(e.FullCode) != layout.FullCodeWidth() || !strings.HasSuffix(e.FullCode, e.Code) {
				report("full code %s does not end with code %s at width %d", e.FullCode, e.Code, layout.FullCodeWidth())
			}
			if e.ParentCode != layout.RootSentinel() && len(e.ParentCode) != layout.FullCodeWidth() {
				report("parent code %q has width %d, want %d", e.ParentCode, len(e.ParentCode), layout.FullCodeWidth())
			}
		}
	}
	return res, nil
}
