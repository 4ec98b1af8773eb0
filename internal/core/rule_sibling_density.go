package core

import (
	"context"
	"fmt"
	"sort"
	"twincore/pkg/domain"
)

const siblingDensityRuleName = "sibling_density"

// SiblingDensityRule warns when the sibling indices under a parent are not
// exactly 1..n. Gaps appear after deletes and are tolerated.
func SiblingDensityRule() domain.Rule {
	return siblingDensityRule{}
}

type siblingDensityRule struct{}

func (siblingDensityRule) Name() string { return siblingDensityRuleName }

func (siblingDensityRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, kind := range view.Kinds() {
		layout, ok := view.Layout(kind)
		if !ok {
			continue
		}
		groups := make(map[string][]int)
		for _, e := range view.Entities(kind) {
			parent := e.ParentCode
			if layout.IsRoot(parent) {
				parent = layout.RootSentinel()
			}
			key := fmt.Sprintf("%s/%d", parent, e.Level)
			groups[key] = append(groups[key], e.SiblingIndex)
		}
		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			indices := groups[key]
			sort.Ints(indices)
			for i, idx := range indices {
				if idx != i+1 {
					res.Violations = append(res.Violations, violation(siblingDensityRuleName, domain.SeverityWarn, kind, key,
						fmt.Sprintf("sibling indices under %s are %v, not 1..%d", key, indices, len(indices))))
					break
				}
			}
		}
	}
	return res, nil
}
