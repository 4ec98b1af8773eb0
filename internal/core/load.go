package core

import (
	"fmt"
	"sort"
	"twincore/pkg/domain"
)

// RepairKind classifies a fix applied while loading a bucket.
type RepairKind string

// Repairs applied by EntityStore.Load.
const (
	RepairReindexed       RepairKind = "reindexed"        // level or sibling index re-derived from the code
	RepairCodeRecovered   RepairKind = "code_recovered"   // code taken from the full code suffix
	RepairLegacyParent    RepairKind = "legacy_parent"    // short parent code resolved to a full code
	RepairOrphaned        RepairKind = "orphaned"         // unresolvable parent replaced by the root sentinel
	RepairChildrenRebuilt RepairKind = "children_rebuilt" // children_codes rewritten from parent links
	RepairDroppedAttr     RepairKind = "dropped_attribute"
	RepairDedupedRefs     RepairKind = "deduped_technology_refs"
)

// Repair records one fix applied during Load.
type Repair struct {
	Kind     RepairKind `json:"kind"`
	FullCode string     `json:"full_code"`
	Detail   string     `json:"detail,omitempty"`
}

// LoadReport summarizes a Load.
type LoadReport struct {
	Bucket   domain.Bucket `json:"bucket"`
	Entities int           `json:"entities"`
	Missing  bool          `json:"missing"`
	Layout   domain.Layout `json:"layout"`
	Repairs  []Repair      `json:"repairs,omitempty"`
}

// Repaired reports whether any repair was applied.
func (r LoadReport) Repaired() bool { return len(r.Repairs) > 0 }

// rebuildState validates decoded records and re-derives the hierarchy from
// them: level and index come from the code, parent links are resolved by
// exact full code and child lists are rebuilt from the parent links.
func rebuildState(kind domain.Kind, fallback domain.Layout, records []domain.EntityRecord) (*entityState, domain.Layout, LoadReport, error) {
	report := LoadReport{Entities: len(records)}
	layout, err := adoptLayout(fallback, records)
	if err != nil {
		return nil, domain.Layout{}, LoadReport{}, err
	}
	report.Layout = layout
	repair := func(k RepairKind, code, format string, args ...any) {
		report.Repairs = append(report.Repairs, Repair{Kind: k, FullCode: code, Detail: fmt.Sprintf(format, args...)})
	}

	st := newEntityState()
	order := make([]*domain.Entity, 0, len(records))
	for i, rec := range records {
		e := rec.Normalize(kind)
		e.HierarchyDigits, e.SiblingDigits = layout.HierarchyDigits, layout.SiblingDigits
		if len(e.FullCode) != layout.FullCodeWidth() || !isNumeric(e.FullCode) {
			return nil, domain.Layout{}, LoadReport{}, fmt.Errorf("%w: record %d has malformed full code %q", domain.ErrInvalidArgument, i, e.FullCode)
		}
		if _, dup := st.entities[e.FullCode]; dup {
			return nil, domain.Layout{}, LoadReport{}, fmt.Errorf("%w: duplicate full code %s", domain.ErrInvalidArgument, e.FullCode)
		}
		suffix := e.FullCode[layout.CodeWidth():]
		if e.Code != suffix {
			if _, _, err := layout.Parse(suffix); err != nil {
				return nil, domain.Layout{}, LoadReport{}, fmt.Errorf("%w: record %d: %v", domain.ErrInvalidArgument, i, err)
			}
			repair(RepairCodeRecovered, e.FullCode, "code %q replaced by %s", e.Code, suffix)
			e.Code = suffix
		}
		level, idx, err := layout.Parse(e.Code)
		if err != nil {
			return nil, domain.Layout{}, LoadReport{}, fmt.Errorf("%w: record %d: %v", domain.ErrInvalidArgument, i, err)
		}
		if level != e.Level || idx != e.SiblingIndex {
			repair(RepairReindexed, e.FullCode, "level/index %d/%d re-derived as %d/%d", e.Level, e.SiblingIndex, level, idx)
			e.Level, e.SiblingIndex = level, idx
		}
		for t, desc := range e.Attributes {
			canonical, err := domain.ParseAttributeType(string(t))
			if err != nil {
				repair(RepairDroppedAttr, e.FullCode, "attribute %q", t)
				delete(e.Attributes, t)
				continue
			}
			if canonical != t {
				delete(e.Attributes, t)
				if _, exists := e.Attributes[canonical]; !exists {
					e.Attributes[canonical] = desc
				}
			}
		}
		if kind == domain.KindSystem {
			refs := dedupe(e.TechnologyRefs)
			if len(refs) != len(e.TechnologyRefs) {
				repair(RepairDedupedRefs, e.FullCode, "%d duplicate refs removed", len(e.TechnologyRefs)-len(refs))
			}
			e.TechnologyRefs = refs
		}
		entity := e
		st.entities[e.FullCode] = &entity
		order = append(order, &entity)
	}

	for _, e := range order {
		resolveParent(st, layout, e, repair)
	}

	for _, e := range order {
		children := st.sorted(func(c *domain.Entity) bool { return c.ParentCode == e.FullCode })
		rebuilt := make([]string, 0, len(children))
		for _, c := range children {
			rebuilt = append(rebuilt, c.FullCode)
		}
		if !sameCodes(e.ChildrenCodes, rebuilt) {
			repair(RepairChildrenRebuilt, e.FullCode, "%v -> %v", e.ChildrenCodes, rebuilt)
		}
		e.ChildrenCodes = rebuilt
	}
	sort.SliceStable(report.Repairs, func(i, j int) bool { return report.Repairs[i].FullCode < report.Repairs[j].FullCode })
	return st, layout, report, nil
}

// adoptLayout returns the layout shared by every record. Records without
// widths inherit the fallback.
func adoptLayout(fallback domain.Layout, records []domain.EntityRecord) (domain.Layout, error) {
	layout := fallback
	seen := false
	for i, rec := range records {
		if rec.HierarchyDigits == 0 && rec.SiblingDigits == 0 {
			continue
		}
		l := rec.Layout()
		if !seen {
			if err := l.Validate(); err != nil {
				return domain.Layout{}, fmt.Errorf("record %d: %w", i, err)
			}
			layout, seen = l, true
			continue
		}
		if l != layout {
			return domain.Layout{}, fmt.Errorf("%w: record %d uses layout %d/%d, others use %d/%d", domain.ErrInvalidArgument, i,
				l.HierarchyDigits, l.SiblingDigits, layout.HierarchyDigits, layout.SiblingDigits)
		}
	}
	return layout, nil
}

// resolveParent normalizes e.ParentCode to the root sentinel or the exact full
// code of an existing entity.
func resolveParent(st *entityState, layout domain.Layout, e *domain.Entity, repair func(RepairKind, string, string, ...any)) {
	ref := e.ParentCode
	switch {
	case layout.IsRoot(ref):
		e.ParentCode = layout.RootSentinel()
		return
	case len(ref) == layout.FullCodeWidth():
		if p, ok := st.entities[ref]; ok && p != e {
			return
		}
	case len(ref) == layout.CodeWidth():
		if p := legacyParent(st, e, ref); p != nil {
			repair(RepairLegacyParent, e.FullCode, "parent %s resolved to %s", ref, p.FullCode)
			e.ParentCode = p.FullCode
			return
		}
	}
	repair(RepairOrphaned, e.FullCode, "parent %q not found", ref)
	e.ParentCode = layout.RootSentinel()
}

// legacyParent resolves a parent recorded by its own code only. Candidates
// must own that code; when several do, the one listing e as a child wins.
// Ambiguity yields nil.
func legacyParent(st *entityState, e *domain.Entity, code string) *domain.Entity {
	var candidates, claiming []*domain.Entity
	for _, p := range st.entities {
		if p == e || p.Code != code || p.Level+1 != e.Level {
			continue
		}
		candidates = append(candidates, p)
		for _, c := range p.ChildrenCodes {
			if c == e.FullCode {
				claiming = append(claiming, p)
				break
			}
		}
	}
	switch {
	case len(candidates) == 1:
		return candidates[0]
	case len(claiming) == 1:
		return claiming[0]
	}
	return nil
}

func dedupe(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func sameCodes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
