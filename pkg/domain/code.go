package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Default code widths used by the system and technology stores.
const (
	DefaultHierarchyDigits = 2
	DefaultSiblingDigits   = 4

	maxDigits = 9
)

// Layout fixes the code widths of one store. It never changes once the
// first entity has been created.
type Layout struct {
	HierarchyDigits int `json:"hierarchy_digits"`
	SiblingDigits   int `json:"sibling_digits"`
}

// DefaultLayout returns the 2/4 layout used for systems and technologies.
func DefaultLayout() Layout {
	return Layout{HierarchyDigits: DefaultHierarchyDigits, SiblingDigits: DefaultSiblingDigits}
}

// DefaultLayoutFor returns the layout a new store of kind starts with.
// Connection-type elements use the narrower 2/2 layout.
func DefaultLayoutFor(kind Kind) Layout {
	if kind == KindConnectionElement {
		return Layout{HierarchyDigits: 2, SiblingDigits: 2}
	}
	return DefaultLayout()
}

// Validate reports whether both widths are within 1..9.
func (l Layout) Validate() error {
	if l.HierarchyDigits < 1 || l.HierarchyDigits > maxDigits {
		return fmt.Errorf("%w: hierarchy digits %d outside 1..%d", ErrInvalidArgument, l.HierarchyDigits, maxDigits)
	}
	if l.SiblingDigits < 1 || l.SiblingDigits > maxDigits {
		return fmt.Errorf("%w: sibling digits %d outside 1..%d", ErrInvalidArgument, l.SiblingDigits, maxDigits)
	}
	return nil
}

// CodeWidth is the width of an entity's own code.
func (l Layout) CodeWidth() int { return l.HierarchyDigits + l.SiblingDigits }

// FullCodeWidth is the width of every full code in the store.
func (l Layout) FullCodeWidth() int { return 2 * l.CodeWidth() }

// RootCode is the all-zero code segment that prefixes the full code of a root.
func (l Layout) RootCode() string { return strings.Repeat("0", l.CodeWidth()) }

// RootSentinel is the all-zero parent code carried by roots.
func (l Layout) RootSentinel() string { return strings.Repeat("0", l.FullCodeWidth()) }

// IsRoot reports whether a parent reference denotes "no parent". The empty
// string and the all-zero sentinel at code or full-code width all qualify.
func (l Layout) IsRoot(parentCode string) bool {
	if parentCode == "" {
		return true
	}
	return parentCode == l.RootSentinel() || parentCode == l.RootCode()
}

// MaxLevel is the deepest level representable with HierarchyDigits.
func (l Layout) MaxLevel() int { return pow10(l.HierarchyDigits) - 1 }

// MaxSiblingIndex is the largest sibling index representable with SiblingDigits.
func (l Layout) MaxSiblingIndex() int { return pow10(l.SiblingDigits) - 1 }

// Generate is GenerateCode bound to the layout.
func (l Layout) Generate(level, siblingIndex int) (string, error) {
	return GenerateCode(level, siblingIndex, l.HierarchyDigits, l.SiblingDigits)
}

// Parse is ParseCode bound to the layout.
func (l Layout) Parse(code string) (level, siblingIndex int, err error) {
	return ParseCode(code, l.HierarchyDigits, l.SiblingDigits)
}

// GenerateCode maps (level, sibling index) to a fixed-width code: the level
// zero-padded to hierarchyDigits followed by the index zero-padded to
// siblingDigits.
func GenerateCode(level, siblingIndex, hierarchyDigits, siblingDigits int) (string, error) {
	layout := Layout{HierarchyDigits: hierarchyDigits, SiblingDigits: siblingDigits}
	if err := layout.Validate(); err != nil {
		return "", err
	}
	if level < 0 {
		return "", fmt.Errorf("%w: negative level %d", ErrInvalidArgument, level)
	}
	if siblingIndex < 1 {
		return "", fmt.Errorf("%w: sibling index %d must be positive", ErrInvalidArgument, siblingIndex)
	}
	if level > layout.MaxLevel() {
		return "", fmt.Errorf("%w: level %d overflows %d digits", ErrInvalidArgument, level, hierarchyDigits)
	}
	if siblingIndex > layout.MaxSiblingIndex() {
		return "", fmt.Errorf("%w: sibling index %d overflows %d digits", ErrInvalidArgument, siblingIndex, siblingDigits)
	}
	return fmt.Sprintf("%0*d%0*d", hierarchyDigits, level, siblingDigits, siblingIndex), nil
}

// ParseCode splits a code produced by GenerateCode back into its level and
// sibling index.
func ParseCode(code string, hierarchyDigits, siblingDigits int) (level, siblingIndex int, err error) {
	layout := Layout{HierarchyDigits: hierarchyDigits, SiblingDigits: siblingDigits}
	if err := layout.Validate(); err != nil {
		return 0, 0, err
	}
	if len(code) != layout.CodeWidth() {
		return 0, 0, fmt.Errorf("%w: code %q has width %d, want %d", ErrInvalidArgument, code, len(code), layout.CodeWidth())
	}
	if !isDigits(code) {
		return 0, 0, fmt.Errorf("%w: code %q is not numeric", ErrInvalidArgument, code)
	}
	level, _ = strconv.Atoi(code[:hierarchyDigits])
	siblingIndex, _ = strconv.Atoi(code[hierarchyDigits:])
	if siblingIndex < 1 {
		return 0, 0, fmt.Errorf("%w: code %q has zero sibling index", ErrInvalidArgument, code)
	}
	return level, siblingIndex, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pow10(n int) int {
	out := 1
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}
