// Package domain defines the addressable entity model used by twincore:
// fixed-width hierarchical codes, system and technology entities, typed
// connections and the closed behavior set.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies which store an entity belongs to.
type Kind string

// Supported entity kinds. Each kind lives in its own store and bucket.
const (
	// KindSystem identifies a system element; only systems carry technology refs.
	KindSystem Kind = "system"
	// KindTechnology identifies a technology element.
	KindTechnology Kind = "technology"
	// KindConnectionElement identifies a reusable connection-type element.
	KindConnectionElement Kind = "connection_element"
)

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSystem, KindTechnology, KindConnectionElement:
		return true
	}
	return false
}

// AttributeType is the closed set of attribute categories an entity may describe.
type AttributeType string

// Canonical attribute types.
const (
	AttributeMechanical AttributeType = "mechanical"
	AttributeFluid      AttributeType = "fluid"
	AttributeEnergy     AttributeType = "energy"
	AttributeState      AttributeType = "state"
)

// AttributeTypes lists the attribute types in display order.
func AttributeTypes() []AttributeType {
	return []AttributeType{AttributeMechanical, AttributeFluid, AttributeEnergy, AttributeState}
}

// ParseAttributeType normalizes s (case-insensitive) into an AttributeType.
func ParseAttributeType(s string) (AttributeType, error) {
	t := AttributeType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case AttributeMechanical, AttributeFluid, AttributeEnergy, AttributeState:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAttributeType, s)
}

// Entity is a node in one hierarchy. ParentCode and ChildrenCodes hold full
// codes of entities in the same store, never pointers.
type Entity struct {
	ID              string                   `json:"uuid"`
	Name            string                   `json:"name"`
	Description     string                   `json:"description"`
	HierarchyDigits int                      `json:"hierarchy_digits"`
	SiblingDigits   int                      `json:"sibling_digits"`
	Level           int                      `json:"level"`
	SiblingIndex    int                      `json:"sibling_index"`
	Code            string                   `json:"code"`
	ParentCode      string                   `json:"parent_code"`
	FullCode        string                   `json:"full_code"`
	Attributes      map[AttributeType]string `json:"attributes"`
	ChildrenCodes   []string                 `json:"children_codes"`
	TechnologyRefs  []string                 `json:"technology_refs,omitempty"`
}

// Layout returns the code layout the entity was created with.
func (e Entity) Layout() Layout {
	return Layout{HierarchyDigits: e.HierarchyDigits, SiblingDigits: e.SiblingDigits}
}

// IsRoot reports whether the entity has no parent.
func (e Entity) IsRoot() bool { return e.Layout().IsRoot(e.ParentCode) }

// AddAttribute sets the description for an attribute type, replacing any
// previous description of the same type.
func (e *Entity) AddAttribute(attrType, description string) error {
	t, err := ParseAttributeType(attrType)
	if err != nil {
		return err
	}
	if e.Attributes == nil {
		e.Attributes = make(map[AttributeType]string)
	}
	e.Attributes[t] = description
	return nil
}

// AddChildCode appends a child full code. Keeping ChildrenCodes consistent
// with the children's ParentCode is the store's job.
func (e *Entity) AddChildCode(code string) {
	e.ChildrenCodes = append(e.ChildrenCodes, code)
}

// HasTechnology reports whether code is among the technology refs.
func (e Entity) HasTechnology(code string) bool {
	for _, ref := range e.TechnologyRefs {
		if ref == code {
			return true
		}
	}
	return false
}

// SortedAttributes returns the attribute types present, in display order.
func (e Entity) SortedAttributes() []AttributeType {
	out := make([]AttributeType, 0, len(e.Attributes))
	for t := range e.Attributes {
		out = append(out, t)
	}
	order := make(map[AttributeType]int, 4)
	for i, t := range AttributeTypes() {
		order[t] = i
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

// Clone returns a deep copy.
func (e Entity) Clone() Entity {
	cp := e
	if e.Attributes != nil {
		cp.Attributes = make(map[AttributeType]string, len(e.Attributes))
		for k, v := range e.Attributes {
			cp.Attributes[k] = v
		}
	}
	if e.ChildrenCodes != nil {
		cp.ChildrenCodes = append([]string{}, e.ChildrenCodes...)
	}
	if e.TechnologyRefs != nil {
		cp.TechnologyRefs = append([]string{}, e.TechnologyRefs...)
	}
	return cp
}

// EntityRecord is the on-disk shape of an entity. It also accepts the
// legacy field child_index written by earlier editors.
type EntityRecord struct {
	Entity
	ChildIndex int `json:"child_index,omitempty"`
}

// Normalize fills derived fields of a decoded record: the sibling index from
// the legacy field and empty collections in place of null.
func (r EntityRecord) Normalize(kind Kind) Entity {
	e := r.Entity.Clone()
	if e.SiblingIndex == 0 && r.ChildIndex > 0 {
		e.SiblingIndex = r.ChildIndex
	}
	if e.Attributes == nil {
		e.Attributes = make(map[AttributeType]string)
	}
	if e.ChildrenCodes == nil {
		e.ChildrenCodes = []string{}
	}
	if kind == KindSystem {
		if e.TechnologyRefs == nil {
			e.TechnologyRefs = []string{}
		}
	} else {
		e.TechnologyRefs = nil
	}
	return e
}
