package core

import (
	"fmt"
	"twincore/pkg/domain"
)

// MissingMarker is displayed in place of a reference that does not resolve.
const MissingMarker = "[missing]"

// Reference is a resolved code. Missing is set when the code named no entity
// at resolution time; Name and FullCode are then empty.
type Reference struct {
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	FullCode string `json:"full_code,omitempty"`
	Missing  bool   `json:"missing,omitempty"`
}

// Label returns the entity name or the missing marker.
func (r Reference) Label() string {
	if r.Missing {
		return MissingMarker
	}
	return r.Name
}

// String renders "name | full_code", or "[missing] | code".
func (r Reference) String() string {
	if r.Missing {
		return fmt.Sprintf("%s | %s", MissingMarker, r.Code)
	}
	return fmt.Sprintf("%s | %s", r.Name, r.FullCode)
}

// Resolve looks code up in lookup. It never fails; an absent entity yields
// a Missing reference.
func Resolve(lookup domain.EntityLookup, code string) Reference {
	if lookup != nil {
		if e, ok := lookup.Get(code); ok {
			return Reference{Code: code, Name: e.Name, FullCode: e.FullCode}
		}
	}
	return Reference{Code: code, Missing: true}
}

// ConnectionView is a connection with both endpoints resolved.
type ConnectionView struct {
	Connection domain.Connection `json:"connection"`
	Source     Reference         `json:"source"`
	Target     Reference         `json:"target"`
}

// String renders "source -> label -> target".
func (v ConnectionView) String() string {
	return fmt.Sprintf("%s -> %s -> %s", v.Source, v.Connection.TypeLabel, v.Target)
}

// ConnectionSource lists connections by endpoint.
type ConnectionSource interface {
	ListByEndpoint(code string, role domain.Role) []domain.Connection
}

// Resolver composes the system and technology stores with the connection
// registry for read-only display. It holds no state of its own.
type Resolver struct {
	systems      domain.EntityLookup
	technologies domain.EntityLookup
	connections  ConnectionSource
}

// NewResolver wires the lookups. Any of them may be nil; references into a
// nil lookup resolve as missing.
func NewResolver(systems, technologies domain.EntityLookup, connections ConnectionSource) *Resolver {
	return &Resolver{systems: systems, technologies: technologies, connections: connections}
}

// Technologies resolves the technology refs of a system. An absent system
// yields nil.
func (r *Resolver) Technologies(systemCode string) []Reference {
	if r.systems == nil {
		return nil
	}
	sys, ok := r.systems.Get(systemCode)
	if !ok {
		return nil
	}
	out := make([]Reference, 0, len(sys.TechnologyRefs))
	for _, ref := range sys.TechnologyRefs {
		out = append(out, Resolve(r.technologies, ref))
	}
	return out
}

// Connections resolves the connections where code plays role. Endpoints are
// looked up in the system store first, then the technology store.
func (r *Resolver) Connections(code string, role domain.Role) []ConnectionView {
	if r.connections == nil {
		return nil
	}
	list := r.connections.ListByEndpoint(code, role)
	out := make([]ConnectionView, 0, len(list))
	for _, c := range list {
		out = append(out, ConnectionView{Connection: c, Source: r.endpoint(c.Source), Target: r.endpoint(c.Target)})
	}
	return out
}

func (r *Resolver) endpoint(code string) Reference {
	ref := Resolve(r.systems, code)
	if ref.Missing {
		if tech := Resolve(r.technologies, code); !tech.Missing {
			return tech
		}
	}
	return ref
}

// Children resolves the child list of code in lookup. Stale entries come
// back as Missing references.
func (r *Resolver) Children(lookup domain.EntityLookup, code string) []Reference {
	if lookup == nil {
		return nil
	}
	e, ok := lookup.Get(code)
	if !ok {
		return nil
	}
	out := make([]Reference, 0, len(e.ChildrenCodes))
	for _, c := range e.ChildrenCodes {
		out = append(out, Resolve(lookup, c))
	}
	return out
}
