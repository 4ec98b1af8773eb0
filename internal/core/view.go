package core

import "twincore/pkg/domain"

// modelView is an immutable snapshot implementing domain.RuleView.
type modelView struct {
	kinds       []domain.Kind
	layouts     map[domain.Kind]domain.Layout
	entities    map[domain.Kind][]domain.Entity
	index       map[domain.Kind]map[string]int
	connections []domain.Connection
}

var _ domain.RuleView = (*modelView)(nil)

func newModelView() *modelView {
	return &modelView{
		layouts:  make(map[domain.Kind]domain.Layout),
		entities: make(map[domain.Kind][]domain.Entity),
		index:    make(map[domain.Kind]map[string]int),
	}
}

func (v *modelView) addStore(kind domain.Kind, layout domain.Layout, list []*domain.Entity) {
	if _, ok := v.layouts[kind]; !ok {
		v.kinds = append(v.kinds, kind)
	}
	v.layouts[kind] = layout
	entities := make([]domain.Entity, 0, len(list))
	idx := make(map[string]int, len(list))
	for i, e := range list {
		entities = append(entities, e.Clone())
		idx[e.FullCode] = i
	}
	v.entities[kind] = entities
	v.index[kind] = idx
}

func (v *modelView) Kinds() []domain.Kind {
	return append([]domain.Kind(nil), v.kinds...)
}

func (v *modelView) Layout(kind domain.Kind) (domain.Layout, bool) {
	l, ok := v.layouts[kind]
	return l, ok
}

func (v *modelView) Entities(kind domain.Kind) []domain.Entity {
	return v.entities[kind]
}

func (v *modelView) FindEntity(kind domain.Kind, fullCode string) (domain.Entity, bool) {
	i, ok := v.index[kind][fullCode]
	if !ok {
		return domain.Entity{}, false
	}
	return v.entities[kind][i], true
}

func (v *modelView) Connections() []domain.Connection {
	return v.connections
}
