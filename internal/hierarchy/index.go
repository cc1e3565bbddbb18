// Package hierarchy builds the reverse inheritance indexes written into type entries:
// the classes derived from each class and the types implementing each interface.
package hierarchy

import "git.home.luguber.info/inful/mrefbuilder/internal/metadata"

// Filter is the part of the visibility policy the indexer needs.
type Filter interface {
	IsExposedType(t *metadata.TypeNode) bool
	IsDocumentedInterface(t *metadata.TypeNode) bool
}

// Index maps generic type definitions (or plain types) to the exposed types derived
// from or implementing them. It is read-only once built.
type Index struct {
	descendants  map[*metadata.TypeNode][]*metadata.TypeNode
	implementors map[*metadata.TypeNode][]*metadata.TypeNode
}

// Build indexes every exposed type of the given namespaces in traversal order.
// Classes are recorded under the definition of their base type; every exposed type is
// recorded under the definition of each documented interface it implements.
func Build(namespaces []*metadata.Namespace, filter Filter) *Index {
	idx := &Index{
		descendants:  make(map[*metadata.TypeNode][]*metadata.TypeNode),
		implementors: make(map[*metadata.TypeNode][]*metadata.TypeNode),
	}
	for _, ns := range namespaces {
		for _, t := range ns.Types {
			if !filter.IsExposedType(t) {
				continue
			}
			if t.Kind == metadata.KindClass {
				if base := t.BaseType(); base != nil {
					key := base.TemplateType()
					idx.descendants[key] = append(idx.descendants[key], t)
				}
			}
			for _, iface := range t.Interfaces() {
				if !filter.IsDocumentedInterface(iface) {
					continue
				}
				key := iface.TemplateType()
				idx.implementors[key] = append(idx.implementors[key], t)
			}
		}
	}
	return idx
}

// Descendants returns the exposed classes whose base type is t.
func (i *Index) Descendants(t *metadata.TypeNode) []*metadata.TypeNode {
	if i == nil || t == nil {
		return nil
	}
	return i.descendants[t.TemplateType()]
}

// Implementors returns the exposed types implementing interface t.
func (i *Index) Implementors(t *metadata.TypeNode) []*metadata.TypeNode {
	if i == nil || t == nil {
		return nil
	}
	return i.implementors[t.TemplateType()]
}
