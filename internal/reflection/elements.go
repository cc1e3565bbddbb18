package reflection

import (
	"strconv"
	"strings"

	"git.home.luguber.info/inful/mrefbuilder/internal/literal"
	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
	"git.home.luguber.info/inful/mrefbuilder/internal/util/sets"
)

// ElementList is the member list of a type: its own exposed members followed by the
// exposed members it inherits. It is the info passed to "elements" callbacks, which may
// append further element entries.
type ElementList struct {
	Type    *metadata.TypeNode
	Members []metadata.Member
}

// Elements returns the element list of t. Classes and structures inherit along the base
// chain, except constructors and members hidden by a member with the same signature.
// Interfaces inherit the members of their documented interfaces. Enumerations inherit
// nothing.
func (w *Writer) Elements(t *metadata.TypeNode) *ElementList {
	list := &ElementList{Type: t}
	seen := sets.New[string]()

	add := func(m metadata.Member, inherited bool) {
		if _, nested := m.(*metadata.TypeNode); nested {
			return
		}
		if !w.filter.IsExposedMember(m) {
			return
		}
		if inherited {
			if m.Info().IsPrivate() {
				return
			}
			if method, ok := m.(*metadata.Method); ok && method.IsConstructor() {
				return
			}
		}
		key := signatureKey(m)
		if inherited && seen.Has(key) {
			return
		}
		seen.Add(key)
		list.Members = append(list.Members, m)
	}

	for _, m := range t.Members() {
		add(m, false)
	}

	switch t.Kind {
	case metadata.KindClass, metadata.KindStruct:
		for _, ancestor := range t.Ancestors() {
			for _, m := range ancestor.Members() {
				add(m, true)
			}
		}
	case metadata.KindInterface:
		visited := sets.New[string]()
		var walk func(list []*metadata.TypeNode)
		walk = func(list []*metadata.TypeNode) {
			for _, i := range list {
				if visited.Has(i.FullName()) || !w.filter.IsDocumentedInterface(i) {
					continue
				}
				visited.Add(i.FullName())
				for _, m := range i.Members() {
					add(m, true)
				}
				walk(i.Interfaces())
			}
		}
		walk(t.Interfaces())
	}

	return list
}

// signatureKey identifies a member for hiding: its name plus parameter types for
// methods and indexers. Method generic parameters are keyed by position so that
// renamed parameters still match.
func signatureKey(m metadata.Member) string {
	var params []*metadata.Parameter
	switch v := m.(type) {
	case *metadata.Method:
		params = v.Parameters
	case *metadata.Property:
		params = v.Parameters
	}
	name := m.Info().Name
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		// Explicit implementations never hide inherited members.
		return m.Info().DeclaringType.FullName() + ":" + name
	}
	if len(params) == 0 {
		return name
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = parameterKey(p.Type)
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

func parameterKey(t *metadata.TypeNode) string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case metadata.KindTemplateParameter:
		if _, method := t.DeclaringMember.(*metadata.Method); method {
			return "``" + strconv.Itoa(t.Position)
		}
		return "`" + strconv.Itoa(t.Position)
	case metadata.KindArray:
		return parameterKey(t.ElementType) + "[" + strconv.Itoa(t.Rank) + "]"
	case metadata.KindPointer:
		return parameterKey(t.ElementType) + "*"
	case metadata.KindReference:
		return parameterKey(t.ElementType) + "@"
	case metadata.KindOptionalModifier, metadata.KindRequiredModifier:
		return parameterKey(t.ElementType)
	}
	if t.Template != nil {
		args := make([]string, len(t.TemplateArguments))
		for i, a := range t.TemplateArguments {
			args[i] = parameterKey(a)
		}
		return t.Template.FullName() + "{" + strings.Join(args, ",") + "}"
	}
	return t.FullName()
}

// writeTypeElements writes the elements list of a type. Nothing is written when the
// list is empty.
func (w *Writer) writeTypeElements(t *metadata.TypeNode) {
	list := w.Elements(t)
	if len(list.Members) == 0 {
		return
	}

	w.xml.WriteStartElement("elements")
	w.startCallbacksFor("elements", list)
	for _, m := range list.Members {
		w.writeElement(m)
	}
	w.endCallbacksFor("elements", list)
	w.xml.WriteEndElement()
}

// writeElement writes one element entry. Members that cannot be looked up elsewhere in
// the document are described inline: inherited members of specialized types and
// members declared in reference assemblies.
func (w *Writer) writeElement(m metadata.Member) {
	template := metadata.TemplateMember(m)
	declaring := m.Info().DeclaringType

	w.xml.WriteStartElement("element")
	w.xml.WriteAttributeString("api", literal.ValidXMLValue(w.namer.MemberName(template)))

	inline := false
	if !declaring.IsStructurallyEquivalentTo(template.Info().DeclaringType) {
		w.xml.WriteAttributeString("display-api", literal.ValidXMLValue(w.namer.MemberName(m)))
		inline = true
	}
	if !w.IsDocumented(declaring.DeclaringAssembly()) {
		inline = true
	}
	if inline {
		w.WriteMember(m, false)
	}

	w.xml.WriteEndElement()
}
