package reflection

import (
	"encoding/hex"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/mrefbuilder/internal/apifilter"
	"git.home.luguber.info/inful/mrefbuilder/internal/literal"
	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
	"git.home.luguber.info/inful/mrefbuilder/internal/nullable"
	"git.home.luguber.info/inful/mrefbuilder/internal/sourcecontext"
	"git.home.luguber.info/inful/mrefbuilder/internal/util/sets"
)

func (w *Writer) writeAssembly(a *metadata.Assembly) {
	w.xml.WriteStartElement("assembly")
	w.WriteStringAttribute("name", a.Name)

	w.xml.WriteStartElement("assemblydata")
	w.WriteStringAttribute("version", a.Version)
	w.WriteStringAttribute("culture", a.Culture)
	w.xml.WriteAttributeString("key", strings.ToUpper(hex.EncodeToString(a.PublicKey)))
	w.WriteStringAttribute("hash", a.HashAlgorithm)
	w.xml.WriteEndElement()

	w.WriteAttributes(a.Attributes)
	w.xml.WriteEndElement()
}

func (w *Writer) writeNamespaceData(ns *metadata.Namespace) {
	w.xml.WriteStartElement("apidata")
	w.WriteStringAttribute("name", ns.Name)
	w.WriteStringAttribute("group", "namespace")
	w.startCallbacksFor("apidata", ns)
	w.endCallbacksFor("apidata", ns)
	w.xml.WriteEndElement()
}

// writeNamespaceElements lists the namespace's types. Types defined by more than one
// assembly are listed once; the merger reconciles their entries later.
func (w *Writer) writeNamespaceElements(ns *metadata.Namespace) {
	if len(ns.Types) == 0 {
		return
	}
	w.xml.WriteStartElement("elements")
	seen := sets.New[string]()
	for _, t := range ns.Types {
		if !w.filter.IsExposedType(t) && !w.filter.HasExposedMembers(t) {
			continue
		}
		if seen.Has(t.FullName()) {
			continue
		}
		seen.Add(t.FullName())
		w.xml.WriteStartElement("element")
		w.xml.WriteAttributeString("api", literal.ValidXMLValue(w.namer.TypeName(t)))
		w.xml.WriteEndElement()
	}
	w.xml.WriteEndElement()
}

func (w *Writer) writeNamespaceReference(name string) {
	w.xml.WriteStartElement("namespace")
	w.xml.WriteAttributeString("api", literal.ValidXMLValue(w.namer.NamespaceName(name)))
	w.xml.WriteEndElement()
}

// typeContext returns the source context of a type, or the zero context when source
// output is disabled.
func (w *Writer) typeContext(t *metadata.TypeNode) metadata.SourceContext {
	if !w.sources.Enabled() || !w.filter.IsExposedType(t) {
		return metadata.SourceContext{}
	}
	return w.sources.Type(t, w.filter.IsExposedMember)
}

func (w *Writer) writeType(t *metadata.TypeNode) {
	w.xml.WriteStartElement("api")
	w.xml.WriteAttributeString("id", literal.ValidXMLValue(w.namer.TypeName(t)))
	w.startCallbacksFor("api", t)

	w.writeAPIData(t)
	ctx := w.typeContext(t)
	w.writeSourceContext(ctx, ctx)
	w.writeTypeData(t)

	switch t.Kind {
	case metadata.KindClass, metadata.KindStruct:
		w.WriteGenericParameters(t.TemplateParameters)
		w.writeInterfaces(t.Interfaces())
		w.writeTypeElements(t)
	case metadata.KindInterface:
		w.WriteGenericParameters(t.TemplateParameters)
		w.writeInterfaces(t.Interfaces())
		w.writeImplementors(t)
		w.writeTypeElements(t)
	case metadata.KindDelegate:
		var retAttrs []*metadata.Attribute
		for _, m := range t.MembersNamed("EndInvoke") {
			if end, ok := m.(*metadata.Method); ok {
				retAttrs = end.ReturnAttributes
				break
			}
		}
		w.WriteGenericParameters(t.TemplateParameters)
		w.WriteParameters(t.Parameters)
		w.writeReturnValue(t.ReturnType, retAttrs, nullable.Determine(t, retAttrs))
	case metadata.KindEnum:
		w.writeEnumerationData(t)
		w.writeTypeElements(t)
	}

	w.writeTypeContainers(t)
	w.WriteAttributes(t.Attributes)

	w.endCallbacksFor("api", t)
	w.xml.WriteEndElement()
}

func (w *Writer) writeTypeData(t *metadata.TypeNode) {
	w.xml.WriteStartElement("typedata")

	w.WriteStringAttribute("visibility", w.filter.Visibility(t))
	w.writeFlag("abstract", t.Abstract, false)
	w.writeFlag("sealed", t.Sealed, false)
	w.WriteBooleanAttribute("serializable", t.Serializable)

	// Interop attributes are folded into type metadata by the compiler, so they are
	// written as type data rather than as attributes.
	if w.filter.IncludeAttributes() {
		if t.ComImport {
			w.WriteBooleanAttribute("comimport", true)
		}
		// Structures get a sequential layout (and size 1 when empty) from the compiler.
		if (t.Layout != metadata.LayoutAuto || t.ClassSize != 0 || t.PackingSize != 0) &&
			(t.Kind != metadata.KindStruct || t.ClassSize > 1) {
			w.writeLayout(t)
		}
	}

	hasContentProperty := false
	if t.Kind == metadata.KindClass || t.Kind == metadata.KindStruct {
		if ctor := defaultConstructor(t); ctor != nil && w.filter.IsExposedMember(ctor) {
			w.WriteStringAttribute("defaultConstructor", w.namer.MemberName(ctor))
		}
		if prop := contentProperty(t); prop != "" {
			w.WriteStringAttribute("contentProperty", prop)
			hasContentProperty = true
		}
		if t.Kind == metadata.KindStruct && !hasPublicSetter(t) {
			w.xml.WriteAttributeString("noSettableProperties", "true")
		}
	}

	w.startCallbacksFor("typedata", t)
	w.endCallbacksFor("typedata", t)
	w.xml.WriteEndElement()

	if t.Kind == metadata.KindClass || t.Kind == metadata.KindStruct {
		w.writeHierarchy(t, hasContentProperty)
	}
}

func (w *Writer) writeLayout(t *metadata.TypeNode) {
	switch t.Layout {
	case metadata.LayoutAuto:
		w.xml.WriteAttributeString("layout", "auto")
	case metadata.LayoutSequential:
		w.xml.WriteAttributeString("layout", "sequential")
	case metadata.LayoutExplicit:
		w.xml.WriteAttributeString("layout", "explicit")
	}
	if t.ClassSize != 0 {
		w.xml.WriteAttributeString("size", strconv.Itoa(t.ClassSize))
	}
	if t.PackingSize != 0 {
		w.xml.WriteAttributeString("pack", strconv.Itoa(t.PackingSize))
	}
	// Character set has always been written as "format"; ANSI is the metadata default.
	switch t.CharSet {
	case metadata.CharSetUnicode:
		w.xml.WriteAttributeString("format", "unicode")
	case metadata.CharSetAuto:
		w.xml.WriteAttributeString("format", "auto")
	default:
		w.xml.WriteAttributeString("format", "ansi")
	}
}

func defaultConstructor(t *metadata.TypeNode) *metadata.Method {
	for _, m := range t.Members() {
		if ctor, ok := m.(*metadata.Method); ok && ctor.Kind == metadata.MethodConstructor &&
			ctor.IsPublic() && len(ctor.Parameters) == 0 {
			return ctor
		}
	}
	return nil
}

// contentProperty returns the XAML content property identifier declared on t.
func contentProperty(t *metadata.TypeNode) string {
	for _, a := range t.TemplateType().Attributes {
		if a == nil || a.Type == nil || a.Type.Name != "ContentPropertyAttribute" || len(a.Expressions) != 1 {
			continue
		}
		if lit, ok := a.Expressions[0].(*metadata.Literal); ok && lit.Value != nil {
			return "P:" + t.FullName() + "." + literal.FormatValue(lit.Value)
		}
	}
	return ""
}

func hasPublicSetter(t *metadata.TypeNode) bool {
	for _, m := range t.Members() {
		if p, ok := m.(*metadata.Property); ok && p.IsPublic() && p.Setter != nil && p.Setter.IsPublic() {
			return true
		}
	}
	return false
}

// writeHierarchy writes the ancestors and direct descendants of a class or structure.
// The "descendents" spelling is part of the schema.
func (w *Writer) writeHierarchy(t *metadata.TypeNode, hasContentProperty bool) {
	w.xml.WriteStartElement("family")

	w.xml.WriteStartElement("ancestors")
	for _, ancestor := range t.Ancestors() {
		w.writeTypeReference(ancestor, typeRefOptions{addContentProperty: !hasContentProperty})
	}
	w.xml.WriteEndElement()

	if descendants := w.index.Descendants(t); len(descendants) > 0 {
		w.xml.WriteStartElement("descendents")
		for _, d := range descendants {
			w.WriteTypeReference(d)
		}
		w.xml.WriteEndElement()
	}

	w.xml.WriteEndElement()
}

func (w *Writer) writeImplementors(t *metadata.TypeNode) {
	implementors := w.index.Implementors(t)
	if len(implementors) == 0 {
		return
	}
	w.xml.WriteStartElement("implementors")
	w.startCallbacksFor("implementors", implementors)
	for _, impl := range implementors {
		w.WriteTypeReference(impl)
	}
	w.endCallbacksFor("implementors", implementors)
	w.xml.WriteEndElement()
}

func (w *Writer) writeEnumerationData(t *metadata.TypeNode) {
	u := t.UnderlyingType
	if u == nil || u.FullName() == metadata.SystemInt32 {
		return
	}
	w.xml.WriteStartElement("enumerationbase")
	w.WriteTypeReference(u)
	w.xml.WriteEndElement()
}

func (w *Writer) writeTypeContainers(t *metadata.TypeNode) {
	w.xml.WriteStartElement("containers")
	w.writeLibraryReference(t.DeclaringModule())
	w.writeNamespaceReference(t.NamespaceName())
	if t.DeclaringType != nil {
		w.WriteTypeReference(t.DeclaringType)
	}
	w.xml.WriteEndElement()
}

func (w *Writer) writeLibraryReference(m *metadata.Module) {
	if m == nil || m.Assembly == nil {
		return
	}
	w.xml.WriteStartElement("library")
	w.WriteStringAttribute("assembly", m.Assembly.Name)
	w.WriteStringAttribute("module", m.Name)
	w.WriteStringAttribute("kind", m.Kind.String())
	w.xml.WriteEndElement()
}

// writeAPIData writes the name and grouping of a namespace member.
func (w *Writer) writeAPIData(m metadata.Member) {
	w.xml.WriteStartElement("apidata")

	name := m.Info().Name
	var group, subgroup, subsubgroup string
	if t, ok := m.(*metadata.TypeNode); ok {
		group = "type"
		name = metadata.UnmangledName(t.Name)
		switch t.Kind {
		case metadata.KindClass, metadata.KindStruct, metadata.KindInterface,
			metadata.KindEnum, metadata.KindDelegate:
			subgroup = t.Kind.String()
		}
	} else {
		group = "member"
		switch v := m.(type) {
		case *metadata.Field:
			subgroup = "field"
		case *metadata.Property:
			subgroup = "property"
		case *metadata.Event:
			subgroup = "event"
		case *metadata.Method:
			if v.IsConstructor() {
				subgroup = "constructor"
			} else {
				subgroup = "method"
				if v.SpecialName && strings.HasPrefix(name, "op_") {
					subsubgroup = "operator"
					name = name[3:]
				}
			}
		}
		// Explicit implementations are named after the interface member only.
		if i := strings.LastIndexByte(name, '.'); i > 0 {
			name = name[i+1:]
		}
	}

	w.WriteStringAttribute("name", name)
	w.WriteStringAttribute("group", group)
	if subgroup != "" {
		w.WriteStringAttribute("subgroup", subgroup)
	}
	if subsubgroup != "" {
		w.WriteStringAttribute("subsubgroup", subsubgroup)
	}

	w.startCallbacksFor("apidata", m)
	w.endCallbacksFor("apidata", m)
	w.xml.WriteEndElement()
}

// writeSourceContext writes a file and line location. A member without its own
// context falls back to its type's.
func (w *Writer) writeSourceContext(ctx, parent metadata.SourceContext) {
	if ctx.IsZero() {
		ctx = parent
	}
	if strings.TrimSpace(ctx.File) == "" {
		return
	}
	w.xml.WriteStartElement("sourceContext")
	w.WriteStringAttribute("file", sourcecontext.EncodePath(ctx.File))
	if ctx.StartLine > 0 {
		w.xml.WriteAttributeString("startLine", strconv.Itoa(ctx.StartLine))
	}
	w.xml.WriteEndElement()
}

// exposedInterfaces keeps the documented interfaces of a list.
func exposedInterfaces(f apifilter.Filter, list []*metadata.TypeNode) []*metadata.TypeNode {
	var out []*metadata.TypeNode
	for _, i := range list {
		if f.IsDocumentedInterface(i) {
			out = append(out, i)
		}
	}
	return out
}

func (w *Writer) writeInterfaces(list []*metadata.TypeNode) {
	exposed := exposedInterfaces(w.filter, list)
	if len(exposed) == 0 {
		return
	}
	w.xml.WriteStartElement("implements")
	w.startCallbacksFor("implements", exposed)
	for _, i := range exposed {
		w.WriteTypeReference(i)
	}
	w.endCallbacksFor("implements", exposed)
	w.xml.WriteEndElement()
}
