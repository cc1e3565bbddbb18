package reflection

import (
	"strconv"
	"strings"

	"git.home.luguber.info/inful/mrefbuilder/internal/literal"
	"git.home.luguber.info/inful/mrefbuilder/internal/logfields"
	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
	"git.home.luguber.info/inful/mrefbuilder/internal/nullable"
)

const (
	obsoleteAttribute    = "System.ObsoleteAttribute"
	paramArrayAttribute  = "System.ParamArrayAttribute"
	tupleNamesAttribute  = "TupleElementNamesAttribute"
	compilerNotSupported = "are not supported in this version of your compiler"
)

// tupleNames hands out captured tuple element names to the arguments of one tuple
// instantiation.
type tupleNames struct {
	target *metadata.TypeNode
	names  []string
	pos    int
}

func (n *tupleNames) next(t *metadata.TypeNode) string {
	if n == nil || t != n.target || n.pos >= len(n.names) {
		return ""
	}
	name := n.names[n.pos]
	n.pos++
	return name
}

type typeRefOptions struct {
	elementName        string
	cursor             *nullable.Cursor
	last               metadata.NullableState
	tuple              *tupleNames
	addContentProperty bool
}

// WriteTypeReference writes a reference to a type without nullable annotations.
func (w *Writer) WriteTypeReference(t *metadata.TypeNode) {
	w.writeTypeReference(t, typeRefOptions{last: metadata.NullableNotSpecified})
}

// writeAnnotatedTypeReference writes the type of a declaration, applying its nullable
// annotations in order and the tuple element names found in attrs.
func (w *Writer) writeAnnotatedTypeReference(t *metadata.TypeNode, attrs []*metadata.Attribute, states []metadata.NullableState) {
	w.writeTypeReference(t, typeRefOptions{
		cursor: nullable.NewCursor(states),
		last:   metadata.NullableNotSpecified,
		tuple:  findTupleNames(t, attrs),
	})
}

func (w *Writer) writeTypeReference(t *metadata.TypeNode, opts typeRefOptions) {
	w.writeStartTypeReference(t, opts)
	w.xml.WriteEndElement()
}

func findTupleNames(t *metadata.TypeNode, attrs []*metadata.Attribute) *tupleNames {
	var names []string
	for _, a := range attrs {
		if a == nil || a.Type == nil || a.Type.Name != tupleNamesAttribute || len(a.Expressions) == 0 {
			continue
		}
		lit, ok := a.Expressions[0].(*metadata.Literal)
		if !ok {
			continue
		}
		switch v := lit.Value.(type) {
		case []string:
			names = v
		case []any:
			names = make([]string, len(v))
			for i, e := range v {
				names[i], _ = e.(string)
			}
		}
		break
	}
	if names == nil {
		return nil
	}
	if target := findValueTuple(t); target != nil {
		return &tupleNames{target: target, names: names}
	}
	return nil
}

// findValueTuple returns the first tuple instantiation in t, searching generic
// arguments depth first.
func findValueTuple(t *metadata.TypeNode) *metadata.TypeNode {
	if t == nil {
		return nil
	}
	if strings.HasPrefix(t.TemplateType().FullName(), "System.ValueTuple`") {
		if t.Template != nil {
			return t
		}
		return nil
	}
	for _, a := range t.TemplateArguments {
		if found := findValueTuple(a); found != nil {
			return found
		}
	}
	return nil
}

func (w *Writer) writeNullable(state metadata.NullableState) {
	if state == metadata.NullableNullable {
		w.xml.WriteAttributeString("nullable", "true")
	}
}

// writeStartTypeReference opens the reference element for t and writes its content.
// Value types take no annotation; every other part takes the next one from the cursor.
func (w *Writer) writeStartTypeReference(t *metadata.TypeNode, opts typeRefOptions) {
	state := metadata.NullableValueType
	if !t.IsValueType() {
		state = opts.cursor.Next(opts.last)
	}
	inner := typeRefOptions{cursor: opts.cursor, last: state, tuple: opts.tuple}

	switch t.Kind {
	case metadata.KindArray:
		w.xml.WriteStartElement("arrayOf")
		w.writeNullable(state)
		w.xml.WriteAttributeString("rank", strconv.Itoa(t.Rank))
		w.writeTypeReference(t.ElementType, inner)

	case metadata.KindReference:
		w.xml.WriteStartElement("referenceTo")
		w.writeNullable(state)
		w.writeTypeReference(t.ElementType, inner)

	case metadata.KindPointer:
		w.xml.WriteStartElement("pointerTo")
		w.writeNullable(state)
		w.writeTypeReference(t.ElementType, inner)

	case metadata.KindOptionalModifier, metadata.KindRequiredModifier:
		element := "optionalModifier"
		if t.Kind == metadata.KindRequiredModifier {
			element = "requiredModifier"
		}
		// The modified type is written without annotations; its element stays open
		// around the modifier.
		w.writeStartTypeReference(t.ElementType, typeRefOptions{last: metadata.NullableNotSpecified})
		w.xml.WriteStartElement(element)
		w.writeNullable(state)
		w.writeTypeReference(t.Modifier, inner)
		w.xml.WriteEndElement()

	case metadata.KindTemplateParameter:
		w.xml.WriteStartElement("template")
		w.xml.WriteAttributeString("name", literal.ValidXMLValue(t.Name))
		w.xml.WriteAttributeString("index", strconv.Itoa(t.Position))
		if t.DeclaringMember != nil {
			w.xml.WriteAttributeString("api", literal.ValidXMLValue(w.namer.APIName(t.DeclaringMember)))
		}

	default:
		w.xml.WriteStartElement("type")
		w.writeNullable(state)
		if strings.TrimSpace(opts.elementName) != "" {
			w.xml.WriteAttributeString("elementName", opts.elementName)
		}
		template := t.TemplateType()
		w.xml.WriteAttributeString("api", literal.ValidXMLValue(w.namer.TypeName(template)))
		w.WriteBooleanAttribute("ref", !template.IsValueType())
		if opts.addContentProperty {
			if prop := contentProperty(t); prop != "" {
				w.WriteStringAttribute("contentProperty", prop)
			}
		}

		if t.Template != nil && len(t.TemplateArguments) > 0 {
			w.xml.WriteStartElement("specialization")
			for _, arg := range t.TemplateArguments {
				argOpts := inner
				argOpts.elementName = opts.tuple.next(t)
				w.writeTypeReference(arg, argOpts)
			}
			w.xml.WriteEndElement()
		}

		// Outer types may be specialized, so they are recorded too.
		if t.DeclaringType != nil {
			w.WriteTypeReference(t.DeclaringType)
		}
	}
}

// WriteMemberReference writes a reference to a member by its template identity. A
// member of a specialized type also gets its display identity.
func (w *Writer) WriteMemberReference(m metadata.Member) {
	template := metadata.TemplateMember(m)
	w.xml.WriteStartElement("member")
	w.xml.WriteAttributeString("api", literal.ValidXMLValue(w.namer.MemberName(template)))
	declaring := m.Info().DeclaringType
	if !declaring.IsStructurallyEquivalentTo(template.Info().DeclaringType) {
		w.xml.WriteAttributeString("display-api", literal.ValidXMLValue(w.namer.MemberName(m)))
	}
	w.WriteTypeReference(declaring)
	w.xml.WriteEndElement()
}

// exposedAttributes filters attrs through the API filter and drops the obsolete
// markers compilers add to types older compilers cannot consume. An obsolete message
// without that wording was written by the user and is kept.
func (w *Writer) exposedAttributes(attrs []*metadata.Attribute) []*metadata.Attribute {
	var exposed []*metadata.Attribute
	for _, a := range attrs {
		if a != nil && w.filter.IsExposedAttribute(a) {
			exposed = append(exposed, a)
		}
	}
	for i, a := range exposed {
		if a.FullName() != obsoleteAttribute || len(a.Expressions) == 0 {
			continue
		}
		if lit, ok := a.Expressions[0].(*metadata.Literal); ok {
			if msg, ok := lit.Value.(string); ok && strings.Contains(msg, compilerNotSupported) {
				exposed = append(exposed[:i], exposed[i+1:]...)
			}
		}
		break
	}
	return exposed
}

// WriteAttributes writes the exposed attributes of a declaration.
func (w *Writer) WriteAttributes(attrs []*metadata.Attribute) {
	exposed := w.exposedAttributes(attrs)
	if len(exposed) == 0 {
		return
	}
	w.xml.WriteStartElement("attributes")
	for _, a := range exposed {
		w.xml.WriteStartElement("attribute")
		w.WriteTypeReference(a.Type)
		for _, e := range a.Expressions {
			w.writeExpression(a.Type, e)
		}
		w.xml.WriteEndElement()
	}
	w.xml.WriteEndElement()
}

// writeExpression writes an attribute argument or a parameter default value. A null
// value for a non-nullable value type becomes that type's default value.
func (w *Writer) writeExpression(t *metadata.TypeNode, e metadata.Expression) {
	switch v := e.(type) {
	case *metadata.Literal:
		lit := v
		if lit.Value == nil && t != nil && t.IsValueType() && !t.IsNullableValueType() {
			lit = &metadata.Literal{Type: t}
		}
		w.xml.WriteStartElement("argument")
		w.writeLiteral(lit, true)
		w.xml.WriteEndElement()
	case *metadata.NamedArgument:
		w.xml.WriteStartElement("assignment")
		w.WriteStringAttribute("name", v.Name)
		if v.Value != nil {
			w.writeLiteral(v.Value, true)
		}
		w.xml.WriteEndElement()
	}
}

// writeLiteral writes a constant value: enumeration fields, a type, a value element,
// or a default/null marker.
func (w *Writer) writeLiteral(lit *metadata.Literal, showType bool) {
	t := lit.Type
	if showType && t != nil {
		w.WriteTypeReference(t)
	}

	if lit.Value == nil {
		if t != nil && t.IsValueType() {
			w.xml.WriteElementString("defaultValue", "")
		} else {
			w.xml.WriteElementString("nullValue", "")
		}
		return
	}

	if t != nil && t.TemplateType().Kind == metadata.KindEnum {
		if v, ok := metadata.AsInt64(lit.Value); ok {
			w.xml.WriteStartElement("enumValue")
			for _, f := range literal.AppliedFields(t.TemplateType(), v) {
				w.xml.WriteStartElement("field")
				w.xml.WriteAttributeString("name", literal.ValidXMLValue(f.Name))
				w.xml.WriteEndElement()
			}
			w.xml.WriteEndElement()
			return
		}
	}

	typeName := ""
	if t != nil {
		typeName = t.FullName()
	}
	if typeName == metadata.SystemType {
		if ref, ok := lit.Value.(*metadata.TypeNode); ok {
			w.xml.WriteStartElement("typeValue")
			w.WriteTypeReference(ref)
			w.xml.WriteEndElement()
			return
		}
	}
	w.xml.WriteElementString("value", literal.Text(typeName, lit.Value))
}

// writeReturnValue writes the returns element unless the type is void.
func (w *Writer) writeReturnValue(t *metadata.TypeNode, attrs []*metadata.Attribute, states []metadata.NullableState) {
	if t == nil || t.FullName() == metadata.SystemVoid {
		return
	}
	w.xml.WriteStartElement("returns")
	w.writeAnnotatedTypeReference(t, attrs, states)
	w.xml.WriteEndElement()
}

// WriteParameters writes a parameter list. Nothing is written for an empty list.
func (w *Writer) WriteParameters(params []*metadata.Parameter) {
	if len(params) == 0 {
		return
	}
	w.xml.WriteStartElement("parameters")
	for _, p := range params {
		w.writeParameter(p)
	}
	w.xml.WriteEndElement()
}

// nullableParent is the declaration whose context applies to a parameter.
func nullableParent(m metadata.Member) metadata.Member {
	switch v := m.(type) {
	case *metadata.Property:
		if v.Getter != nil {
			return v.Getter
		}
		if v.Setter != nil {
			return v.Setter
		}
		return v.DeclaringType
	case nil:
		return nil
	}
	return m
}

func (w *Writer) writeParameter(p *metadata.Parameter) {
	// Mixing incompatible reference assemblies can leave void-typed parameters.
	if p.Type != nil && p.Type.Name == "Void" {
		declaring := ""
		if p.DeclaringMember != nil {
			declaring = w.namer.APIName(p.DeclaringMember)
		}
		w.logger.Warn("Unexpected parameter type Void; this may be a missing reference assembly",
			logfields.Name(p.Name), logfields.APIID(declaring))
	}

	w.xml.WriteStartElement("parameter")
	w.xml.WriteAttributeString("name", literal.ValidXMLValue(p.Name))
	if p.In {
		w.WriteBooleanAttribute("in", true)
	}
	if p.Out {
		w.WriteBooleanAttribute("out", true)
	}
	if p.IsParamArray() {
		w.WriteBooleanAttribute("params", true)
	}
	if p.Optional {
		w.WriteBooleanAttribute("optional", true)
	}

	w.writeAnnotatedTypeReference(p.Type, p.Attributes, nullable.Determine(nullableParent(p.DeclaringMember), p.Attributes))

	if p.Optional && p.DefaultValue != nil {
		w.writeExpression(p.Type, p.DefaultValue)
	}

	var attrs []*metadata.Attribute
	for _, a := range p.Attributes {
		if a != nil && a.FullName() != paramArrayAttribute {
			attrs = append(attrs, a)
		}
	}
	w.WriteAttributes(attrs)

	w.xml.WriteEndElement()
}

// WriteGenericParameters writes the templates element of a generic declaration.
func (w *Writer) WriteGenericParameters(params []*metadata.TypeNode) {
	if len(params) == 0 {
		return
	}
	w.xml.WriteStartElement("templates")
	for _, p := range params {
		w.writeGenericParameter(p)
	}
	w.xml.WriteEndElement()
}

func (w *Writer) writeGenericParameter(p *metadata.TypeNode) {
	w.xml.WriteStartElement("template")
	w.xml.WriteAttributeString("name", literal.ValidXMLValue(p.Name))

	flags := p.Constraints
	reference := flags&metadata.ReferenceTypeConstraint != 0
	value := flags&metadata.ValueTypeConstraint != 0
	ctor := flags&metadata.DefaultConstructorConstraint != 0

	interfaces := p.Interfaces()
	parent := p.BaseType()
	if value && parent != nil && parent.FullName() == metadata.SystemValueType {
		parent = nil
	}

	if parent != nil || len(interfaces) > 0 || reference || value || ctor {
		w.xml.WriteStartElement("constrained")
		if reference {
			w.WriteBooleanAttribute("ref", true)
		}
		if value {
			w.WriteBooleanAttribute("value", true)
		}
		if ctor {
			w.WriteBooleanAttribute("ctor", true)
		}
		if parent != nil {
			w.WriteTypeReference(parent)
		}
		w.writeInterfaces(interfaces)
		w.xml.WriteEndElement()
	}

	covariant := flags&metadata.Covariant != 0
	contravariant := flags&metadata.Contravariant != 0
	if covariant || contravariant {
		w.xml.WriteStartElement("variance")
		if contravariant {
			w.WriteBooleanAttribute("contravariant", true)
		}
		if covariant {
			w.WriteBooleanAttribute("covariant", true)
		}
		w.xml.WriteEndElement()
	}

	w.xml.WriteEndElement()
}

// WriteReturns writes the return value of a method with its nullable annotations.
func (w *Writer) WriteReturns(m *metadata.Method) {
	w.writeReturnValue(m.ReturnType, m.ReturnAttributes, nullable.Determine(m, m.ReturnAttributes))
}
