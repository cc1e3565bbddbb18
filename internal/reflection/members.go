package reflection

import (
	"strconv"

	"git.home.luguber.info/inful/mrefbuilder/internal/literal"
	"git.home.luguber.info/inful/mrefbuilder/internal/logfields"
	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
	"git.home.luguber.info/inful/mrefbuilder/internal/nullable"
)

const (
	decimalConstantAttribute = "System.Runtime.CompilerServices.DecimalConstantAttribute"
	isExternalInit           = "System.Runtime.CompilerServices.IsExternalInit"
	defaultMemberAttribute   = "System.Reflection.DefaultMemberAttribute"
)

// WriteMember writes the description of a member: API data, member data, the
// kind-specific data, containers and attributes. Source contexts are only written for
// top-level entries, not for member descriptions inlined into an elements list.
func (w *Writer) WriteMember(m metadata.Member, includeSourceContext bool) {
	info := m.Info()
	declaring := info.DeclaringType

	var typeCtx metadata.SourceContext
	if includeSourceContext {
		typeCtx = w.typeContext(declaring)
	}

	w.writeAPIData(m)
	w.writeMemberData(m)

	switch v := m.(type) {
	case *metadata.Field:
		// Fields have no sequence points of their own.
		if includeSourceContext {
			w.writeSourceContext(typeCtx, typeCtx)
		}
		w.writeFieldData(v)
		w.writeReturnValue(v.Type, v.Attributes, nullable.Determine(declaring, v.Attributes))
		w.writeFieldValue(v)

	case *metadata.Method:
		if includeSourceContext {
			w.writeSourceContext(w.sources.Member(v.SourceContext), typeCtx)
		}
		if v.IsConstructor() {
			w.WriteParameters(v.Parameters)
			break
		}
		var overrides metadata.Member
		if v.Overridden != nil {
			overrides = v.Overridden
		}
		w.writeProcedureData(v, overrides)
		if len(v.TemplateArguments) > 0 {
			w.writeSpecializedTemplateArguments(v.TemplateArguments)
		} else {
			w.WriteGenericParameters(v.TemplateParameters)
		}
		w.WriteParameters(v.Parameters)
		w.writeReturnValue(v.ReturnType, v.ReturnAttributes, nullable.Determine(v, v.ReturnAttributes))
		implemented := make([]metadata.Member, len(v.ImplementedMethods))
		for i, im := range v.ImplementedMethods {
			implemented[i] = im
		}
		w.writeImplementedMembers(implemented)

	case *metadata.Property:
		if includeSourceContext {
			switch {
			case v.Getter != nil:
				w.writeSourceContext(w.sources.Member(v.Getter.SourceContext), typeCtx)
			case v.Setter != nil:
				w.writeSourceContext(w.sources.Member(v.Setter.SourceContext), typeCtx)
			}
		}
		w.writePropertyData(v)
		w.WriteParameters(v.Parameters)
		w.writeReturnValue(v.Type, v.Attributes, nullable.Determine(declaring, v.Attributes))
		var implemented []metadata.Member
		for _, ip := range v.ImplementedProperties() {
			implemented = append(implemented, ip)
		}
		w.writeImplementedMembers(implemented)

	case *metadata.Event:
		if includeSourceContext {
			w.writeSourceContext(typeCtx, typeCtx)
		}
		w.writeEventData(v)
		var implemented []metadata.Member
		for _, ie := range v.ImplementedEvents() {
			implemented = append(implemented, ie)
		}
		w.writeImplementedMembers(implemented)
	}

	w.writeMemberContainers(declaring)
	w.WriteAttributes(info.Attributes)
}

func (w *Writer) writeMemberData(m metadata.Member) {
	info := m.Info()
	w.xml.WriteStartElement("memberdata")
	w.WriteStringAttribute("visibility", w.filter.Visibility(m))
	w.writeFlag("static", info.Static, false)
	w.writeFlag("special", info.SpecialName, false)
	// Overloads are a document model concept and are not marked here.
	w.writeFlag("default", isDefaultMember(m), false)
	w.startCallbacksFor("memberdata", m)
	w.endCallbacksFor("memberdata", m)
	w.xml.WriteEndElement()
}

// isDefaultMember reports whether the declaring type names m as its default member.
func isDefaultMember(m metadata.Member) bool {
	t := m.Info().DeclaringType
	if t == nil {
		return false
	}
	a := metadata.FindAttribute(t.TemplateType().Attributes, defaultMemberAttribute)
	if a == nil {
		return false
	}
	args := a.Positional()
	if len(args) == 0 {
		return false
	}
	name, ok := args[0].Value.(string)
	return ok && name == m.Info().Name
}

// isDecimalConstant reports whether a read-only decimal field carries its constant
// value in a decimal constant attribute.
func isDecimalConstant(f *metadata.Field) bool {
	return !f.Literal && f.InitOnly && f.Type != nil && f.Type.FullName() == metadata.SystemDecimal &&
		metadata.FindAttribute(f.Attributes, decimalConstantAttribute) != nil
}

func (w *Writer) writeFieldData(f *metadata.Field) {
	w.xml.WriteStartElement("fielddata")
	if isDecimalConstant(f) {
		w.WriteBooleanAttribute("literal", true)
		w.WriteBooleanAttribute("initonly", false)
	} else {
		w.WriteBooleanAttribute("literal", f.Literal)
		w.WriteBooleanAttribute("initonly", f.InitOnly)
	}
	w.writeFlag("volatile", f.Volatile, false)
	w.WriteBooleanAttribute("serialized", !f.NotSerialized)

	// Field offsets are folded into metadata like the type layout.
	if w.filter.IncludeAttributes() && (f.Offset != 0 ||
		(f.DeclaringType != nil && f.DeclaringType.Layout == metadata.LayoutExplicit)) {
		w.xml.WriteAttributeString("offset", strconv.Itoa(f.Offset))
	}
	w.xml.WriteEndElement()
}

// writeFieldValue writes enumeration values and constants. A malformed decimal
// constant writes nothing.
func (w *Writer) writeFieldValue(f *metadata.Field) {
	declaring := f.DeclaringType
	switch {
	case declaring != nil && declaring.Kind == metadata.KindEnum:
		var value any
		if f.DefaultValue != nil {
			value = f.DefaultValue.Value
		}
		lt := declaring.UnderlyingType
		if lt == nil {
			lt = f.Type
		}
		w.writeLiteral(&metadata.Literal{Type: lt, Value: value}, false)
	case f.Literal:
		var value any
		if f.DefaultValue != nil {
			value = f.DefaultValue.Value
		}
		w.writeLiteral(&metadata.Literal{Type: f.Type, Value: value}, false)
	case f.Type != nil && f.Type.FullName() == metadata.SystemDecimal:
		a := metadata.FindAttribute(f.Attributes, decimalConstantAttribute)
		if a == nil {
			return
		}
		d, err := literal.DecimalFromConstant(a.Positional())
		if err != nil {
			w.logger.Debug("Ignoring malformed decimal constant", logfields.Name(f.Name), logfields.Error(err))
			return
		}
		w.writeLiteral(&metadata.Literal{Type: f.Type, Value: d}, false)
	}
}

func (w *Writer) writeSpecializedTemplateArguments(args []*metadata.TypeNode) {
	if len(args) == 0 {
		return
	}
	w.xml.WriteStartElement("templates")
	for _, a := range args {
		w.WriteTypeReference(a)
	}
	w.xml.WriteEndElement()
}

func (w *Writer) writeImplementedMembers(members []metadata.Member) {
	var exposed []metadata.Member
	for _, m := range members {
		if w.filter.IsExposedMember(m) {
			exposed = append(exposed, m)
		}
	}
	if len(exposed) == 0 {
		return
	}
	w.xml.WriteStartElement("implements")
	for _, m := range exposed {
		w.WriteMemberReference(m)
	}
	w.xml.WriteEndElement()
}

func (w *Writer) writeProcedureData(m *metadata.Method, overrides metadata.Member) {
	w.xml.WriteStartElement("proceduredata")
	w.writeFlag("abstract", m.Abstract, false)
	w.WriteBooleanAttribute("virtual", m.Virtual)
	w.writeFlag("final", m.Final, false)
	w.writeFlag("varargs", m.VarArgs, false)

	if m.IsPrivate() && len(m.ImplementedMethods) > 0 {
		w.WriteBooleanAttribute("eii", true)
	}

	// P/Invoke data is folded into metadata by the compiler. Syntax generators should
	// ignore preservesig when P/Invoke information is present.
	if w.filter.IncludeAttributes() {
		if m.PreserveSig {
			w.WriteBooleanAttribute("preservesig", true)
		}
		if m.PInvoke != nil {
			w.writePInvoke(m)
		}
	}
	w.xml.WriteEndElement()

	if overrides != nil {
		w.xml.WriteStartElement("overrides")
		w.WriteMemberReference(overrides)
		w.xml.WriteEndElement()
	}
}

func (w *Writer) writePInvoke(m *metadata.Method) {
	p := m.PInvoke
	w.WriteStringAttribute("module", p.Module)
	if p.EntryPoint != "" && p.EntryPoint != m.Name {
		w.WriteStringAttribute("entrypoint", p.EntryPoint)
	}
	switch p.CallingConvention {
	case metadata.CallConvCdecl:
		w.xml.WriteAttributeString("callingconvention", "cdecl")
	case metadata.CallConvFastcall:
		w.xml.WriteAttributeString("callingconvention", "fastcall")
	case metadata.CallConvStdcall:
		w.xml.WriteAttributeString("callingconvention", "stdcall")
	case metadata.CallConvThiscall:
		w.xml.WriteAttributeString("callingconvention", "thiscall")
	}
	switch p.CharSet {
	case metadata.CharSetAnsi:
		w.xml.WriteAttributeString("charset", "ansi")
	case metadata.CharSetUnicode:
		w.xml.WriteAttributeString("charset", "unicode")
	case metadata.CharSetAuto:
		w.xml.WriteAttributeString("charset", "auto")
	}
	if p.BestFitDisabled {
		w.WriteBooleanAttribute("bestfitmapping", false)
	}
	if p.ExactSpelling {
		w.WriteBooleanAttribute("exactspelling", true)
	}
	if p.ThrowOnUnmappableChar {
		w.WriteBooleanAttribute("throwonunmappablechar", true)
	}
	if p.SetLastError {
		w.WriteBooleanAttribute("setlasterror", true)
	}
}

// isInitOnlySetter reports whether a setter's return type carries the init-only
// modifier.
func isInitOnlySetter(setter *metadata.Method) bool {
	for t := setter.ReturnType; t != nil; t = t.ElementType {
		if t.Kind != metadata.KindRequiredModifier && t.Kind != metadata.KindOptionalModifier {
			return false
		}
		if t.Modifier != nil && t.Modifier.FullName() == isExternalInit {
			return true
		}
	}
	return false
}

func (w *Writer) writePropertyData(p *metadata.Property) {
	visibility := w.filter.Visibility(p)
	getter, setter := p.Getter, p.Setter

	procedure := getter
	if procedure == nil {
		procedure = setter
	}
	if procedure != nil {
		var overrides metadata.Member
		if p.Overridden != nil {
			overrides = p.Overridden
		}
		w.writeProcedureData(procedure, overrides)
	}

	w.xml.WriteStartElement("propertydata")
	if getter != nil {
		if w.filter.IsVisible(getter) {
			w.WriteBooleanAttribute("get", true)
			if v := w.filter.Visibility(getter); v != visibility {
				w.WriteStringAttribute("get-visibility", v)
			}
		} else {
			getter = nil
		}
	}
	if setter != nil {
		if w.filter.IsVisible(setter) {
			w.WriteBooleanAttribute("set", true)
			if isInitOnlySetter(setter) {
				w.WriteBooleanAttribute("initOnly", true)
			}
			if v := w.filter.Visibility(setter); v != visibility {
				w.WriteStringAttribute("set-visibility", v)
			}
		} else {
			setter = nil
		}
	}
	w.xml.WriteEndElement()

	if getter != nil {
		w.writeAccessor("getter", "get_"+p.Name, getter)
	}
	if setter != nil {
		w.writeAccessor("setter", "set_"+p.Name, setter)
	}
}

func (w *Writer) writeAccessor(element, name string, m *metadata.Method) {
	w.xml.WriteStartElement(element)
	w.WriteStringAttribute("name", name)
	w.WriteAttributes(m.Attributes)
	w.xml.WriteEndElement()
}

func (w *Writer) writeEventData(e *metadata.Event) {
	if e.Adder != nil {
		var overrides metadata.Member
		if e.Overridden != nil {
			overrides = e.Overridden
		}
		w.writeProcedureData(e.Adder, overrides)
	}

	w.xml.WriteStartElement("eventdata")
	if e.Adder != nil {
		w.WriteBooleanAttribute("add", true)
	}
	if e.Remover != nil {
		w.WriteBooleanAttribute("remove", true)
	}
	if e.Caller != nil {
		w.WriteBooleanAttribute("call", true)
	}
	w.xml.WriteEndElement()

	if e.Adder != nil {
		w.writeAccessor("adder", "add_"+e.Name, e.Adder)
	}
	if e.Remover != nil {
		w.writeAccessor("remover", "remove_"+e.Name, e.Remover)
	}

	if e.HandlerType == nil {
		return
	}
	w.xml.WriteStartElement("eventhandler")
	w.WriteTypeReference(e.HandlerType)
	w.xml.WriteEndElement()

	// Handlers are normally delegates, but not always.
	handler := e.HandlerType.TemplateType()
	if handler.Kind != metadata.KindDelegate {
		return
	}
	params := e.HandlerType.Parameters
	if e.HandlerType.Template != nil {
		s := metadata.SubstitutionFor(e.HandlerType)
		params = nil
		for _, p := range handler.Parameters {
			cp := *p
			cp.Type = s.Apply(p.Type)
			params = append(params, &cp)
		}
	}
	if len(params) == 2 && params[0].Type != nil && params[0].Type.FullName() == metadata.SystemObject {
		w.xml.WriteStartElement("eventargs")
		w.WriteTypeReference(params[1].Type)
		w.xml.WriteEndElement()
	}
}

func (w *Writer) writeMemberContainers(t *metadata.TypeNode) {
	w.xml.WriteStartElement("containers")
	if t != nil {
		w.writeLibraryReference(t.DeclaringModule())
		w.writeNamespaceReference(t.NamespaceName())
		w.WriteTypeReference(t)
	}
	w.xml.WriteEndElement()
}

// WriteContainers writes the library, namespace and type containing a member.
func (w *Writer) WriteContainers(m metadata.Member) {
	w.writeMemberContainers(m.Info().DeclaringType)
}

// WriteProcedureData writes the procedure data of a method that overrides nothing.
func (w *Writer) WriteProcedureData(m *metadata.Method) {
	w.writeProcedureData(m, nil)
}
