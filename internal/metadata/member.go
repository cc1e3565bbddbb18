package metadata

// Member is anything that can be declared inside a type: fields, methods, properties,
// events and nested types.
type Member interface {
	Info() *MemberInfo
}

// SourceContext locates a declaration in a source file. StartLine is zero when unknown.
type SourceContext struct {
	File      string
	StartLine int
}

// IsZero reports whether no source file is known.
func (s SourceContext) IsZero() bool { return s.File == "" }

// MemberInfo carries the data common to every member.
type MemberInfo struct {
	Name          string
	DeclaringType *TypeNode
	Visibility    Visibility
	Static        bool
	SpecialName   bool
	Attributes    []*Attribute
	SourceContext SourceContext
	// Unspecialized is set on members synthesized for a generic instantiation and
	// points at the member they were specialized from.
	Unspecialized Member
}

// Info returns the common member data.
func (m *MemberInfo) Info() *MemberInfo { return m }

func (m *MemberInfo) IsPublic() bool  { return m.Visibility == Public }
func (m *MemberInfo) IsPrivate() bool { return m.Visibility == Private }

// TemplateMember returns the unspecialized form of a member. Types resolve to their
// generic type definition.
func TemplateMember(m Member) Member {
	if t, ok := m.(*TypeNode); ok {
		return t.TemplateType()
	}
	for m.Info().Unspecialized != nil {
		m = m.Info().Unspecialized
	}
	return m
}

// Field is a data member.
type Field struct {
	MemberInfo
	Type          *TypeNode
	Literal       bool
	InitOnly      bool
	Volatile      bool
	NotSerialized bool
	Offset        int
	DefaultValue  *Literal
}

// PInvokeInfo describes a method imported from an unmanaged library.
type PInvokeInfo struct {
	Module                string
	EntryPoint            string
	CallingConvention     CallingConvention
	CharSet               CharSet
	BestFitDisabled       bool
	ExactSpelling         bool
	ThrowOnUnmappableChar bool
	SetLastError          bool
}

// Method is a method, constructor or accessor.
type Method struct {
	MemberInfo
	Kind               MethodKind
	Parameters         []*Parameter
	ReturnType         *TypeNode
	ReturnAttributes   []*Attribute
	TemplateParameters []*TypeNode
	TemplateArguments  []*TypeNode
	Abstract           bool
	Virtual            bool
	Final              bool
	VarArgs            bool
	PreserveSig        bool
	Overridden         *Method
	ImplementedMethods []*Method
	PInvoke            *PInvokeInfo
	// AccessorFor is the property or event this method implements, if any.
	AccessorFor Member
}

// IsConstructor reports whether the method is an instance or static constructor.
func (m *Method) IsConstructor() bool { return m.Kind != MethodNormal }

// IsGeneric reports whether the method declares or binds generic parameters.
func (m *Method) IsGeneric() bool {
	return len(m.TemplateParameters) > 0 || len(m.TemplateArguments) > 0
}

// Parameter is a method, indexer or delegate parameter.
type Parameter struct {
	Name         string
	Type         *TypeNode
	In           bool
	Out          bool
	Optional     bool
	DefaultValue *Literal
	Attributes   []*Attribute
	// DeclaringMember is the method, property or delegate owning the parameter.
	DeclaringMember Member
}

// IsParamArray reports whether the parameter carries System.ParamArrayAttribute.
func (p *Parameter) IsParamArray() bool {
	return FindAttribute(p.Attributes, "System.ParamArrayAttribute") != nil
}

// Property is a property or indexer.
type Property struct {
	MemberInfo
	Type       *TypeNode
	Parameters []*Parameter
	Getter     *Method
	Setter     *Method
	Overridden *Property
}

// ImplementedProperties returns the interface properties whose accessors this
// property's accessors implement.
func (p *Property) ImplementedProperties() []*Property {
	var out []*Property
	seen := make(map[*Property]bool)
	for _, acc := range []*Method{p.Getter, p.Setter} {
		if acc == nil {
			continue
		}
		for _, im := range acc.ImplementedMethods {
			if ip, ok := im.AccessorFor.(*Property); ok && !seen[ip] {
				seen[ip] = true
				out = append(out, ip)
			}
		}
	}
	return out
}

// Event is an event declaration.
type Event struct {
	MemberInfo
	HandlerType *TypeNode
	Adder       *Method
	Remover     *Method
	Caller      *Method
	Overridden  *Event
}

// ImplementedEvents returns the interface events whose accessors this event's
// accessors implement.
func (e *Event) ImplementedEvents() []*Event {
	var out []*Event
	seen := make(map[*Event]bool)
	for _, acc := range []*Method{e.Adder, e.Remover} {
		if acc == nil {
			continue
		}
		for _, im := range acc.ImplementedMethods {
			if ie, ok := im.AccessorFor.(*Event); ok && !seen[ie] {
				seen[ie] = true
				out = append(out, ie)
			}
		}
	}
	return out
}

// Accessors returns the non-nil accessor methods of a property or event.
func Accessors(m Member) []*Method {
	var list []*Method
	switch v := m.(type) {
	case *Property:
		list = []*Method{v.Getter, v.Setter}
	case *Event:
		list = []*Method{v.Adder, v.Remover, v.Caller}
	}
	out := list[:0]
	for _, acc := range list {
		if acc != nil {
			out = append(out, acc)
		}
	}
	return out
}

// IsVirtualMember reports whether a member or its first accessor is virtual.
func IsVirtualMember(m Member) bool {
	switch v := m.(type) {
	case *Method:
		return v.Virtual
	case *Property, *Event:
		if accs := Accessors(v); len(accs) > 0 {
			return accs[0].Virtual
		}
	}
	return false
}
