package metadata

import (
	"strconv"
	"strings"
	"sync"
)

// Well-known type names referenced by the writer and filters.
const (
	SystemObject    = "System.Object"
	SystemValueType = "System.ValueType"
	SystemEnum      = "System.Enum"
	SystemVoid      = "System.Void"
	SystemInt32     = "System.Int32"
	SystemString    = "System.String"
	SystemChar      = "System.Char"
	SystemDecimal   = "System.Decimal"
	SystemType      = "System.Type"
	SystemNullable  = "System.Nullable`1"
)

// TypeNode is a type: a declared class, structure, interface, enumeration or
// delegate, a generic instantiation, a generic parameter, or a constructed array,
// pointer, by-reference or modified type.
type TypeNode struct {
	MemberInfo
	Kind      TypeKind
	Namespace string
	Module    *Module

	Abstract     bool
	Sealed       bool
	Serializable bool
	ComImport    bool
	Layout       Layout
	CharSet      CharSet
	ClassSize    int
	PackingSize  int

	DeclaredBase       *TypeNode
	DeclaredInterfaces []*TypeNode
	DeclaredMembers    []Member
	TemplateParameters []*TypeNode

	// Template and TemplateArguments are set on generic instantiations.
	Template          *TypeNode
	TemplateArguments []*TypeNode

	// ElementType is the array element, pointer or reference target, or the modified
	// type of a modifier. Modifier is the modifier type itself.
	ElementType *TypeNode
	Rank        int
	Modifier    *TypeNode

	UnderlyingType *TypeNode

	// Delegate signature.
	Parameters []*Parameter
	ReturnType *TypeNode

	// Generic parameter data.
	Position        int
	DeclaringMember Member
	Constraints     TemplateFlags

	mu      sync.Mutex
	derived map[string]*TypeNode

	specializeOnce sync.Once
	specialized    specializedView
}

type specializedView struct {
	base       *TypeNode
	interfaces []*TypeNode
	members    []Member
}

// FullName is the reflection-style full name, with '+' between nested types and
// generic arguments in square brackets.
func (t *TypeNode) FullName() string {
	switch t.Kind {
	case KindArray:
		return t.ElementType.FullName() + arraySuffix(t.Rank)
	case KindPointer:
		return t.ElementType.FullName() + "*"
	case KindReference:
		return t.ElementType.FullName() + "&"
	case KindOptionalModifier:
		return t.ElementType.FullName() + " modopt(" + t.Modifier.FullName() + ")"
	case KindRequiredModifier:
		return t.ElementType.FullName() + " modreq(" + t.Modifier.FullName() + ")"
	case KindTemplateParameter:
		return t.Name
	}
	if t.Template != nil {
		args := make([]string, len(t.TemplateArguments))
		for i, a := range t.TemplateArguments {
			args[i] = a.FullName()
		}
		return t.Template.FullName() + "[" + strings.Join(args, ",") + "]"
	}
	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "+" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

func arraySuffix(rank int) string {
	if rank <= 1 {
		return "[]"
	}
	return "[" + strings.Repeat(",", rank-1) + "]"
}

// String implements fmt.Stringer.
func (t *TypeNode) String() string { return t.FullName() }

// NamespaceName returns the namespace of the outermost declaring type.
func (t *TypeNode) NamespaceName() string {
	for t.DeclaringType != nil {
		t = t.DeclaringType
	}
	if t.Template != nil {
		return t.Template.NamespaceName()
	}
	return t.Namespace
}

// TemplateType returns the generic type definition of an instantiation, or the type
// itself.
func (t *TypeNode) TemplateType() *TypeNode {
	for t.Template != nil {
		t = t.Template
	}
	return t
}

// IsGeneric reports whether the type is a generic definition or instantiation.
func (t *TypeNode) IsGeneric() bool {
	return t.Template != nil || len(t.TemplateParameters) > 0
}

// IsTemplateParameter reports whether the type is a generic parameter.
func (t *TypeNode) IsTemplateParameter() bool { return t.Kind == KindTemplateParameter }

// IsValueType reports whether values of the type have value semantics.
func (t *TypeNode) IsValueType() bool {
	switch t.Kind {
	case KindStruct, KindEnum:
		return true
	case KindTemplateParameter:
		return t.Constraints&ValueTypeConstraint != 0
	case KindOptionalModifier, KindRequiredModifier:
		return t.ElementType.IsValueType()
	default:
		return false
	}
}

// IsNullableValueType reports whether the type is an instantiation of System.Nullable`1.
func (t *TypeNode) IsNullableValueType() bool {
	return t.Template != nil && t.TemplateType().FullName() == SystemNullable
}

// IsStructurallyEquivalentTo compares two types by identity, looking through
// instantiations whose arguments are equivalent.
func (t *TypeNode) IsStructurallyEquivalentTo(o *TypeNode) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindArray:
		return t.Rank == o.Rank && t.ElementType.IsStructurallyEquivalentTo(o.ElementType)
	case KindPointer, KindReference:
		return t.ElementType.IsStructurallyEquivalentTo(o.ElementType)
	case KindOptionalModifier, KindRequiredModifier:
		return t.ElementType.IsStructurallyEquivalentTo(o.ElementType) &&
			t.Modifier.IsStructurallyEquivalentTo(o.Modifier)
	case KindTemplateParameter:
		return t.Position == o.Position && t.DeclaringMember == o.DeclaringMember
	}
	if t.Template == nil || o.Template == nil || t.Template != o.Template ||
		len(t.TemplateArguments) != len(o.TemplateArguments) {
		return false
	}
	for i := range t.TemplateArguments {
		if !t.TemplateArguments[i].IsStructurallyEquivalentTo(o.TemplateArguments[i]) {
			return false
		}
	}
	return true
}

// BaseType returns the base type, substituted for instantiations.
func (t *TypeNode) BaseType() *TypeNode {
	if t.Template != nil {
		return t.view().base
	}
	return t.DeclaredBase
}

// Interfaces returns the implemented interfaces, substituted for instantiations.
func (t *TypeNode) Interfaces() []*TypeNode {
	if t.Template != nil {
		return t.view().interfaces
	}
	return t.DeclaredInterfaces
}

// Members returns the declared members. Instantiations return specialized copies of
// the generic definition's members.
func (t *TypeNode) Members() []Member {
	if t.Template != nil {
		return t.view().members
	}
	return t.DeclaredMembers
}

// MembersNamed returns the members with the given name.
func (t *TypeNode) MembersNamed(name string) []Member {
	var out []Member
	for _, m := range t.Members() {
		if m.Info().Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Ancestors returns the base type chain, nearest first.
func (t *TypeNode) Ancestors() []*TypeNode {
	var out []*TypeNode
	for b := t.BaseType(); b != nil; b = b.BaseType() {
		out = append(out, b)
	}
	return out
}

// NestedTypes returns the nested types in declaration order.
func (t *TypeNode) NestedTypes() []*TypeNode {
	var out []*TypeNode
	for _, m := range t.DeclaredMembers {
		if nt, ok := m.(*TypeNode); ok {
			out = append(out, nt)
		}
	}
	return out
}

// DeclaringAssembly returns the assembly defining the type, or nil for constructed
// and built-in types without a module.
func (t *TypeNode) DeclaringAssembly() *Assembly {
	t = t.TemplateType()
	for t.Module == nil && t.DeclaringType != nil {
		t = t.DeclaringType
	}
	if t.Module == nil {
		return nil
	}
	return t.Module.Assembly
}

// DeclaringModule returns the module defining the type.
func (t *TypeNode) DeclaringModule() *Module {
	t = t.TemplateType()
	for t.Module == nil && t.DeclaringType != nil {
		t = t.DeclaringType
	}
	return t.Module
}

// UnmangledName returns the simple name without the generic arity suffix.
func UnmangledName(name string) string {
	if i := strings.LastIndexByte(name, '`'); i >= 0 {
		if _, err := strconv.Atoi(name[i+1:]); err == nil {
			return name[:i]
		}
	}
	return name
}

func (t *TypeNode) derive(key string, build func() *TypeNode) *TypeNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.derived[key]; ok {
		return d
	}
	if t.derived == nil {
		t.derived = make(map[string]*TypeNode)
	}
	d := build()
	t.derived[key] = d
	return d
}

// ArrayOf returns the interned array type with the given element type and rank.
func ArrayOf(elem *TypeNode, rank int) *TypeNode {
	if rank < 1 {
		rank = 1
	}
	return elem.derive("array:"+strconv.Itoa(rank), func() *TypeNode {
		return &TypeNode{MemberInfo: MemberInfo{Name: elem.Name + arraySuffix(rank)}, Kind: KindArray, ElementType: elem, Rank: rank}
	})
}

// PointerTo returns the interned pointer type.
func PointerTo(elem *TypeNode) *TypeNode {
	return elem.derive("pointer", func() *TypeNode {
		return &TypeNode{MemberInfo: MemberInfo{Name: elem.Name + "*"}, Kind: KindPointer, ElementType: elem}
	})
}

// ReferenceTo returns the interned by-reference type.
func ReferenceTo(elem *TypeNode) *TypeNode {
	return elem.derive("reference", func() *TypeNode {
		return &TypeNode{MemberInfo: MemberInfo{Name: elem.Name + "&"}, Kind: KindReference, ElementType: elem}
	})
}

// Modified returns the interned optional or required modifier applied to elem.
func Modified(elem, modifier *TypeNode, required bool) *TypeNode {
	kind, tag := KindOptionalModifier, "modopt:"
	if required {
		kind, tag = KindRequiredModifier, "modreq:"
	}
	return elem.derive(tag+identity(modifier), func() *TypeNode {
		return &TypeNode{MemberInfo: MemberInfo{Name: elem.Name}, Kind: kind, ElementType: elem, Modifier: modifier}
	})
}

// Instantiate returns the interned instantiation of a generic type definition.
// Custom attributes stay on the definition; use TemplateType to read them.
func Instantiate(template *TypeNode, args ...*TypeNode) *TypeNode {
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = identity(a)
	}
	return template.derive("inst:"+strings.Join(keys, ","), func() *TypeNode {
		inst := &TypeNode{
			MemberInfo: MemberInfo{
				Name:          template.Name,
				DeclaringType: template.DeclaringType,
				Visibility:    template.Visibility,
			},
			Kind:              template.Kind,
			Namespace:         template.Namespace,
			Module:            template.Module,
			Abstract:          template.Abstract,
			Sealed:            template.Sealed,
			Serializable:      template.Serializable,
			Template:          template,
			TemplateArguments: append([]*TypeNode(nil), args...),
			UnderlyingType:    template.UnderlyingType,
		}
		return inst
	})
}
