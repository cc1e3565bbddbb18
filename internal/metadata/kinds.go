package metadata

// TypeKind identifies the shape of a TypeNode.
type TypeKind int

const (
	KindClass TypeKind = iota
	KindStruct
	KindInterface
	KindEnum
	KindDelegate
	KindArray
	KindPointer
	KindReference
	KindOptionalModifier
	KindRequiredModifier
	KindTemplateParameter
)

var typeKindNames = map[TypeKind]string{
	KindClass:             "class",
	KindStruct:            "structure",
	KindInterface:         "interface",
	KindEnum:              "enumeration",
	KindDelegate:          "delegate",
	KindArray:             "array",
	KindPointer:           "pointer",
	KindReference:         "reference",
	KindOptionalModifier:  "optionalModifier",
	KindRequiredModifier:  "requiredModifier",
	KindTemplateParameter: "templateParameter",
}

func (k TypeKind) String() string {
	if s, ok := typeKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Visibility is the declared accessibility of a type or member.
type Visibility int

const (
	Public Visibility = iota
	Family
	VisibilityAssembly
	FamilyOrAssembly
	FamilyAndAssembly
	Private
)

// ModuleKind is the kind of image a module was compiled to.
type ModuleKind int

const (
	DynamicallyLinkedLibrary ModuleKind = iota
	ConsoleApplication
	WindowsApplication
)

func (k ModuleKind) String() string {
	switch k {
	case ConsoleApplication:
		return "ConsoleApplication"
	case WindowsApplication:
		return "WindowsApplication"
	default:
		return "DynamicallyLinkedLibrary"
	}
}

// Layout is the field layout of a class or structure.
type Layout int

const (
	LayoutAuto Layout = iota
	LayoutSequential
	LayoutExplicit
)

// CharSet is the string marshalling format of a type or P/Invoke method.
// The zero value means no char set was specified.
type CharSet int

const (
	CharSetNotSpecified CharSet = iota
	CharSetAnsi
	CharSetUnicode
	CharSetAuto
)

// CallingConvention is the unmanaged calling convention of a P/Invoke method.
type CallingConvention int

const (
	CallConvWinapi CallingConvention = iota
	CallConvCdecl
	CallConvStdcall
	CallConvThiscall
	CallConvFastcall
)

// TemplateFlags are the constraint and variance flags of a generic parameter.
type TemplateFlags int

const (
	ReferenceTypeConstraint TemplateFlags = 1 << iota
	ValueTypeConstraint
	DefaultConstructorConstraint
	Covariant
	Contravariant
)

// MethodKind distinguishes constructors from ordinary methods.
type MethodKind int

const (
	MethodNormal MethodKind = iota
	MethodConstructor
	MethodStaticConstructor
)

// NullableState is the nullable reference type annotation of a type reference.
type NullableState int

const (
	NullableNotSpecified NullableState = iota - 1
	NullableOblivious
	NullableNotNullable
	NullableNullable
	NullableValueType
)

func (s NullableState) String() string {
	switch s {
	case NullableOblivious:
		return "oblivious"
	case NullableNotNullable:
		return "notNullable"
	case NullableNullable:
		return "nullable"
	case NullableValueType:
		return "valueType"
	default:
		return "notSpecified"
	}
}
