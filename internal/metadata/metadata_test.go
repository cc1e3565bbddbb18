package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newClass(ns, name string) *TypeNode {
	return &TypeNode{MemberInfo: MemberInfo{Name: name}, Kind: KindClass, Namespace: ns}
}

func TestFullName(t *testing.T) {
	outer := newClass("Contoso", "Outer`1")
	inner := newClass("", "Inner")
	inner.DeclaringType = outer
	outer.DeclaredMembers = []Member{inner}

	i32 := &TypeNode{MemberInfo: MemberInfo{Name: "Int32"}, Kind: KindStruct, Namespace: "System"}

	require.Equal(t, "Contoso.Outer`1+Inner", inner.FullName())
	require.Equal(t, "Contoso", inner.NamespaceName())
	require.Equal(t, "System.Int32[]", ArrayOf(i32, 1).FullName())
	require.Equal(t, "System.Int32[,]", ArrayOf(i32, 2).FullName())
	require.Equal(t, "System.Int32*", PointerTo(i32).FullName())
	require.Equal(t, "System.Int32&", ReferenceTo(i32).FullName())
	require.Equal(t, "Contoso.Outer`1[System.Int32]", Instantiate(outer, i32).FullName())
}

func TestDerivedTypesAreInterned(t *testing.T) {
	list := newClass("System.Collections.Generic", "List`1")
	str := newClass("System", "String")

	require.Same(t, Instantiate(list, str), Instantiate(list, str))
	require.Same(t, ArrayOf(str, 1), ArrayOf(str, 1))
	require.NotSame(t, ArrayOf(str, 1), ArrayOf(str, 2))
	require.Same(t, Instantiate(list, str).TemplateType(), list)
}

func TestSpecializedMembers(t *testing.T) {
	i32 := &TypeNode{MemberInfo: MemberInfo{Name: "Int32"}, Kind: KindStruct, Namespace: "System"}
	box := newClass("Contoso", "Box`1")
	tp := &TypeNode{MemberInfo: MemberInfo{Name: "T"}, Kind: KindTemplateParameter, DeclaringMember: box}
	box.TemplateParameters = []*TypeNode{tp}

	get := &Method{MemberInfo: MemberInfo{Name: "Get", DeclaringType: box}, ReturnType: tp}
	put := &Method{
		MemberInfo: MemberInfo{Name: "Put", DeclaringType: box},
		Parameters: []*Parameter{{Name: "items", Type: ArrayOf(tp, 1)}},
	}
	box.DeclaredMembers = []Member{get, put}
	iface := newClass("Contoso", "IBox`1")
	iface.Kind = KindInterface
	box.DeclaredInterfaces = []*TypeNode{Instantiate(iface, tp)}

	inst := Instantiate(box, i32)
	members := inst.Members()
	require.Len(t, members, 2)

	sget := members[0].(*Method)
	require.Same(t, i32, sget.ReturnType)
	require.Same(t, inst, sget.DeclaringType)
	require.Same(t, get, TemplateMember(sget))

	sput := members[1].(*Method)
	require.Same(t, ArrayOf(i32, 1), sput.Parameters[0].Type)

	require.Len(t, inst.Interfaces(), 1)
	require.Same(t, Instantiate(iface, i32), inst.Interfaces()[0])

	// Members are computed once per instantiation.
	require.Same(t, members[0], inst.Members()[0])
}

func TestStructuralEquivalence(t *testing.T) {
	i32 := &TypeNode{MemberInfo: MemberInfo{Name: "Int32"}, Kind: KindStruct, Namespace: "System"}
	box := newClass("Contoso", "Box`1")

	require.True(t, box.IsStructurallyEquivalentTo(box))
	require.False(t, Instantiate(box, i32).IsStructurallyEquivalentTo(box))
	require.True(t, Instantiate(box, i32).IsStructurallyEquivalentTo(Instantiate(box, i32)))
}

func TestGroupNamespaces(t *testing.T) {
	a := newClass("Contoso", "A")
	nested := newClass("", "Nested")
	nested.DeclaringType = a
	a.DeclaredMembers = []Member{nested}
	b := newClass("Contoso.Data", "B")
	c := newClass("Contoso", "C")

	asm1 := &Assembly{Name: "One", Types: []*TypeNode{a, b}}
	asm2 := &Assembly{Name: "Two", Types: []*TypeNode{c}}

	spaces := GroupNamespaces([]*Assembly{asm1, asm2})
	require.Len(t, spaces, 2)
	require.Equal(t, "Contoso", spaces[0].Name)
	require.Equal(t, []*TypeNode{a, nested, c}, spaces[0].Types)
	require.Equal(t, "Contoso.Data", spaces[1].Name)
}

func TestStrongName(t *testing.T) {
	asm := &Assembly{Name: "Contoso.Core", Version: "1.2.0.0"}
	require.Equal(t, "Contoso.Core, Version=1.2.0.0, Culture=neutral, PublicKeyToken=null", asm.StrongName())

	asm.PublicKey = []byte{0xb7, 0x7a, 0x5c, 0x56, 0x19, 0x34, 0xe0, 0x89}
	require.Equal(t, "b77a5c561934e089", asm.PublicKeyToken())
}

func TestUnmangledName(t *testing.T) {
	require.Equal(t, "List", UnmangledName("List`1"))
	require.Equal(t, "Plain", UnmangledName("Plain"))
	require.Equal(t, "Odd`x", UnmangledName("Odd`x"))
}

func TestAsInt64(t *testing.T) {
	v, ok := AsInt64(uint64(0xFFFFFFFFFFFFFFFF))
	require.True(t, ok)
	require.Equal(t, int64(-1), v)

	_, ok = AsInt64("1")
	require.False(t, ok)
}
