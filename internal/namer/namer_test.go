package namer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

func class(ns, name string) *metadata.TypeNode {
	return &metadata.TypeNode{MemberInfo: metadata.MemberInfo{Name: name}, Kind: metadata.KindClass, Namespace: ns}
}

func TestDocIDNamer(t *testing.T) {
	n := NewDocIDNamer()

	i32 := &metadata.TypeNode{MemberInfo: metadata.MemberInfo{Name: "Int32"}, Kind: metadata.KindStruct, Namespace: "System"}
	str := class("System", "String")

	box := class("Contoso", "Box`1")
	tp := &metadata.TypeNode{MemberInfo: metadata.MemberInfo{Name: "T"}, Kind: metadata.KindTemplateParameter, DeclaringMember: box}
	box.TemplateParameters = []*metadata.TypeNode{tp}

	nested := class("", "Entry")
	nested.DeclaringType = box

	ctor := &metadata.Method{MemberInfo: metadata.MemberInfo{Name: ".ctor", DeclaringType: box}, Kind: metadata.MethodConstructor}
	put := &metadata.Method{
		MemberInfo: metadata.MemberInfo{Name: "Put", DeclaringType: box},
		Parameters: []*metadata.Parameter{{Name: "value", Type: tp}, {Name: "count", Type: metadata.ReferenceTo(i32)}},
	}
	convert := &metadata.Method{MemberInfo: metadata.MemberInfo{Name: "Convert", DeclaringType: box}}
	up := &metadata.TypeNode{MemberInfo: metadata.MemberInfo{Name: "TOut"}, Kind: metadata.KindTemplateParameter, DeclaringMember: convert}
	convert.TemplateParameters = []*metadata.TypeNode{up}
	convert.Parameters = []*metadata.Parameter{{Name: "items", Type: metadata.ArrayOf(up, 2)}}

	implicit := &metadata.Method{
		MemberInfo: metadata.MemberInfo{Name: "op_Implicit", DeclaringType: box, Static: true},
		Parameters: []*metadata.Parameter{{Name: "b", Type: metadata.Instantiate(box, tp)}},
		ReturnType: str,
	}
	indexer := &metadata.Property{
		MemberInfo: metadata.MemberInfo{Name: "Item", DeclaringType: box},
		Parameters: []*metadata.Parameter{{Name: "index", Type: i32}},
	}
	eii := &metadata.Method{MemberInfo: metadata.MemberInfo{Name: "System.IDisposable.Dispose", DeclaringType: box, Visibility: metadata.Private}}
	field := &metadata.Field{MemberInfo: metadata.MemberInfo{Name: "Empty", DeclaringType: box}}
	evt := &metadata.Event{MemberInfo: metadata.MemberInfo{Name: "Changed", DeclaringType: box}}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"namespace", n.NamespaceName("Contoso"), "N:Contoso"},
		{"generic type", n.TypeName(box), "T:Contoso.Box`1"},
		{"nested type", n.TypeName(nested), "T:Contoso.Box`1.Entry"},
		{"constructor", n.MemberName(ctor), "M:Contoso.Box`1.#ctor"},
		{"type parameter and by-ref", n.MemberName(put), "M:Contoso.Box`1.Put(`0,System.Int32@)"},
		{"generic method", n.MemberName(convert), "M:Contoso.Box`1.Convert``1(``0[0:,0:])"},
		{"conversion operator", n.MemberName(implicit), "M:Contoso.Box`1.op_Implicit(Contoso.Box{`0})~System.String"},
		{"indexer", n.MemberName(indexer), "P:Contoso.Box`1.Item(System.Int32)"},
		{"explicit implementation", n.MemberName(eii), "M:Contoso.Box`1.System#IDisposable#Dispose"},
		{"field", n.MemberName(field), "F:Contoso.Box`1.Empty"},
		{"event", n.MemberName(evt), "E:Contoso.Box`1.Changed"},
		{"api name of type", n.APIName(box), "T:Contoso.Box`1"},
		{"api name of method", n.APIName(convert), "M:Contoso.Box`1.Convert``1(``0[0:,0:])"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.got)
		})
	}
}

func TestDocIDNamer_SpecializedMember(t *testing.T) {
	n := NewDocIDNamer()
	i32 := &metadata.TypeNode{MemberInfo: metadata.MemberInfo{Name: "Int32"}, Kind: metadata.KindStruct, Namespace: "System"}
	box := class("Contoso", "Box`1")
	tp := &metadata.TypeNode{MemberInfo: metadata.MemberInfo{Name: "T"}, Kind: metadata.KindTemplateParameter, DeclaringMember: box}
	box.TemplateParameters = []*metadata.TypeNode{tp}
	put := &metadata.Method{
		MemberInfo: metadata.MemberInfo{Name: "Put", DeclaringType: box},
		Parameters: []*metadata.Parameter{{Name: "value", Type: tp}},
	}
	box.DeclaredMembers = []metadata.Member{put}

	specialized := metadata.Instantiate(box, i32).Members()[0]
	require.Equal(t, "M:Contoso.Box{System.Int32}.Put(System.Int32)", n.MemberName(specialized))
	require.Equal(t, "M:Contoso.Box`1.Put(`0)", n.MemberName(metadata.TemplateMember(specialized)))
}
