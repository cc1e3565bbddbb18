package apifilter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

type fixture struct {
	public, internal, nested, iface, hiddenIface *metadata.TypeNode
	method, protected, private, eii, accessor      *metadata.Method
	privateField                                   *metadata.Field
	attrType, compilerAttr                         *metadata.TypeNode
}

func newFixture() *fixture {
	f := &fixture{}
	typ := func(name string, kind metadata.TypeKind, vis metadata.Visibility) *metadata.TypeNode {
		return &metadata.TypeNode{MemberInfo: metadata.MemberInfo{Name: name, Visibility: vis}, Kind: kind, Namespace: "Contoso"}
	}
	f.public = typ("Widget", metadata.KindClass, metadata.Public)
	f.internal = typ("Helper", metadata.KindClass, metadata.VisibilityAssembly)
	f.nested = typ("Part", metadata.KindClass, metadata.Public)
	f.nested.Namespace = ""
	f.nested.DeclaringType = f.internal
	f.iface = typ("IWidget", metadata.KindInterface, metadata.Public)
	f.hiddenIface = typ("IInternal", metadata.KindInterface, metadata.VisibilityAssembly)

	ifaceMethod := &metadata.Method{MemberInfo: metadata.MemberInfo{Name: "Run", DeclaringType: f.iface}}
	f.iface.DeclaredMembers = []metadata.Member{ifaceMethod}

	member := func(name string, vis metadata.Visibility) *metadata.Method {
		m := &metadata.Method{MemberInfo: metadata.MemberInfo{Name: name, DeclaringType: f.public, Visibility: vis}}
		f.public.DeclaredMembers = append(f.public.DeclaredMembers, m)
		return m
	}
	f.method = member("Reset", metadata.Public)
	f.protected = member("OnReset", metadata.Family)
	f.private = member("Compute", metadata.Private)
	f.eii = member("Contoso.IWidget.Run", metadata.Private)
	f.eii.ImplementedMethods = []*metadata.Method{ifaceMethod}
	f.accessor = member("get_Size", metadata.Public)
	f.accessor.AccessorFor = &metadata.Property{}
	f.privateField = &metadata.Field{MemberInfo: metadata.MemberInfo{Name: "size", DeclaringType: f.public, Visibility: metadata.Private}}

	f.attrType = typ("MarkerAttribute", metadata.KindClass, metadata.Public)
	f.compilerAttr = &metadata.TypeNode{MemberInfo: metadata.MemberInfo{Name: "NullableAttribute"}, Kind: metadata.KindClass, Namespace: "System.Runtime.CompilerServices"}
	return f
}

func TestDefaultOptions(t *testing.T) {
	fx := newFixture()
	f := New(DefaultOptions())

	require.True(t, f.IsExposedType(fx.public))
	require.False(t, f.IsExposedType(fx.internal))
	require.False(t, f.IsExposedType(fx.nested), "public type nested in internal type")

	require.True(t, f.IsExposedMember(fx.method))
	require.True(t, f.IsExposedMember(fx.protected))
	require.False(t, f.IsExposedMember(fx.private))
	require.True(t, f.IsExposedMember(fx.eii))
	require.False(t, f.IsExposedMember(fx.accessor))
	require.False(t, f.IsExposedMember(fx.privateField))

	require.True(t, f.IsDocumentedInterface(fx.iface))
	require.False(t, f.IsDocumentedInterface(fx.hiddenIface))
	require.False(t, f.IsDocumentedInterface(fx.public))

	require.True(t, f.HasExposedMembers(fx.public))
	require.True(t, f.IsExposedAttribute(&metadata.Attribute{Type: fx.attrType}))
	require.False(t, f.IsExposedAttribute(&metadata.Attribute{Type: fx.compilerAttr}))
}

func TestIncludeOptions(t *testing.T) {
	fx := newFixture()
	opts := DefaultOptions()
	opts.IncludeInternal = true
	opts.IncludePrivate = true
	opts.IncludeExplicitInterfaceImplementations = false
	opts.IncludeAttributes = false
	f := New(opts)

	require.True(t, f.IsExposedType(fx.nested))
	require.True(t, f.IsExposedMember(fx.private))
	require.False(t, f.IsExposedMember(fx.privateField), "private fields need their own switch")
	require.False(t, f.IsExposedMember(fx.eii))
	require.False(t, f.IsExposedAttribute(&metadata.Attribute{Type: fx.attrType}))
	require.False(t, f.IncludeAttributes())

	opts.IncludePrivateFields = true
	require.True(t, New(opts).IsExposedMember(fx.privateField))
}

func TestExclusions(t *testing.T) {
	fx := newFixture()
	opts := DefaultOptions()
	opts.Exclude = []string{"M:Contoso.Widget.Reset", "T:Contoso.IWidget"}
	opts.ExcludedAttributes = []string{"Contoso.MarkerAttribute"}
	f := New(opts)

	require.False(t, f.IsExposedMember(fx.method))
	require.True(t, f.IsExposedMember(fx.protected))
	require.False(t, f.IsExposedType(fx.iface))
	require.False(t, f.IsExposedAttribute(&metadata.Attribute{Type: fx.attrType}))

	nsExcluded := New(Options{Exclude: []string{"N:Contoso"}})
	require.False(t, nsExcluded.IsExposedType(fx.public))
	require.False(t, nsExcluded.IsExposedNamespace(&metadata.Namespace{Name: "Contoso", Types: []*metadata.TypeNode{fx.public}}))
	require.True(t, New(DefaultOptions()).IsExposedNamespace(&metadata.Namespace{Name: "Contoso", Types: []*metadata.TypeNode{fx.public}}))
}

func TestVisibility(t *testing.T) {
	member := func(v metadata.Visibility) metadata.Member {
		return &metadata.Method{MemberInfo: metadata.MemberInfo{Name: "M", Visibility: v}}
	}
	f := New(DefaultOptions())
	strict := New(Options{})

	tests := []struct {
		vis    metadata.Visibility
		filter *VisibilityFilter
		want   string
	}{
		{metadata.Public, f, "public"},
		{metadata.Family, f, "family"},
		{metadata.FamilyOrAssembly, f, "family"},
		{metadata.FamilyOrAssembly, strict, "family or assembly"},
		{metadata.FamilyAndAssembly, f, "family and assembly"},
		{metadata.VisibilityAssembly, f, "assembly"},
		{metadata.Private, f, "private"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.filter.Visibility(member(tt.vis)))
	}
}
