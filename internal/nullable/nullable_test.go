package nullable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

var (
	nullableAttrType = &metadata.TypeNode{MemberInfo: metadata.MemberInfo{Name: "NullableAttribute"}, Namespace: "System.Runtime.CompilerServices"}
	contextAttrType  = &metadata.TypeNode{MemberInfo: metadata.MemberInfo{Name: "NullableContextAttribute"}, Namespace: "System.Runtime.CompilerServices"}
)

func attr(t *metadata.TypeNode, v any) *metadata.Attribute {
	return &metadata.Attribute{Type: t, Expressions: []metadata.Expression{&metadata.Literal{Value: v}}}
}

func TestDetermine(t *testing.T) {
	owner := &metadata.TypeNode{MemberInfo: metadata.MemberInfo{
		Name:       "Widget",
		Attributes: []*metadata.Attribute{attr(contextAttrType, uint8(1))},
	}, Namespace: "Contoso"}
	method := &metadata.Method{MemberInfo: metadata.MemberInfo{Name: "Run", DeclaringType: owner}}
	annotated := &metadata.Method{MemberInfo: metadata.MemberInfo{
		Name:          "Annotated",
		DeclaringType: owner,
		Attributes:    []*metadata.Attribute{attr(contextAttrType, uint8(2))},
	}}

	tests := []struct {
		name   string
		parent metadata.Member
		attrs  []*metadata.Attribute
		want   []metadata.NullableState
	}{
		{
			name:  "byte array",
			attrs: []*metadata.Attribute{attr(nullableAttrType, []any{uint8(2), uint8(1), uint8(2), uint8(7)})},
			want:  []metadata.NullableState{metadata.NullableNullable, metadata.NullableNotNullable, metadata.NullableNullable, metadata.NullableOblivious},
		},
		{
			name:  "single byte",
			attrs: []*metadata.Attribute{attr(nullableAttrType, uint8(0))},
			want:  []metadata.NullableState{metadata.NullableOblivious},
		},
		{
			name:  "context attribute",
			attrs: []*metadata.Attribute{attr(contextAttrType, uint8(2))},
			want:  []metadata.NullableState{metadata.NullableNullable},
		},
		{
			name:   "method falls back to declaring type",
			parent: method,
			want:   []metadata.NullableState{metadata.NullableNotNullable},
		},
		{
			name:   "method context attribute applies to parameters",
			parent: annotated,
			want:   []metadata.NullableState{metadata.NullableNullable},
		},
		{
			name: "no parent",
			want: []metadata.NullableState{metadata.NullableNotSpecified},
		},
		{
			name:   "non byte payload is ignored",
			parent: owner,
			attrs:  []*metadata.Attribute{attr(nullableAttrType, int32(2))},
			want:   []metadata.NullableState{metadata.NullableNotNullable},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Determine(tt.parent, tt.attrs))
		})
	}
}

func TestTypeContext_Nested(t *testing.T) {
	outer := &metadata.TypeNode{MemberInfo: metadata.MemberInfo{
		Name:       "Outer",
		Attributes: []*metadata.Attribute{attr(contextAttrType, uint8(2))},
	}, Namespace: "Contoso"}
	inner := &metadata.TypeNode{MemberInfo: metadata.MemberInfo{Name: "Inner", DeclaringType: outer}}

	require.Equal(t, metadata.NullableNullable, TypeContext(inner))
	require.Equal(t, metadata.NullableNotSpecified, TypeContext(&metadata.TypeNode{}))
}

func TestCursor(t *testing.T) {
	c := NewCursor([]metadata.NullableState{metadata.NullableNullable, metadata.NullableNotNullable})
	require.Equal(t, metadata.NullableNullable, c.Next(metadata.NullableOblivious))
	require.Equal(t, metadata.NullableNotNullable, c.Next(metadata.NullableOblivious))
	require.Equal(t, metadata.NullableOblivious, c.Next(metadata.NullableOblivious))

	var none *Cursor
	require.Equal(t, metadata.NullableNullable, none.Next(metadata.NullableNullable))
}
