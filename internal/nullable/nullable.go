// Package nullable decodes nullable reference type annotations and walks them in
// the order type references are written.
package nullable

import (
	"strings"

	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

// Attribute type names that carry nullable annotations.
const (
	AttributeName        = "NullableAttribute"
	ContextAttributeName = "NullableContextAttribute"
)

// FromByte converts an encoded annotation. Unknown values are treated as oblivious.
func FromByte(b int64) metadata.NullableState {
	switch b {
	case 1:
		return metadata.NullableNotNullable
	case 2:
		return metadata.NullableNullable
	default:
		return metadata.NullableOblivious
	}
}

func findBySimpleName(attrs []*metadata.Attribute, name string) *metadata.Attribute {
	for _, a := range attrs {
		if a == nil || a.Type == nil {
			continue
		}
		full := a.Type.FullName()
		if full == name || strings.HasSuffix(full, "."+name) {
			return a
		}
	}
	return nil
}

func singleLiteral(a *metadata.Attribute) *metadata.Literal {
	if a == nil || len(a.Expressions) != 1 {
		return nil
	}
	lit, _ := a.Expressions[0].(*metadata.Literal)
	return lit
}

func decodeBytes(v any) []int64 {
	switch x := v.(type) {
	case uint8:
		return []int64{int64(x)}
	case []byte:
		out := make([]int64, len(x))
		for i, b := range x {
			out[i] = int64(b)
		}
		return out
	case []any:
		out := make([]int64, 0, len(x))
		for _, e := range x {
			b, ok := e.(uint8)
			if !ok {
				return nil
			}
			out = append(out, int64(b))
		}
		return out
	}
	return nil
}

// Determine returns the annotations for a declaration with the given attributes. A
// nullable attribute wins over a nullable context attribute; without either, a method
// defers to its declaring type and a type uses its inherited context.
func Determine(parent metadata.Member, attrs []*metadata.Attribute) []metadata.NullableState {
	lit := singleLiteral(findBySimpleName(attrs, AttributeName))
	if lit == nil {
		lit = singleLiteral(findBySimpleName(attrs, ContextAttributeName))
	}
	var raw []int64
	if lit != nil {
		raw = decodeBytes(lit.Value)
	}
	if len(raw) == 0 {
		switch p := parent.(type) {
		case *metadata.Method:
			return Determine(p.DeclaringType, p.Attributes)
		case *metadata.TypeNode:
			return []metadata.NullableState{TypeContext(p)}
		default:
			return []metadata.NullableState{metadata.NullableNotSpecified}
		}
	}
	states := make([]metadata.NullableState, len(raw))
	for i, b := range raw {
		states[i] = FromByte(b)
	}
	return states
}

// TypeContext returns the nullable context declared on a type or the nearest
// declaring type.
func TypeContext(t *metadata.TypeNode) metadata.NullableState {
	for ; t != nil; t = t.DeclaringType {
		if lit := singleLiteral(findBySimpleName(t.TemplateType().Attributes, ContextAttributeName)); lit != nil {
			if raw := decodeBytes(lit.Value); len(raw) == 1 {
				return FromByte(raw[0])
			}
		}
	}
	return metadata.NullableNotSpecified
}

// Cursor hands out annotations in the order type references are written. A nil
// cursor always yields the fallback.
type Cursor struct {
	states []metadata.NullableState
	pos    int
}

// NewCursor starts a cursor over states.
func NewCursor(states []metadata.NullableState) *Cursor {
	return &Cursor{states: states}
}

// Next returns the next annotation, or fallback once the sequence is exhausted.
func (c *Cursor) Next(fallback metadata.NullableState) metadata.NullableState {
	if c == nil || c.pos >= len(c.states) {
		return fallback
	}
	s := c.states[c.pos]
	c.pos++
	return s
}
