package metadata

// Attribute is a custom attribute application.
type Attribute struct {
	Type        *TypeNode
	Expressions []Expression
}

// Expression is a custom attribute argument: a positional Literal or a NamedArgument.
type Expression interface {
	expression()
}

// Char is a UTF-16 code unit stored in a literal of type System.Char.
type Char uint16

// Literal is a constant value of a given type. Value holds a Go integer, float, bool,
// string, Char, *TypeNode (for System.Type), []any (for arrays) or nil.
type Literal struct {
	Type  *TypeNode
	Value any
}

// NamedArgument assigns a value to a field or property of the attribute.
type NamedArgument struct {
	Name  string
	Value *Literal
}

func (*Literal) expression()       {}
func (*NamedArgument) expression() {}

// Positional returns the positional arguments in order.
func (a *Attribute) Positional() []*Literal {
	var out []*Literal
	for _, e := range a.Expressions {
		if l, ok := e.(*Literal); ok {
			out = append(out, l)
		}
	}
	return out
}

// FullName returns the attribute type's full name.
func (a *Attribute) FullName() string {
	if a == nil || a.Type == nil {
		return ""
	}
	return a.Type.FullName()
}

// FindAttribute returns the first attribute with the given type full name.
func FindAttribute(attrs []*Attribute, fullName string) *Attribute {
	for _, a := range attrs {
		if a != nil && a.FullName() == fullName {
			return a
		}
	}
	return nil
}

// AsInt64 converts any integer literal value to int64. Unsigned 64-bit values wrap.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true //nolint:gosec // wraparound is intended
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true //nolint:gosec // wraparound is intended
	case Char:
		return int64(n), true
	}
	return 0, false
}
