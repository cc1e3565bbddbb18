package loader

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/mrefbuilder/internal/literal"
	"git.home.luguber.info/inful/mrefbuilder/internal/logfields"
	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

const compilerServices = "System.Runtime.CompilerServices."

// annotations are attribute shorthands a description may use instead of spelling out
// the compiler attributes.
type annotations struct {
	nullable   *nullableDoc
	context    *int
	tupleNames []string
	paramArray bool
	extension  bool
	extra      func(existing []*metadata.Attribute) ([]*metadata.Attribute, error)
}

// decorate schedules the attributes of a declaration for the value phase, when every
// type and enumeration constant they may refer to exists.
func (s *session) decorate(dst *[]*metadata.Attribute, docs []attributeDoc, sc scope, ann annotations) {
	s.values = append(s.values, func() error {
		attrs, err := s.attributes(docs, sc)
		if err != nil {
			return err
		}
		add := func(name string, args ...*metadata.Literal) error {
			a, err := s.syntheticAttribute(name, sc, args...)
			if err != nil {
				return err
			}
			attrs = append(attrs, a)
			return nil
		}
		if ann.paramArray {
			if err := add("System.ParamArrayAttribute"); err != nil {
				return err
			}
		}
		if ann.extension {
			if err := add(compilerServices + "ExtensionAttribute"); err != nil {
				return err
			}
		}
		if ann.nullable != nil && len(ann.nullable.States) > 0 {
			if err := add(compilerServices+"NullableAttribute", s.nullableBytes(ann.nullable.States, sc)); err != nil {
				return err
			}
		}
		if ann.context != nil {
			if err := add(compilerServices+"NullableContextAttribute", s.typedLiteral("System.Byte", uint8(*ann.context), sc)); err != nil { //nolint:gosec // annotation bytes are 0..2
				return err
			}
		}
		if len(ann.tupleNames) > 0 {
			names := make([]any, len(ann.tupleNames))
			for i, n := range ann.tupleNames {
				if n != "" && n != "~" {
					names[i] = n
				}
			}
			if err := add(compilerServices+"TupleElementNamesAttribute", s.typedLiteral("System.String[]", names, sc)); err != nil {
				return err
			}
		}
		if ann.extra != nil {
			more, err := ann.extra(attrs)
			if err != nil {
				return err
			}
			attrs = append(attrs, more...)
		}
		*dst = append(*dst, attrs...)
		return nil
	})
}

func (s *session) nullableBytes(states []int, sc scope) *metadata.Literal {
	if len(states) == 1 {
		return s.typedLiteral("System.Byte", uint8(states[0]), sc) //nolint:gosec // annotation bytes are 0..2
	}
	values := make([]any, len(states))
	for i, b := range states {
		values[i] = uint8(b) //nolint:gosec // annotation bytes are 0..2
	}
	return s.typedLiteral("System.Byte[]", values, sc)
}

// typedLiteral builds a literal of a core type. The core library always defines the
// types used here.
func (s *session) typedLiteral(typeRef string, v any, sc scope) *metadata.Literal {
	t, err := s.resolve(typeRef, sc)
	if err != nil {
		s.logger.Warn("Core type missing for literal", logfields.Name(typeRef), logfields.Error(err))
	}
	return &metadata.Literal{Type: t, Value: v}
}

func (s *session) stringLiteral(v string, sc scope) *metadata.Literal {
	return s.typedLiteral(metadata.SystemString, v, sc)
}

func (s *session) syntheticAttribute(fullName string, sc scope, args ...*metadata.Literal) (*metadata.Attribute, error) {
	t := s.lookup([]string{fullName}, sc.file)
	if t == nil {
		return nil, s.fail(sc.file, fullName+" is not available", nil)
	}
	a := &metadata.Attribute{Type: t}
	for _, arg := range args {
		a.Expressions = append(a.Expressions, arg)
	}
	return a, nil
}

func (s *session) decimalConstantAttribute(d literal.Decimal, sc scope) (*metadata.Attribute, error) {
	args := d.ConstantArguments()
	types := []string{"System.Byte", "System.Byte", "System.UInt32", "System.UInt32", "System.UInt32"}
	lits := make([]*metadata.Literal, len(args))
	for i, v := range args {
		lits[i] = s.typedLiteral(types[i], v, sc)
	}
	return s.syntheticAttribute(compilerServices+"DecimalConstantAttribute", sc, lits...)
}

// attributes decodes custom attribute applications. The "Attribute" suffix of the
// type name may be left out.
func (s *session) attributes(docs []attributeDoc, sc scope) ([]*metadata.Attribute, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]*metadata.Attribute, 0, len(docs))
	for i := range docs {
		d := &docs[i]
		t, err := s.resolve(d.Type, sc)
		if err != nil && !strings.HasSuffix(d.Type, "Attribute") {
			if alt, altErr := s.resolve(d.Type+"Attribute", sc); altErr == nil {
				t, err = alt, nil
			}
		}
		if err != nil {
			return nil, err
		}
		a := &metadata.Attribute{Type: t}
		for j := range d.Args {
			lit, err := s.argument(&d.Args[j], sc)
			if err != nil {
				return nil, s.fail(sc.file, fmt.Sprintf("argument %d of %s", j, t.FullName()), err)
			}
			a.Expressions = append(a.Expressions, lit)
		}
		if d.Named.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(d.Named.Content); j += 2 {
				name := d.Named.Content[j].Value
				lit, err := s.argument(d.Named.Content[j+1], sc)
				if err != nil {
					return nil, s.fail(sc.file, fmt.Sprintf("named argument %s of %s", name, t.FullName()), err)
				}
				a.Expressions = append(a.Expressions, &metadata.NamedArgument{Name: name, Value: lit})
			}
		} else if d.Named.Kind != 0 {
			return nil, s.fail(sc.file, "named arguments of "+t.FullName()+" must be a mapping", nil)
		}
		out = append(out, a)
	}
	return out, nil
}

// argument decodes an attribute argument: a plain scalar typed by its YAML tag,
// {type: T, value: V} or {typeof: T}.
func (s *session) argument(n *yaml.Node, sc scope) (*metadata.Literal, error) {
	if n.Kind == yaml.MappingNode {
		fields := make(map[string]*yaml.Node, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			fields[n.Content[i].Value] = n.Content[i+1]
		}
		if ref, ok := fields["typeof"]; ok {
			t, err := s.resolve(ref.Value, sc)
			if err != nil {
				return nil, err
			}
			return s.typedLiteral(metadata.SystemType, t, sc), nil
		}
		ref, ok := fields["type"]
		if !ok {
			return nil, fmt.Errorf("line %d: argument mapping needs a type or typeof key", n.Line)
		}
		t, err := s.resolve(ref.Value, sc)
		if err != nil {
			return nil, err
		}
		value, ok := fields["value"]
		if !ok {
			return nil, fmt.Errorf("line %d: argument of type %s has no value", n.Line, t.FullName())
		}
		v, err := s.decodeValue(value, t, sc)
		if err != nil {
			return nil, err
		}
		return &metadata.Literal{Type: t, Value: v}, nil
	}
	return s.infer(n, sc)
}

// infer types an untyped scalar or sequence from its YAML tag.
func (s *session) infer(n *yaml.Node, sc scope) (*metadata.Literal, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return s.typedLiteral(metadata.SystemObject, nil, sc), nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, err
			}
			return s.typedLiteral("System.Boolean", b, sc), nil
		case "!!int":
			v, err := strconv.ParseInt(n.Value, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n.Line, err)
			}
			if v >= math.MinInt32 && v <= math.MaxInt32 {
				return s.typedLiteral(metadata.SystemInt32, int32(v), sc), nil
			}
			return s.typedLiteral("System.Int64", v, sc), nil
		case "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return nil, err
			}
			return s.typedLiteral("System.Double", f, sc), nil
		default:
			return s.typedLiteral(metadata.SystemString, n.Value, sc), nil
		}
	case yaml.SequenceNode:
		values := make([]any, len(n.Content))
		for i, item := range n.Content {
			lit, err := s.infer(item, sc)
			if err != nil {
				return nil, err
			}
			values[i] = lit.Value
		}
		return s.typedLiteral("System.Object[]", values, sc), nil
	}
	return nil, fmt.Errorf("line %d: unsupported argument", n.Line)
}

// defaultValue decodes a parameter default. By-reference parameters take values of
// their element type; null defaults are typed as System.Object.
func (s *session) defaultValue(n *yaml.Node, t *metadata.TypeNode, sc scope) (*metadata.Literal, error) {
	if t.Kind == metadata.KindReference {
		t = t.ElementType
	}
	if isNull(n) {
		return s.typedLiteral(metadata.SystemObject, nil, sc), nil
	}
	v, err := s.decodeValue(n, t, sc)
	if err != nil {
		return nil, err
	}
	return &metadata.Literal{Type: t, Value: v}, nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

// decodeValue converts a YAML node to the Go representation of a literal of type t.
func (s *session) decodeValue(n *yaml.Node, t *metadata.TypeNode, sc scope) (any, error) {
	for t.Kind == metadata.KindOptionalModifier || t.Kind == metadata.KindRequiredModifier {
		t = t.ElementType
	}
	if isNull(n) {
		return nil, nil
	}
	if t.IsNullableValueType() {
		return s.decodeValue(n, t.TemplateArguments[0], sc)
	}

	switch t.Kind {
	case metadata.KindEnum:
		v, err := s.enumValue(n, t, nil)
		if err != nil {
			return nil, err
		}
		return convertInteger(t.UnderlyingType.FullName(), v)
	case metadata.KindArray:
		if n.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("line %d: %s needs a list", n.Line, t.FullName())
		}
		values := make([]any, len(n.Content))
		for i, item := range n.Content {
			v, err := s.decodeValue(item, t.ElementType, sc)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return values, nil
	}

	if n.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("line %d: %s needs a scalar value", n.Line, t.FullName())
	}
	name := t.FullName()
	switch name {
	case "System.Boolean":
		var b bool
		err := n.Decode(&b)
		return b, err
	case metadata.SystemString:
		return n.Value, nil
	case metadata.SystemChar:
		return decodeChar(n)
	case "System.Single":
		var f float32
		err := n.Decode(&f)
		return f, err
	case "System.Double":
		var f float64
		err := n.Decode(&f)
		return f, err
	case metadata.SystemDecimal:
		return literal.ParseDecimal(n.Value)
	case metadata.SystemType:
		return s.resolve(n.Value, sc)
	case metadata.SystemObject:
		lit, err := s.infer(n, sc)
		if err != nil {
			return nil, err
		}
		return lit.Value, nil
	}
	if _, ok := integerBits[name]; ok {
		return parseInteger(name, n.Value)
	}
	return nil, fmt.Errorf("line %d: cannot write a literal of type %s", n.Line, name)
}

func decodeChar(n *yaml.Node) (any, error) {
	if n.ShortTag() == "!!int" {
		v, err := strconv.ParseUint(n.Value, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return metadata.Char(v), nil
	}
	units := utf16.Encode([]rune(n.Value))
	if len(units) != 1 {
		return nil, fmt.Errorf("line %d: %q is not a single UTF-16 character", n.Line, n.Value)
	}
	return metadata.Char(units[0]), nil
}

// enumValue reads an enumeration value: an integer or field names joined by '|'.
// Names resolve against known, or against the type's fields when known is nil.
func (s *session) enumValue(n *yaml.Node, t *metadata.TypeNode, known []*metadata.Field) (int64, error) {
	if n.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("line %d: enumeration value must be a scalar", n.Line)
	}
	if n.ShortTag() == "!!int" {
		if v, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return v, nil
		}
		v, err := strconv.ParseUint(n.Value, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return int64(v), nil //nolint:gosec // unsigned 64-bit enumerations wrap
	}
	if known == nil {
		for _, m := range t.DeclaredMembers {
			if f, ok := m.(*metadata.Field); ok {
				known = append(known, f)
			}
		}
	}
	var v int64
	for _, part := range strings.Split(n.Value, "|") {
		name := strings.TrimSpace(part)
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		found := false
		for _, f := range known {
			if f.Name != name || f.DefaultValue == nil {
				continue
			}
			fv, ok := metadata.AsInt64(f.DefaultValue.Value)
			if !ok {
				break
			}
			v |= fv
			found = true
			break
		}
		if !found {
			return 0, fmt.Errorf("line %d: %s has no field %q", n.Line, t.FullName(), name)
		}
	}
	return v, nil
}

var integerBits = map[string]struct {
	bits     int
	unsigned bool
}{
	"System.SByte":  {8, false},
	"System.Byte":   {8, true},
	"System.Int16":  {16, false},
	"System.UInt16": {16, true},
	"System.Int32":  {32, false},
	"System.UInt32": {32, true},
	"System.Int64":  {64, false},
	"System.UInt64": {64, true},
}

func parseInteger(typeName, text string) (any, error) {
	kind := integerBits[typeName]
	if kind.unsigned {
		v, err := strconv.ParseUint(text, 0, kind.bits)
		if err != nil {
			return nil, err
		}
		return convertInteger(typeName, int64(v)) //nolint:gosec // reinterpreted below
	}
	v, err := strconv.ParseInt(text, 0, kind.bits)
	if err != nil {
		return nil, err
	}
	return convertInteger(typeName, v)
}

// convertInteger returns n as the Go integer type matching the named integral type.
// Values outside the type's range wrap, as enumeration arithmetic does.
func convertInteger(typeName string, n int64) (any, error) {
	switch typeName {
	case "System.SByte":
		return int8(n), nil //nolint:gosec
	case "System.Byte":
		return uint8(n), nil //nolint:gosec
	case "System.Int16":
		return int16(n), nil //nolint:gosec
	case "System.UInt16":
		return uint16(n), nil //nolint:gosec
	case "System.Int32":
		return int32(n), nil //nolint:gosec
	case "System.UInt32":
		return uint32(n), nil //nolint:gosec
	case "System.Int64":
		return n, nil
	case "System.UInt64":
		return uint64(n), nil //nolint:gosec
	case metadata.SystemChar:
		return metadata.Char(n), nil //nolint:gosec
	case "System.Boolean":
		return n != 0, nil
	}
	return nil, fmt.Errorf("%s is not an integral type", typeName)
}
