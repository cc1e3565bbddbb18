package loader

import (
	"fmt"
	"strings"
)

// typeExpr is a parsed type reference such as
// "System.Collections.Generic.Dictionary`2[System.String,System.Int32[]]&".
type typeExpr struct {
	name     string
	args     []*typeExpr
	suffixes []typeSuffix
}

type suffixKind int

const (
	suffixArray suffixKind = iota
	suffixPointer
	suffixReference
	suffixNullable
	suffixModifier
)

type typeSuffix struct {
	kind     suffixKind
	rank     int
	modifier *typeExpr
	required bool
}

func (e *typeExpr) String() string {
	var b strings.Builder
	b.WriteString(e.name)
	if len(e.args) > 0 {
		b.WriteByte('[')
		for i, a := range e.args {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(a.String())
		}
		b.WriteByte(']')
	}
	for _, s := range e.suffixes {
		switch s.kind {
		case suffixArray:
			b.WriteString("[" + strings.Repeat(",", s.rank-1) + "]")
		case suffixPointer:
			b.WriteByte('*')
		case suffixReference:
			b.WriteByte('&')
		case suffixNullable:
			b.WriteByte('?')
		case suffixModifier:
			if s.required {
				b.WriteString(" modreq(")
			} else {
				b.WriteString(" modopt(")
			}
			b.WriteString(s.modifier.String())
			b.WriteByte(')')
		}
	}
	return b.String()
}

type typeParser struct {
	src string
	pos int
}

func parseTypeRef(src string) (*typeExpr, error) {
	p := &typeParser{src: strings.TrimSpace(src)}
	if p.src == "" {
		return nil, fmt.Errorf("empty type reference")
	}
	e, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("type reference %q: %w", src, err)
	}
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("type reference %q: unexpected %q at offset %d", src, p.src[p.pos:], p.pos)
	}
	return e, nil
}

func (p *typeParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *typeParser) skipSpaces() {
	for p.peek() == ' ' {
		p.pos++
	}
}

func (p *typeParser) parse() (*typeExpr, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("[],*&?() ", rune(p.src[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return nil, fmt.Errorf("expected type name at offset %d", start)
	}
	e := &typeExpr{name: p.src[start:p.pos]}

	if p.peek() == '[' && p.pos+1 < len(p.src) && p.src[p.pos+1] != ']' && p.src[p.pos+1] != ',' {
		p.pos++
		for {
			arg, err := p.parse()
			if err != nil {
				return nil, err
			}
			e.args = append(e.args, arg)
			p.skipSpaces()
			switch p.peek() {
			case ',':
				p.pos++
				continue
			case ']':
				p.pos++
			default:
				return nil, fmt.Errorf("unterminated generic argument list at offset %d", p.pos)
			}
			break
		}
	}
	return e, p.parseSuffixes(e)
}

func (p *typeParser) parseSuffixes(e *typeExpr) error {
	for {
		save := p.pos
		p.skipSpaces()
		switch {
		case p.peek() == '[':
			p.pos++
			rank := 1
			for p.peek() == ',' {
				rank++
				p.pos++
			}
			if p.peek() != ']' {
				return fmt.Errorf("unterminated array rank at offset %d", p.pos)
			}
			p.pos++
			e.suffixes = append(e.suffixes, typeSuffix{kind: suffixArray, rank: rank})
		case p.peek() == '*':
			p.pos++
			e.suffixes = append(e.suffixes, typeSuffix{kind: suffixPointer})
		case p.peek() == '&':
			p.pos++
			e.suffixes = append(e.suffixes, typeSuffix{kind: suffixReference})
		case p.peek() == '?':
			p.pos++
			e.suffixes = append(e.suffixes, typeSuffix{kind: suffixNullable})
		case strings.HasPrefix(p.src[p.pos:], "modreq("), strings.HasPrefix(p.src[p.pos:], "modopt("):
			required := strings.HasPrefix(p.src[p.pos:], "modreq(")
			p.pos += len("modreq(")
			mod, err := p.parse()
			if err != nil {
				return err
			}
			p.skipSpaces()
			if p.peek() != ')' {
				return fmt.Errorf("unterminated modifier at offset %d", p.pos)
			}
			p.pos++
			e.suffixes = append(e.suffixes, typeSuffix{kind: suffixModifier, modifier: mod, required: required})
		default:
			p.pos = save
			return nil
		}
	}
}

// keywordAliases maps C# keywords to the core library types they name.
var keywordAliases = map[string]string{
	"object":  "System.Object",
	"string":  "System.String",
	"bool":    "System.Boolean",
	"char":    "System.Char",
	"sbyte":   "System.SByte",
	"byte":    "System.Byte",
	"short":   "System.Int16",
	"ushort":  "System.UInt16",
	"int":     "System.Int32",
	"uint":    "System.UInt32",
	"long":    "System.Int64",
	"ulong":   "System.UInt64",
	"nint":    "System.IntPtr",
	"nuint":   "System.UIntPtr",
	"float":   "System.Single",
	"double":  "System.Double",
	"decimal": "System.Decimal",
	"void":    "System.Void",
}
