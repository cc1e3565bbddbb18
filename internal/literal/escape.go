package literal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

var namedEscapes = map[rune]string{
	'\a': `\a`,
	'\b': `\b`,
	'\f': `\f`,
	'\n': `\n`,
	'\r': `\r`,
	'\t': `\t`,
	'\v': `\v`,
}

// IsInvalidLiteralChar reports whether r cannot be written verbatim as literal text.
// All C0 controls are included so whitespace survives attribute normalization.
func IsInvalidLiteralChar(r rune) bool {
	return r < 0x20 || (r > 0xd7ff && r < 0xe000) || r == 0xfffe || r == 0xffff
}

// EscapeLiteral replaces characters that cannot appear in XML text. Named control
// characters use their C escape; anything else becomes its four-digit upper-case hex
// code, prefixed with \x when the literal is a character or string. Bytes that are not
// valid UTF-8 are escaped by value. Once a character or string literal is escaped, its
// backslashes are doubled so UnescapeLiteral restores the text exactly; text that needs
// no escaping is returned unchanged.
func EscapeLiteral(text string, charOrString bool) string {
	if !needsEscape(text) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + 16)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			writeHexEscape(&b, rune(text[i]), charOrString)
		case r == '\\' && charOrString:
			b.WriteString(`\\`)
		case IsInvalidLiteralChar(r):
			if named, ok := namedEscapes[r]; ok {
				b.WriteString(named)
			} else {
				writeHexEscape(&b, r, charOrString)
			}
		default:
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

func needsEscape(text string) bool {
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if (r == utf8.RuneError && size == 1) || IsInvalidLiteralChar(r) {
			return true
		}
		i += size
	}
	return false
}

func writeHexEscape(b *strings.Builder, r rune, prefixed bool) {
	if prefixed {
		b.WriteString(`\x`)
	}
	fmt.Fprintf(b, "%04X", r)
}

// UnescapeLiteral reverses EscapeLiteral for character and string literals that
// needed escaping. Text written unchanged keeps its backslashes verbatim, so decoding
// it is ambiguous.
func UnescapeLiteral(text string) (string, error) {
	if !strings.Contains(text, `\`) {
		return text, nil
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' || i+1 >= len(text) {
			b.WriteByte(c)
			continue
		}
		next := text[i+1]
		if next == '\\' {
			b.WriteByte('\\')
			i++
			continue
		}
		if next == 'x' {
			if i+6 > len(text) {
				return "", fmt.Errorf("truncated escape at offset %d", i)
			}
			v, err := strconv.ParseUint(text[i+2:i+6], 16, 16)
			if err != nil {
				return "", fmt.Errorf("invalid escape %q: %w", text[i:i+6], err)
			}
			b.WriteRune(rune(v))
			i += 5
			continue
		}
		found := false
		for r, named := range namedEscapes {
			if named[1] == next {
				b.WriteRune(r)
				found = true
				break
			}
		}
		if !found {
			b.WriteByte(c)
			continue
		}
		i++
	}
	return b.String(), nil
}

// ValidXMLValue makes an identifier or attribute value safe to write as XML. Characters
// outside the XML 1.0 character range are written as _xHHHH_ rather than dropped.
func ValidXMLValue(s string) string {
	clean := true
	for _, r := range s {
		if !isXMLChar(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			fmt.Fprintf(&b, "_x%04X_", s[i])
		case !isXMLChar(r):
			fmt.Fprintf(&b, "_x%04X_", r)
		default:
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

func isXMLChar(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return true
	case r < 0x20:
		return false
	case r <= 0xd7ff:
		return true
	case r >= 0xe000 && r <= 0xfffd:
		return true
	case r >= 0x10000 && r <= 0x10ffff:
		return true
	}
	return false
}
