package literal

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

// FormatValue renders a literal value using invariant culture conventions: booleans
// as True/False, floats in shortest round-trip form with an upper-case exponent.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case metadata.Char:
		return string(rune(x))
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case Decimal:
		return x.String()
	case *metadata.TypeNode:
		return x.FullName()
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return strings.Join(parts, ", ")
	}
	if n, ok := metadata.AsInt64(v); ok {
		switch u := v.(type) {
		case uint64:
			return strconv.FormatUint(u, 10)
		case uint:
			return strconv.FormatUint(uint64(u), 10)
		}
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// Text returns the escaped text written for a literal of the named type. A lone
// surrogate character is escaped by code unit.
func Text(typeName string, v any) string {
	charOrString := typeName == metadata.SystemChar || typeName == metadata.SystemString
	if c, ok := v.(metadata.Char); ok && utf16.IsSurrogate(rune(c)) {
		var b strings.Builder
		writeHexEscape(&b, rune(c), charOrString)
		return b.String()
	}
	return EscapeLiteral(FormatValue(v), charOrString)
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "∞"
	case math.IsInf(f, -1):
		return "-∞"
	}
	exp := strconv.FormatFloat(f, 'E', -1, bits)
	mant, e, _ := strings.Cut(exp, "E")
	n, _ := strconv.Atoi(e)
	if n > -5 && n < 15 {
		return strconv.FormatFloat(f, 'f', -1, bits)
	}
	sign := "+"
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.Itoa(n)
	if len(digits) < 2 {
		digits = "0" + digits
	}
	return mant + "E" + sign + digits
}
