package literal

import (
	"bytes"
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
	"git.home.luguber.info/inful/mrefbuilder/internal/xmlwriter"
)

func flagsEnum(fields ...any) *metadata.TypeNode {
	enum := &metadata.TypeNode{MemberInfo: metadata.MemberInfo{Name: "Access"}, Kind: metadata.KindEnum, Namespace: "Contoso"}
	for i := 0; i < len(fields); i += 2 {
		enum.DeclaredMembers = append(enum.DeclaredMembers, &metadata.Field{
			MemberInfo:   metadata.MemberInfo{Name: fields[i].(string), DeclaringType: enum, Static: true},
			Literal:      true,
			Type:         enum,
			DefaultValue: &metadata.Literal{Type: enum, Value: int32(fields[i+1].(int))},
		})
	}
	return enum
}

func names(fields []*metadata.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

func TestAppliedFields(t *testing.T) {
	enum := flagsEnum("None", 0, "Read", 1, "Write", 2, "ReadWrite", 3, "Execute", 4)

	tests := []struct {
		name  string
		value int64
		want  []string
	}{
		{"exact match wins", 3, []string{"ReadWrite"}},
		{"zero matches its field", 0, []string{"None"}},
		{"subsets reduced by later supersets", 7, []string{"ReadWrite", "Execute"}},
		{"single bit", 4, []string{"Execute"}},
		{"unknown bits yield nothing", 8, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, names(AppliedFields(enum, tt.value)))
		})
	}
}

func TestAppliedFields_DeclarationOrderMatters(t *testing.T) {
	// The combined flag is declared first, so no later field covers it and the
	// single-bit fields are not covered by anything declared after them.
	enum := flagsEnum("ReadWrite", 3, "Read", 1, "Write", 2, "Execute", 4)
	require.Equal(t, []string{"ReadWrite", "Read", "Write", "Execute"}, names(AppliedFields(enum, 7)))
}

func TestAppliedFields_UnsignedValuesWrap(t *testing.T) {
	enum := flagsEnum("All", -1)
	v, _ := metadata.AsInt64(uint64(0xFFFFFFFFFFFFFFFF))
	require.Equal(t, []string{"All"}, names(AppliedFields(enum, v)))
}

func TestParseDecimalRoundTrip(t *testing.T) {
	for _, text := range []string{"0", "123.45", "-0.001", "79228162514264337593543950335", "1.000", "-7.9228162514264337593543950335"} {
		d, err := ParseDecimal(text)
		require.NoError(t, err, text)

		args := d.ConstantArguments()
		lits := make([]*metadata.Literal, len(args))
		for i, a := range args {
			lits[i] = &metadata.Literal{Value: a}
		}
		back, err := DecimalFromConstant(lits)
		require.NoError(t, err, text)
		require.Equal(t, text, back.String())
	}
}

func TestParseDecimal_Errors(t *testing.T) {
	for _, text := range []string{"", "1e5", "79228162514264337593543950336", "0.00000000000000000000000000001", "abc"} {
		_, err := ParseDecimal(text)
		require.Error(t, err, text)
	}
}

func TestDecimalFromConstant(t *testing.T) {
	lit := func(v any) *metadata.Literal { return &metadata.Literal{Value: v} }

	d, err := DecimalFromConstant([]*metadata.Literal{lit(uint8(2)), lit(uint8(1)), lit(int32(0)), lit(int32(0)), lit(int32(12345))})
	require.NoError(t, err)
	require.Equal(t, "-123.45", d.String())

	d, err = DecimalFromConstant([]*metadata.Literal{lit(uint8(0)), lit(uint8(0)), lit(int32(0)), lit(int32(0)), lit(int32(-1))})
	require.NoError(t, err)
	require.Equal(t, "4294967295", d.String())

	d, err = DecimalFromConstant([]*metadata.Literal{lit(uint8(0)), lit(uint8(0)), lit(uint32(0)), lit(uint32(1)), lit(uint32(0))})
	require.NoError(t, err)
	require.Equal(t, "4294967296", d.String())

	_, err = DecimalFromConstant([]*metadata.Literal{lit(uint8(0)), lit(uint8(0)), lit(int32(0)), lit(int32(0))})
	require.Error(t, err)
	_, err = DecimalFromConstant([]*metadata.Literal{lit(uint8(29)), lit(uint8(0)), lit(int32(0)), lit(int32(0)), lit(int32(1))})
	require.Error(t, err)
	_, err = DecimalFromConstant([]*metadata.Literal{lit("2"), lit(uint8(0)), lit(int32(0)), lit(int32(0)), lit(int32(1))})
	require.Error(t, err)
}

func TestEscapeLiteral(t *testing.T) {
	tests := []struct {
		name         string
		in           string
		charOrString bool
		want         string
	}{
		{"plain text untouched", "héllo ✓", true, "héllo ✓"},
		{"named escapes", "a\tb\nc\r\a\b\f\v", true, `a\tb\nc\r\a\b\f\v`},
		{"hex for strings", "x\x01y\x1f", true, `x\x0001y\x001F`},
		{"bare hex for other types", "\x01", false, "0001"},
		{"non characters", "\uFFFE\uFFFF", true, `\xFFFE\xFFFF`},
		{"supplementary characters kept", "😀", true, "😀"},
		{"invalid utf8 byte", "a\xffb", true, `a\x00FFb`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, EscapeLiteral(tt.in, tt.charOrString))
		})
	}
}

func TestUnescapeLiteral_RoundTrip(t *testing.T) {
	for _, in := range []string{"line1\nline2", "\x00\x01\x1f tail", "\a\b\f\v\t\r", "no escapes"} {
		out, err := UnescapeLiteral(EscapeLiteral(in, true))
		require.NoError(t, err)
		require.Equal(t, in, out)
	}

	_, err := UnescapeLiteral(`\x00`)
	require.Error(t, err)
}

func TestEscapeLiteral_SurvivesXML(t *testing.T) {
	values := []string{
		"bell\a and nul\x00",
		"it's\tdone",
		`C:\temp` + "\n" + `\new`,
		`trailing \` + "\x1f",
		"\x01'\\'\x02",
	}
	for _, want := range values {
		var buf bytes.Buffer
		w := xmlwriter.New(&buf)
		w.WriteStartElement("argument")
		w.WriteElementString("value", EscapeLiteral(want, true))
		w.WriteEndElement()
		require.NoError(t, w.Close())

		var parsed struct {
			Value string `xml:"value"`
		}
		require.NoError(t, xml.Unmarshal(buf.Bytes(), &parsed), buf.String())

		got, err := UnescapeLiteral(parsed.Value)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestEscapeLiteral_BackslashesOnlyDoubledWhenEscaping(t *testing.T) {
	require.Equal(t, `C:\temp`, EscapeLiteral(`C:\temp`, true))
	require.Equal(t, `C:\\temp\n`, EscapeLiteral("C:\\temp\n", true))
}

func TestText(t *testing.T) {
	require.Equal(t, `\xD83D`, Text(metadata.SystemChar, metadata.Char(0xD83D)))
	require.Equal(t, "A", Text(metadata.SystemChar, metadata.Char('A')))
	require.Equal(t, `\a`, Text(metadata.SystemChar, metadata.Char(7)))
	require.Equal(t, "100", Text(metadata.SystemInt32, int32(100)))
}

func TestValidXMLValue(t *testing.T) {
	require.Equal(t, "T:Contoso.Widget", ValidXMLValue("T:Contoso.Widget"))
	require.Equal(t, "T:Bad_x0001_Name", ValidXMLValue("T:Bad\x01Name"))
	require.Equal(t, "M:A.B(System.String)\t", ValidXMLValue("M:A.B(System.String)\t"))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{true, "True"},
		{false, "False"},
		{int8(-5), "-5"},
		{uint64(18446744073709551615), "18446744073709551615"},
		{int64(-9223372036854775808), "-9223372036854775808"},
		{0.1, "0.1"},
		{1.5, "1.5"},
		{1e20, "1E+20"},
		{1e-5, "1E-05"},
		{1e14, "100000000000000"},
		{float32(0.25), "0.25"},
		{"text", "text"},
		{[]any{uint8(1), uint8(2)}, "1, 2"},
		{nil, ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatValue(tt.in), "%#v", tt.in)
	}
}
