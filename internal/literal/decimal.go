package literal

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

// MaxDecimalScale is the largest number of fractional digits a decimal can carry.
const MaxDecimalScale = 28

var errMalformedDecimal = errors.New("malformed decimal constant")

// Decimal is a 96-bit scaled integer: (-1)^Negative * (Hi:Mid:Lo) / 10^Scale.
type Decimal struct {
	Negative bool
	Scale    uint8
	Hi       uint32
	Mid      uint32
	Lo       uint32
}

func (d Decimal) magnitude() *big.Int {
	m := new(big.Int).SetUint64(uint64(d.Hi))
	m.Lsh(m, 32)
	m.Or(m, new(big.Int).SetUint64(uint64(d.Mid)))
	m.Lsh(m, 32)
	m.Or(m, new(big.Int).SetUint64(uint64(d.Lo)))
	return m
}

// String formats the value with exactly Scale fractional digits. Zero has no sign.
func (d Decimal) String() string {
	m := d.magnitude()
	digits := m.String()
	scale := int(d.Scale)
	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}
	text := digits
	if scale > 0 {
		text = digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
	}
	if d.Negative && m.Sign() != 0 {
		return "-" + text
	}
	return text
}

// ParseDecimal reads an invariant decimal string such as "-12.50".
func ParseDecimal(s string) (Decimal, error) {
	var d Decimal
	text := strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(text, "-"):
		d.Negative = true
		text = text[1:]
	case strings.HasPrefix(text, "+"):
		text = text[1:]
	}
	whole, frac, _ := strings.Cut(text, ".")
	digits := whole + frac
	if digits == "" || strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return Decimal{}, fmt.Errorf("invalid decimal %q", s)
	}
	if len(frac) > MaxDecimalScale {
		return Decimal{}, fmt.Errorf("decimal %q has more than %d fractional digits", s, MaxDecimalScale)
	}
	m, _ := new(big.Int).SetString(digits, 10)
	if m.BitLen() > 96 {
		return Decimal{}, fmt.Errorf("decimal %q is out of range", s)
	}
	d.Scale = uint8(len(frac)) //nolint:gosec // bounded by MaxDecimalScale
	mask := new(big.Int).SetUint64(0xFFFFFFFF)
	d.Lo = uint32(new(big.Int).And(m, mask).Uint64())
	d.Mid = uint32(new(big.Int).And(new(big.Int).Rsh(m, 32), mask).Uint64())
	d.Hi = uint32(new(big.Int).Rsh(m, 64).Uint64())
	return d, nil
}

// DecimalFromConstant rebuilds a decimal from the five positional arguments of a
// decimal constant attribute: scale, sign, hi, mid and low. The three 32-bit parts may
// be signed or unsigned. Any other payload yields an error.
func DecimalFromConstant(args []*metadata.Literal) (Decimal, error) {
	if len(args) != 5 {
		return Decimal{}, errMalformedDecimal
	}
	values := make([]int64, 5)
	for i, a := range args {
		if a == nil {
			return Decimal{}, errMalformedDecimal
		}
		v, ok := metadata.AsInt64(a.Value)
		if !ok {
			return Decimal{}, errMalformedDecimal
		}
		values[i] = v
	}
	scale, sign := values[0], values[1]
	if scale < 0 || scale > MaxDecimalScale || sign < 0 || sign > 0xFF {
		return Decimal{}, errMalformedDecimal
	}
	parts := make([]uint32, 3)
	for i, v := range values[2:] {
		if v < -1<<31 || v > 0xFFFFFFFF {
			return Decimal{}, errMalformedDecimal
		}
		parts[i] = uint32(v) //nolint:gosec // signed parts reinterpret as unsigned bits
	}
	return Decimal{
		Negative: sign != 0,
		Scale:    uint8(scale),
		Hi:       parts[0],
		Mid:      parts[1],
		Lo:       parts[2],
	}, nil
}

// ConstantArguments returns the scale, sign, hi, mid and low values a compiler stores
// for d.
func (d Decimal) ConstantArguments() []any {
	var sign uint8
	if d.Negative {
		sign = 1
	}
	return []any{d.Scale, sign, d.Hi, d.Mid, d.Lo}
}
