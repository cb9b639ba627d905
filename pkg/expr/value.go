// Package expr implements the DimScript expression language: variable
// substitution, the logical-word dialect, and a small evaluator over
// numbers, strings and booleans with JavaScript-like coercion rules.
package expr

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the dynamic type of a Value.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	default:
		return "unknown"
	}
}

// Value is a scalar script value. The zero Value is the number 0.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int returns a numeric Value holding n.
func Int(n int) Value { return Value{kind: KindNumber, num: float64(n)} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the dynamic type of v.
func (v Value) Kind() Kind { return v.kind }

// String returns the display text of v, as it appears after substitution
// or in a print line.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return FormatNumber(v.num)
	}
}

// Number converts v to a number. Strings that are not numeric yield NaN.
func (v Value) Number() float64 {
	switch v.kind {
	case KindString:
		return stringToNumber(v.str)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	default:
		return v.num
	}
}

// Truthy reports whether v counts as true in a condition.
// false, 0, NaN and the empty string are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString:
		return v.str != ""
	case KindBool:
		return v.b
	default:
		return v.num != 0 && !math.IsNaN(v.num)
	}
}

// StrictEqual compares kind and value (===).
func (v Value) StrictEqual(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	default:
		return v.num == o.num
	}
}

// LooseEqual compares with numeric coercion across kinds (==).
func (v Value) LooseEqual(o Value) bool {
	if v.kind == o.kind {
		return v.StrictEqual(o)
	}
	if v.kind == KindBool {
		return Number(v.Number()).LooseEqual(o)
	}
	if o.kind == KindBool {
		return v.LooseEqual(Number(o.Number()))
	}
	return v.Number() == o.Number()
}

// FormatNumber renders f the way the script language prints numbers:
// integral values without a fraction, NaN and Infinity by name.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	// 1e-07 -> 1e-7, 1e+21 stays
	mant, exp, ok := strings.Cut(s, "e")
	if !ok {
		return s
	}
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mant + "e" + sign + digits
}

// stringToNumber converts script text to a number. Surrounding whitespace
// is ignored and the empty string is 0.
func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	}
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") || strings.Contains(s, "_") {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// ParseInt reads a leading decimal integer from s, skipping leading
// whitespace and accepting an optional sign ("12px" is 12). Values beyond
// the int range saturate. ok is false when no digits are found.
func ParseInt(s string) (n int, ok bool) {
	s = strings.TrimSpace(s)
	i := 0
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		d := int(s[i] - '0')
		if n > (math.MaxInt-d)/10 {
			n = math.MaxInt
		} else {
			n = n*10 + d
		}
		i++
	}
	if i == start {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

// ParseNumber reads a leading decimal number from s ("1.5em" is 1.5).
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	seenDigit, seenDot := false, false
scan:
	for end < len(s) {
		c := s[end]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case c == '.' && !seenDot:
			seenDot = true
		case (c == '+' || c == '-') && end == 0:
		default:
			break scan
		}
		end++
	}
	if !seenDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
