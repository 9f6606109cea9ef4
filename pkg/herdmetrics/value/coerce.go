package value

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// decimalPattern is the decimal literal grammar accepted by ParseNumber.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber parses text the way numeric coercion does: surrounding
// whitespace is ignored, empty text is 0, and decimal, exponent, 0x/0o/0b and
// Infinity forms are accepted. It reports false for anything else.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}

	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}

	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			if strings.Contains(s, "_") {
				return math.NaN(), false
			}
			n, err := strconv.ParseUint(s, 0, 64)
			if err != nil {
				return math.NaN(), false
			}
			return float64(n), true
		}
	}

	if !decimalPattern.MatchString(s) {
		return math.NaN(), false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out of range still yields a signed infinity or zero.
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return f, true
		}
		return math.NaN(), false
	}
	return f, true
}

// ToNumber coerces v to a number. Null is 0, booleans are 0 or 1, text is
// parsed with ParseNumber (NaN when it does not parse), dates are Unix
// milliseconds and lists are NaN.
func ToNumber(v Value) float64 {
	switch v.kind {
	case KindNull:
		return 0
	case KindNumber:
		return v.num
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindText:
		f, _ := ParseNumber(v.text)
		return f
	case KindDate:
		return float64(v.t.UnixMilli())
	default:
		return math.NaN()
	}
}

// ToText renders v as text.
func ToText(v Value) string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindNumber:
		return FormatNumber(v.num)
	case KindText:
		return v.text
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindDate:
		return v.t.Format(time.RFC3339)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			if item.kind != KindNull {
				parts[i] = ToText(item)
			}
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// FormatNumber renders f in its shortest round-trip decimal form, switching
// to exponent notation at or above 1e21 and below 1e-6.
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
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Truthy reports whether v counts as true in a condition.
// Null, 0, NaN, "" and false are false; everything else is true.
func Truthy(v Value) bool {
	switch v.kind {
	case KindNull:
		return false
	case KindNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case KindText:
		return v.text != ""
	case KindBool:
		return v.b
	default:
		return true
	}
}
