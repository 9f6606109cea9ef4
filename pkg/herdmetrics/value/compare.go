package value

import (
	"fmt"
	"math"
	"strings"
)

// Compare applies a comparison operator to two values.
// Returns an error for unknown operators.
//
// Equality operators (=, ==, !=, <>) are strict: values of different kinds
// are never equal. Ordering operators (<, >, <=, >=) compare text
// lexicographically when both sides are text and numerically otherwise.
func Compare(left, right Value, op string) (bool, error) {
	switch op {
	case "=", "==":
		return StrictEqual(left, right), nil
	case "!=", "<>":
		return !StrictEqual(left, right), nil
	case "<":
		c, ok := order(left, right)
		return ok && c < 0, nil
	case ">":
		c, ok := order(left, right)
		return ok && c > 0, nil
	case "<=":
		c, ok := order(left, right)
		return ok && c <= 0, nil
	case ">=":
		c, ok := order(left, right)
		return ok && c >= 0, nil
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

// StrictEqual reports whether a and b hold the same kind and the same value.
// NaN is never equal to anything and lists are never equal.
func StrictEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindNumber:
		return a.num == b.num
	case KindText:
		return a.text == b.text
	case KindBool:
		return a.b == b.b
	case KindDate:
		return a.t.Equal(b.t)
	default:
		return false
	}
}

// order returns the sign of a-b. ok is false when the values are not
// comparable, which makes every ordering operator false.
func order(a, b Value) (int, bool) {
	if a.kind == KindText && b.kind == KindText {
		return strings.Compare(a.text, b.text), true
	}

	l, r := ToNumber(a), ToNumber(b)
	if math.IsNaN(l) || math.IsNaN(r) {
		return 0, false
	}
	switch {
	case l < r:
		return -1, true
	case l > r:
		return 1, true
	default:
		return 0, true
	}
}
