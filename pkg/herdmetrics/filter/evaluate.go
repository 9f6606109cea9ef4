package filter

import (
	"regexp"
	"strings"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

var (
	andSplit = regexp.MustCompile(`(?i)\s+AND\s+`)
	orSplit  = regexp.MustCompile(`(?i)\s+OR\s+`)

	isNullPattern    = regexp.MustCompile(`(?i)^(\w+)\s+IS\s+NULL$`)
	isNotNullPattern = regexp.MustCompile(`(?i)^(\w+)\s+IS\s+NOT\s+NULL$`)

	// Alternation is leftmost-first, so "=" is tried before the two-character
	// operators; it can never match at '<', '>' or '!', which keeps <=, >=,
	// <> and != intact.
	comparisonPattern = regexp.MustCompile(`^(\w+)\s*(=|!=|<>|<=|>=|<|>)\s*(.+)$`)
)

// Evaluate reports whether record satisfies the filter expression.
func Evaluate(record map[string]any, expr string) bool {
	if parts := andSplit.Split(expr, -1); len(parts) > 1 {
		for _, part := range parts {
			if !Evaluate(record, strings.TrimSpace(part)) {
				return false
			}
		}
		return true
	}

	if parts := orSplit.Split(expr, -1); len(parts) > 1 {
		for _, part := range parts {
			if Evaluate(record, strings.TrimSpace(part)) {
				return true
			}
		}
		return false
	}

	if m := isNullPattern.FindStringSubmatch(expr); m != nil {
		v, ok := record[m[1]]
		return !ok || value.FromAny(v).IsNull()
	}

	if m := isNotNullPattern.FindStringSubmatch(expr); m != nil {
		v, ok := record[m[1]]
		return ok && !value.FromAny(v).IsNull()
	}

	if m := comparisonPattern.FindStringSubmatch(expr); m != nil {
		field, op, literal := m[1], m[2], m[3]
		raw, ok := record[field]
		if !ok {
			return op == "!=" || op == "<>"
		}
		result, err := value.Compare(value.FromAny(raw), Resolve(literal), op)
		if err != nil {
			return false
		}
		return result
	}

	return false
}

// Collection returns the records that satisfy expr, in their original order.
func Collection(records []map[string]any, expr string) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		if Evaluate(record, expr) {
			out = append(out, record)
		}
	}
	return out
}
