package filter

import (
	"strings"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

// Resolve parses the right-hand side of a filter comparison.
// It handles quoted strings, booleans and numbers; anything else is taken
// as literal text.
func Resolve(s string) value.Value {
	s = strings.TrimSpace(s)

	// Check for quoted string (single or double quotes)
	if (strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'")) ||
		(strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"")) {
		if len(s) < 2 {
			return value.Text("")
		}
		return value.Text(s[1 : len(s)-1])
	}

	switch strings.ToLower(s) {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	}

	if f, ok := value.ParseNumber(s); ok {
		return value.Number(f)
	}

	return value.Text(s)
}
