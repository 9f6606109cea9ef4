package value

import (
	"math"
	"strings"
	"time"
)

// dateLayouts are tried in order when converting text to a date.
// Layouts without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02",
}

// ToDate coerces v to a point in time. Dates are returned as is, text is
// parsed with the supported layouts and numbers are Unix milliseconds.
// Null is the Unix epoch. ok is false when v has no date interpretation.
func ToDate(v Value) (time.Time, bool) {
	switch v.kind {
	case KindDate:
		return v.t, true
	case KindNull:
		return time.UnixMilli(0).UTC(), true
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(v.num)).UTC(), true
	case KindBool:
		if v.b {
			return time.UnixMilli(1).UTC(), true
		}
		return time.UnixMilli(0).UTC(), true
	case KindText:
		return ParseDate(v.text)
	default:
		return time.Time{}, false
	}
}

// ParseDate parses s with the supported date layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
