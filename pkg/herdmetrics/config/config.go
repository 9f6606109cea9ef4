package config

import (
	"maps"
	"time"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

// Workspace keys understood by the calculator and the command line.
const (
	KeyFarmID        = "farm_id"
	KeyReferenceDate = "reference_date"
	KeyWorkers       = "workers"
	KeyTimeout       = "timeout"
	KeyParameters    = "parameters"
	KeyAnimals       = "animals"
	KeyEvents        = "events"
	KeyMetrics       = "metrics"
	KeyCurrent       = "current"
)

// Config is a read-only view over a decoded YAML or JSON document.
// Accessors never fail: a missing key or a value of the wrong shape yields
// the supplied default.
type Config struct {
	data map[string]any
}

// New wraps data. A nil map behaves as an empty one.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// String returns the string at key.
func (c Config) String(key, defaultVal string) string {
	if s, ok := c.data[key].(string); ok {
		return s
	}
	return defaultVal
}

// Bool returns the boolean at key.
func (c Config) Bool(key string, defaultVal bool) bool {
	if b, ok := c.data[key].(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer at key. JSON numbers (float64) are accepted when
// they have no fractional part.
func (c Config) Int(key string, defaultVal int) int {
	switch val := c.data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case uint64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the number at key.
func (c Config) Float(key string, defaultVal float64) float64 {
	switch val := c.data[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	}
	return defaultVal
}

// Duration returns the duration at key. Strings use time.ParseDuration
// ("30s", "2m"); bare numbers are seconds.
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	switch val := c.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case float64:
		return time.Duration(val * float64(time.Second))
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case time.Duration:
		return val
	}
	return defaultVal
}

// Time returns the date at key. Strings accept the same layouts as formula
// date arguments ("2024-06-01", RFC 3339, ...). YAML timestamps decode to
// time.Time and are returned as is.
func (c Config) Time(key string, defaultVal time.Time) time.Time {
	switch val := c.data[key].(type) {
	case time.Time:
		return val
	case string:
		if t, ok := value.ParseDate(val); ok {
			return t
		}
	}
	return defaultVal
}

// StringSlice returns the list of strings at key. A list holding anything
// other than strings yields defaultVal.
func (c Config) StringSlice(key string, defaultVal []string) []string {
	switch val := c.data[key].(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			out = append(out, s)
		}
		return out
	}
	return defaultVal
}

// Map returns the mapping at key, or nil.
func (c Config) Map(key string) map[string]any {
	if m, ok := c.data[key].(map[string]any); ok {
		return m
	}
	return nil
}

// Section returns the mapping at key as a Config. A missing or non-mapping
// value gives an empty Config.
func (c Config) Section(key string) Config {
	return New(c.Map(key))
}

// Records returns the list of mappings at key, such as the animals or events
// of a workspace. Items that are not mappings are skipped.
func (c Config) Records(key string) []map[string]any {
	items, ok := c.data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// With returns a copy of c with key set to val. c is unchanged.
func (c Config) With(key string, val any) Config {
	data := maps.Clone(c.data)
	if data == nil {
		data = make(map[string]any, 1)
	}
	data[key] = val
	return Config{data: data}
}

// Any returns the raw value at key.
func (c Config) Any(key string, defaultVal any) any {
	if v, ok := c.data[key]; ok {
		return v
	}
	return defaultVal
}

// Has reports whether key is present.
func (c Config) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Raw returns the underlying map. Callers must not modify it.
func (c Config) Raw() map[string]any {
	return c.data
}
