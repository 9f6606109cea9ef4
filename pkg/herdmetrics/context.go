package herdmetrics

import (
	"strings"
	"time"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

// Record is one plain key-value row, such as an animal or an event.
type Record = map[string]any

// Collection names addressable from COUNT and AVERAGE.
const (
	CollectionAnimals = "animals"
	CollectionEvents  = "events"
)

// Context is the read-only data a formula is evaluated against.
// The engine never modifies it.
type Context struct {
	// Animals is the "animals" collection.
	Animals []Record
	// Events is the "events" collection.
	Events []Record
	// Parameters holds farm parameters read by PARAM.
	Parameters map[string]any
	// Current is the record bare field names resolve against.
	Current Record
	// ReferenceDate is returned by TODAY. Zero means the time of evaluation.
	ReferenceDate time.Time
}

// Collection returns the named collection. Names are case-insensitive.
// ok is false for unknown names and for collections that were not supplied.
func (c *Context) Collection(name string) ([]Record, bool) {
	var records []Record
	switch strings.ToLower(name) {
	case CollectionAnimals:
		records = c.Animals
	case CollectionEvents:
		records = c.Events
	}
	return records, records != nil
}

// Field resolves a bare field name against the current record.
func (c *Context) Field(name string) value.Value {
	if c.Current == nil {
		return value.Null()
	}
	v, ok := c.Current[name]
	if !ok {
		return value.Null()
	}
	return value.FromAny(v)
}

// Param looks up a parameter by name.
func (c *Context) Param(name string) value.Value {
	if c.Parameters == nil {
		return value.Null()
	}
	v, ok := c.Parameters[name]
	if !ok {
		return value.Null()
	}
	return value.FromAny(v)
}

// Today returns the reference date, or the current time when none is set.
func (c *Context) Today() time.Time {
	if c.ReferenceDate.IsZero() {
		return time.Now()
	}
	return c.ReferenceDate
}
