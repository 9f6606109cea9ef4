package herdmetrics

import (
	"math"
	"sort"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

// Function is a built-in formula function. It receives fully evaluated
// arguments and the evaluation context, and always produces a value:
// runtime anomalies map to fallback values rather than errors.
type Function func(args []value.Value, env *Context) value.Value

// library maps upper-case function names to handlers. It is built once and
// never modified.
var library = map[string]Function{
	"IF":       fnIf,
	"AND":      fnAnd,
	"OR":       fnOr,
	"SUM":      fnSum,
	"COUNT":    fnCount,
	"COUNTIF":  fnCountIf,
	"AVERAGE":  fnAverage,
	"MIN":      fnMin,
	"MAX":      fnMax,
	"ABS":      fnAbs,
	"ROUND":    fnRound,
	"TODAY":    fnToday,
	"DATEDIFF": fnDateDiff,
	"PARAM":    fnParam,
}

func lookupFunction(name string) (Function, bool) {
	fn, ok := library[name]
	return fn, ok
}

// Functions returns the names of the functions that have a handler, sorted.
func Functions() []string {
	names := make([]string, 0, len(library))
	for name := range library {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// arg returns args[i], or null when the argument was not supplied.
func arg(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Null()
}

// elements returns the items of a leading list argument, or all arguments.
func elements(args []value.Value) []value.Value {
	if first := arg(args, 0); first.Kind() == value.KindList {
		return first.Items()
	}
	return args
}

func fnIf(args []value.Value, _ *Context) value.Value {
	if value.Truthy(arg(args, 0)) {
		return arg(args, 1)
	}
	return arg(args, 2)
}

func fnAnd(args []value.Value, _ *Context) value.Value {
	for _, a := range args {
		if !value.Truthy(a) {
			return value.Bool(false)
		}
	}
	return value.Bool(true)
}

func fnOr(args []value.Value, _ *Context) value.Value {
	for _, a := range args {
		if value.Truthy(a) {
			return value.Bool(true)
		}
	}
	return value.Bool(false)
}

func fnAbs(args []value.Value, _ *Context) value.Value {
	return value.Number(math.Abs(value.ToNumber(arg(args, 0))))
}

// fnRound rounds half away from zero at the requested number of decimals.
func fnRound(args []value.Value, _ *Context) value.Value {
	factor := math.Pow(10, value.ToNumber(arg(args, 1)))
	return value.Number(math.Round(value.ToNumber(arg(args, 0))*factor) / factor)
}

func fnParam(args []value.Value, env *Context) value.Value {
	return env.Param(value.ToText(arg(args, 0)))
}
