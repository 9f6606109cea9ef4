package herdmetrics

import (
	"math"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/filter"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

// fnSum adds the numeric coercion of every element; values that do not
// coerce count as 0.
func fnSum(args []value.Value, _ *Context) value.Value {
	total := 0.0
	for _, v := range elements(args) {
		if f := value.ToNumber(v); !math.IsNaN(f) {
			total += f
		}
	}
	return value.Number(total)
}

// fnCount counts a named collection (optionally filtered), the non-null
// items of a list, or the non-null arguments.
func fnCount(args []value.Value, env *Context) value.Value {
	first := arg(args, 0)

	if first.Kind() == value.KindText {
		records, ok := env.Collection(first.Str())
		if !ok {
			return value.Number(0)
		}
		if cond := arg(args, 1); value.Truthy(cond) {
			return value.Number(float64(len(filter.Collection(records, value.ToText(cond)))))
		}
		return value.Number(float64(len(records)))
	}

	n := 0
	for _, v := range elements(args) {
		if !v.IsNull() {
			n++
		}
	}
	return value.Number(float64(n))
}

func fnCountIf(args []value.Value, _ *Context) value.Value {
	list := arg(args, 0)
	if list.Kind() != value.KindList {
		return value.Number(0)
	}
	target := arg(args, 1)

	n := 0
	for _, v := range list.Items() {
		if value.StrictEqual(v, target) {
			n++
		}
	}
	return value.Number(float64(n))
}

// fnAverage averages a field over a named collection (optionally filtered),
// the numbers in a list, or the numeric arguments. It is 0 when nothing
// qualifies.
func fnAverage(args []value.Value, env *Context) value.Value {
	first := arg(args, 0)

	if first.Kind() == value.KindText {
		records, ok := env.Collection(first.Str())
		if !ok {
			return value.Number(0)
		}
		if cond := arg(args, 2); value.Truthy(cond) {
			records = filter.Collection(records, value.ToText(cond))
		}

		field := value.ToText(arg(args, 1))
		var nums []float64
		for _, record := range records {
			v := value.FromAny(record[field])
			if v.Kind() == value.KindNumber && !math.IsNaN(v.Num()) {
				nums = append(nums, v.Num())
			}
		}
		return value.Number(mean(nums))
	}

	return value.Number(mean(numbers(elements(args))))
}

func fnMin(args []value.Value, _ *Context) value.Value {
	result := math.Inf(1)
	for _, f := range numbers(elements(args)) {
		result = math.Min(result, f)
	}
	return value.Number(result)
}

func fnMax(args []value.Value, _ *Context) value.Value {
	result := math.Inf(-1)
	for _, f := range numbers(elements(args)) {
		result = math.Max(result, f)
	}
	return value.Number(result)
}

// numbers keeps the number-kind values, NaN included.
func numbers(vs []value.Value) []float64 {
	out := make([]float64, 0, len(vs))
	for _, v := range vs {
		if v.Kind() == value.KindNumber {
			out = append(out, v.Num())
		}
	}
	return out
}

func mean(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	total := 0.0
	for _, f := range nums {
		total += f
	}
	return total / float64(len(nums))
}
