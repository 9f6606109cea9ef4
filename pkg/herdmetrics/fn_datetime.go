package herdmetrics

import (
	"math"
	"strings"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

const millisPerDay = 24 * 60 * 60 * 1000

func fnToday(_ []value.Value, env *Context) value.Value {
	return value.Date(env.Today())
}

// fnDateDiff returns d2 - d1 in whole days, or in 30-day months or 365-day
// years when a unit is given. Unparseable or missing dates give NaN; an
// explicit null is the epoch.
func fnDateDiff(args []value.Value, _ *Context) value.Value {
	if len(args) < 2 {
		return value.Number(math.NaN())
	}
	d1, ok1 := value.ToDate(arg(args, 0))
	d2, ok2 := value.ToDate(arg(args, 1))
	if !ok1 || !ok2 {
		return value.Number(math.NaN())
	}

	diffMs := float64(d2.UnixMilli() - d1.UnixMilli())
	days := math.Floor(diffMs / millisPerDay)

	unit := "days"
	if u := arg(args, 2); value.Truthy(u) {
		unit = strings.ToLower(value.ToText(u))
	}

	switch unit {
	case "months", "m":
		return value.Number(math.Floor(days / 30))
	case "years", "y":
		return value.Number(math.Floor(days / 365))
	default:
		return value.Number(days)
	}
}
