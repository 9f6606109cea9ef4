package metric

import (
	"maps"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics"
)

// Short field names formulas and filters use, and the stored columns they
// come from.
var (
	animalAliases = map[string]string{
		"del":    "current_del",
		"dea":    "current_dea",
		"status": "reproductive_status",
	}
	eventAliases = map[string]string{
		"type": "event_type",
		"date": "event_date",
	}
)

// FlattenAnimals returns copies of animals with the short aliases added:
// del, dea and status. The input records are not modified.
func FlattenAnimals(animals []herdmetrics.Record) []herdmetrics.Record {
	return flatten(animals, animalAliases)
}

// FlattenEvents returns copies of events with type and date added.
func FlattenEvents(events []herdmetrics.Record) []herdmetrics.Record {
	return flatten(events, eventAliases)
}

// flatten copies each record and sets every alias whose source column is
// present. A record without the source column keeps its own alias value.
func flatten(records []herdmetrics.Record, aliases map[string]string) []herdmetrics.Record {
	if records == nil {
		return nil
	}
	out := make([]herdmetrics.Record, len(records))
	for i, r := range records {
		flat := maps.Clone(r)
		if flat == nil {
			flat = make(herdmetrics.Record, len(aliases))
		}
		for alias, source := range aliases {
			if v, ok := r[source]; ok {
				flat[alias] = v
			}
		}
		out[i] = flat
	}
	return out
}
