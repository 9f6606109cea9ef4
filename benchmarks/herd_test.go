package benchmarks

import (
	"fmt"
	"time"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics"
)

var statuses = []string{"prenha", "vazia", "inseminada", "seca"}

// buildHerd returns n animals with a mix of statuses and DEL values.
func buildHerd(n int) []herdmetrics.Record {
	animals := make([]herdmetrics.Record, n)
	for i := range animals {
		animals[i] = herdmetrics.Record{
			"id":                  fmt.Sprintf("BR-%05d", i),
			"reproductive_status": statuses[i%len(statuses)],
			"current_del":         (i * 37) % 500,
			"category":            []string{"vaca", "novilha"}[i%2],
		}
	}
	return animals
}

func buildContext(n int) herdmetrics.Context {
	animals := buildHerd(n)
	for _, a := range animals {
		a["status"] = a["reproductive_status"]
		a["del"] = a["current_del"]
	}
	return herdmetrics.Context{
		Animals:       animals,
		Parameters:    map[string]any{"meta_prenhez": 85},
		Current:       herdmetrics.Record{"last_calving_date": "2024-01-01", "del": 152},
		ReferenceDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}
