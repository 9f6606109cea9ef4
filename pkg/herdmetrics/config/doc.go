/*
Package config reads herdmetrics workspace files.

A workspace is a YAML or JSON document describing one farm: its parameters,
its animal and event records and the metric definitions to calculate.

	farm_id: fazenda-1
	reference_date: "2024-06-01"
	workers: 4
	timeout: 30s
	parameters:
	  pve: 50
	animals:
	  - id: a1
	    reproductive_status: prenha
	    current_del: 120
	metrics:
	  - name: taxa_prenhez
	    display_name: Taxa de Prenhez
	    formula: COUNT("animals", "reproductive_status = 'prenha'") / COUNT("animals") * 100

Config wraps the decoded document with typed accessors that fall back to a
default instead of failing:

	cfg, err := config.FromFile("workspace.yaml")
	if err != nil {
	    return err
	}
	workers := cfg.Int(config.KeyWorkers, 1)
	ref := cfg.Time(config.KeyReferenceDate, time.Now())
	animals := cfg.Records(config.KeyAnimals)

Numbers decoded from JSON are float64 and from YAML are int or float64; Int
and Float accept either. Config is safe for concurrent reads.
*/
package config
