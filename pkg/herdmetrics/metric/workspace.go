package metric

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/config"
)

// DefinitionsFromConfig decodes the metrics list of a workspace. Every
// definition gets its defaults and is validated; the returned error joins
// the problems of all invalid entries. A definition without an ID uses its
// name.
func DefinitionsFromConfig(cfg config.Config) ([]Definition, error) {
	records := cfg.Records(config.KeyMetrics)
	defs := make([]Definition, 0, len(records))
	var errs []error

	for i, record := range records {
		def, err := decodeDefinition(record)
		if err != nil {
			errs = append(errs, fmt.Errorf("metrics[%d]: %w", i, err))
			continue
		}

		def.ApplyDefaults()
		if def.ID == "" {
			def.ID = def.Name
		}
		def.FarmID = cfg.String(config.KeyFarmID, def.FarmID)
		def.IsCurrent, def.IsActive = true, true

		if err := def.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("metrics[%d] %s: %w", i, def.Name, err))
			continue
		}
		defs = append(defs, def)
	}

	return defs, errors.Join(errs...)
}

// decodeDefinition maps a decoded YAML/JSON object onto a Definition
// through its yaml tags.
func decodeDefinition(record map[string]any) (Definition, error) {
	raw, err := yaml.Marshal(record)
	if err != nil {
		return Definition{}, fmt.Errorf("encode definition: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return Definition{}, fmt.Errorf("decode definition: %w", err)
	}
	return def, nil
}

// WorkspaceFromConfig builds a Batch from a workspace: farm, reference date,
// parameters, animals, events and metric definitions.
func WorkspaceFromConfig(cfg config.Config) (Batch, error) {
	defs, err := DefinitionsFromConfig(cfg)
	if err != nil {
		return Batch{}, err
	}
	return Batch{
		FarmID:        cfg.String(config.KeyFarmID, ""),
		Definitions:   defs,
		Animals:       cfg.Records(config.KeyAnimals),
		Events:        cfg.Records(config.KeyEvents),
		Parameters:    cfg.Map(config.KeyParameters),
		ReferenceDate: cfg.Time(config.KeyReferenceDate, time.Time{}),
	}, nil
}

// CalculatorOptionsFromConfig reads the workers and timeout settings of a
// workspace.
func CalculatorOptionsFromConfig(cfg config.Config) []CalculatorOption {
	var opts []CalculatorOption
	if cfg.Has(config.KeyWorkers) {
		opts = append(opts, WithWorkers(cfg.Int(config.KeyWorkers, 0)))
	}
	if cfg.Has(config.KeyTimeout) {
		opts = append(opts, WithTimeout(cfg.Duration(config.KeyTimeout, 0)))
	}
	return opts
}
