package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/config"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

func newEvalCommand() *cli.Command {
	return &cli.Command{
		Name:      "eval",
		Usage:     "Evaluate a formula",
		ArgsUsage: "<formula>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "context",
				Usage: "YAML or JSON file with animals, events, parameters, current and reference_date",
			},
			&cli.StringSliceFlag{
				Name:  "param",
				Usage: "farm parameter as name=value (repeatable)",
			},
			&cli.StringFlag{
				Name:  "reference-date",
				Usage: "date TODAY() returns (default: now)",
			},
		},
		Action: evalAction,
	}
}

func newValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check that a formula parses",
		ArgsUsage: "<formula>",
		Action:    validateAction,
	}
}

func newInspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "List the fields and parameters a formula reads",
		ArgsUsage: "<formula>",
		Action:    inspectAction,
	}
}

func newFunctionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "functions",
		Usage: "List the available functions",
		Action: func(_ context.Context, cmd *cli.Command) error {
			return printJSON(cmd, herdmetrics.Functions())
		},
	}
}

func formulaArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected 1 argument: formula")
	}
	return cmd.Args().First(), nil
}

func evalAction(_ context.Context, cmd *cli.Command) error {
	formula, err := formulaArg(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	env, err := contextFromCommand(cmd)
	if err != nil {
		return err
	}

	v, err := herdmetrics.New(herdmetrics.WithLogger(logger)).EvaluateE(formula, env)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]value.Value{"value": v})
}

func validateAction(_ context.Context, cmd *cli.Command) error {
	formula, err := formulaArg(cmd)
	if err != nil {
		return err
	}
	result := herdmetrics.Validate(formula)
	if err := printJSON(cmd, result); err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("invalid formula")
	}
	return nil
}

func inspectAction(_ context.Context, cmd *cli.Command) error {
	formula, err := formulaArg(cmd)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string][]string{
		"fields": herdmetrics.ExtractFields(formula),
		"params": herdmetrics.ExtractParams(formula),
	})
}

// contextFromCommand builds the evaluation context from --context, --param
// and --reference-date. Flags override the file.
func contextFromCommand(cmd *cli.Command) (herdmetrics.Context, error) {
	cfg := config.New(nil)
	if path := cmd.String("context"); path != "" {
		loaded, err := config.FromFile(path)
		if err != nil {
			return herdmetrics.Context{}, err
		}
		cfg = loaded
	}

	params := cfg.Map(config.KeyParameters)
	for _, kv := range cmd.StringSlice("param") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return herdmetrics.Context{}, fmt.Errorf("invalid --param %q: want name=value", kv)
		}
		if params == nil {
			params = make(map[string]any)
		}
		params[name] = parseScalar(raw)
	}

	if date := cmd.String("reference-date"); date != "" {
		cfg = cfg.With(config.KeyReferenceDate, date)
	}
	env := herdmetrics.Context{
		Animals:    cfg.Records(config.KeyAnimals),
		Events:     cfg.Records(config.KeyEvents),
		Parameters: params,
		Current:    cfg.Map(config.KeyCurrent),
	}
	if cfg.Has(config.KeyReferenceDate) {
		ref := cfg.Time(config.KeyReferenceDate, time.Time{})
		if ref.IsZero() {
			return herdmetrics.Context{}, fmt.Errorf("invalid reference date %v", cfg.Any(config.KeyReferenceDate, nil))
		}
		env.ReferenceDate = ref
	}
	return env, nil
}

// parseScalar reads a flag value the way a YAML document would: numbers and
// booleans are typed, anything else is text.
func parseScalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case int, float64, bool:
		return v
	}
	return raw
}
