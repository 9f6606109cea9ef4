package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/config"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/metric"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/observability"
)

func newRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Calculate every metric of a workspace file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workspace",
				Aliases:  []string{"w"},
				Usage:    "YAML or JSON workspace with farm data and metric definitions (- for stdin)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "animal",
				Usage: "calculate the animal-scoped metrics of the animal with this id",
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.FromFile(cmd.String("workspace"))
	if err != nil {
		return err
	}
	batch, err := metric.WorkspaceFromConfig(cfg)
	if err != nil {
		return err
	}

	opts := append(metric.CalculatorOptionsFromConfig(cfg),
		metric.WithLogger(logger),
		metric.WithMetrics(observability.NewMetricsRecorder()),
		metric.WithSpanManager(observability.NewSpanManager()),
	)
	calc := metric.NewCalculator(opts...)

	if id := cmd.String("animal"); id != "" {
		for _, animal := range batch.Animals {
			if fmt.Sprint(animal["id"]) == id {
				results, err := calc.CalculateForAnimal(ctx, batch, animal)
				if err != nil {
					return err
				}
				return printJSON(cmd, results)
			}
		}
		return fmt.Errorf("animal %q not found in workspace", id)
	}

	results, err := calc.Calculate(ctx, batch)
	if err != nil {
		return err
	}
	return printJSON(cmd, results)
}
