package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/config"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/metric"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/observability"
)

func newDefsCommand() *cli.Command {
	return &cli.Command{
		Name:  "defs",
		Usage: "Manage stored metric definitions",
		Flags: []cli.Flag{newDBFlag()},
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Store a new definition",
				Flags: []cli.Flag{
					newFarmFlag(),
					&cli.StringFlag{Name: "name", Usage: "lower_snake_case identifier", Required: true},
					&cli.StringFlag{Name: "display-name", Usage: "label shown to users"},
					&cli.StringFlag{Name: "category", Usage: "reproductive, inventory or quality"},
					&cli.StringFlag{Name: "formula", Usage: "formula to evaluate", Required: true},
					&cli.StringFlag{Name: "unit", Usage: "unit label, e.g. %"},
					&cli.StringFlag{Name: "format", Usage: "percentage, decimal or integer"},
					&cli.StringFlag{Name: "scope", Usage: "farm, lot or animal"},
				},
				Action: addDefinitionAction,
			},
			{
				Name:   "list",
				Usage:  "List current definitions",
				Flags:  []cli.Flag{newFarmFlag()},
				Action: listDefinitionsAction,
			},
			{
				Name:      "history",
				Usage:     "Show every version of a definition",
				ArgsUsage: "<name>",
				Flags:     []cli.Flag{newFarmFlag()},
				Action:    historyAction,
			},
			{
				Name:      "update",
				Usage:     "Change the formula of a definition",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "formula", Usage: "new formula", Required: true},
				},
				Action: updateDefinitionAction,
			},
			{
				Name:      "deactivate",
				Usage:     "Hide a definition from listings and calculations",
				ArgsUsage: "<id>",
				Action:    deactivateAction,
			},
			{
				Name:      "import",
				Usage:     "Store the metrics of a workspace file",
				ArgsUsage: "<workspace>",
				Action:    importAction,
			},
		},
	}
}

// openStore opens the --db store with logging and metrics attached.
func openStore(cmd *cli.Command) (*metric.SQLiteStore, *slog.Logger, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := metric.NewSQLiteStore(cmd.String(dbFlag),
		metric.WithStoreLogger(logger),
		metric.WithStoreMetrics(observability.NewMetricsRecorder()),
	)
	if err != nil {
		return nil, nil, err
	}
	return store, logger, nil
}

func addDefinitionAction(_ context.Context, cmd *cli.Command) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	created, err := store.Create(metric.Definition{
		FarmID:      cmd.String(farmFlag),
		Name:        cmd.String("name"),
		DisplayName: cmd.String("display-name"),
		Category:    metric.Category(cmd.String("category")),
		Formula:     cmd.String("formula"),
		Unit:        cmd.String("unit"),
		Format:      metric.Format(cmd.String("format")),
		Scope:       metric.Scope(cmd.String("scope")),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, created)
}

func listDefinitionsAction(_ context.Context, cmd *cli.Command) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	defs, err := store.ListCurrent(cmd.String(farmFlag))
	if err != nil {
		return err
	}
	return printJSON(cmd, defs)
}

func historyAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: definition name")
	}
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	history, err := store.History(cmd.String(farmFlag), cmd.Args().First())
	if err != nil {
		return err
	}
	return printJSON(cmd, history)
}

func updateDefinitionAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: definition id")
	}
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	updated, err := store.Update(metric.Definition{ID: cmd.Args().First(), Formula: cmd.String("formula")})
	if err != nil {
		return err
	}
	return printJSON(cmd, updated)
}

func deactivateAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: definition id")
	}
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Deactivate(cmd.Args().First())
}

// importAction stores the metrics of a workspace. A definition whose ID is
// already stored is updated instead, so re-importing an edited workspace
// versions the changed formulas.
func importAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: workspace file")
	}
	cfg, err := config.FromFile(cmd.Args().First())
	if err != nil {
		return err
	}
	defs, err := metric.DefinitionsFromConfig(cfg)
	if err != nil {
		return err
	}

	store, logger, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	stored := make([]metric.Definition, 0, len(defs))
	for _, def := range defs {
		saved, err := store.Create(def)
		if errors.Is(err, metric.ErrDuplicateID) {
			saved, err = store.Update(def)
		}
		if err != nil {
			return fmt.Errorf("import %s: %w", def.Name, err)
		}
		logger.Debug("definition imported", slog.String("name", saved.Name), slog.Int("version", saved.Version))
		stored = append(stored, saved)
	}
	return printJSON(cmd, stored)
}
