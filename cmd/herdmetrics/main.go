// Command herdmetrics evaluates herd metric formulas, manages stored metric
// definitions and serves the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

const (
	logFormatFlag = "log-format"
	logLevelFlag  = "log-level"
	dbFlag        = "db"
	farmFlag      = "farm-id"
)

func newDBFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  dbFlag,
		Usage: "SQLite database holding metric definitions",
		Value: "herdmetrics.db",
	}
}

func newFarmFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  farmFlag,
		Usage: "farm whose definitions to use (global definitions are always included)",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "herdmetrics",
		Usage: "Evaluate farm herd metric formulas",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  logFormatFlag,
				Usage: "log output format: text or json",
				Value: "text",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "minimum log level: debug, info, warn or error",
				Value: "warn",
			},
		},
		Commands: []*cli.Command{
			newEvalCommand(),
			newValidateCommand(),
			newInspectCommand(),
			newFunctionsCommand(),
			newRunCommand(),
			newDefsCommand(),
			newServeCommand(),
		},
	}
}
