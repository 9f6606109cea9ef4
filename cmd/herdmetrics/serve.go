package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/metric"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/observability"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/server"
)

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address",
				Value: ":8080",
			},
			newDBFlag(),
			&cli.IntFlag{
				Name:  "workers",
				Usage: "definitions evaluated at once per calculation",
				Value: 4,
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	store, logger, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	gin.SetMode(gin.ReleaseMode)

	engine := herdmetrics.New(herdmetrics.WithLogger(logger))
	calc := metric.NewCalculator(
		metric.WithLogger(logger),
		metric.WithEngine(engine),
		metric.WithWorkers(int(cmd.Int("workers"))),
		metric.WithMetrics(observability.NewMetricsRecorder()),
		metric.WithSpanManager(observability.NewSpanManager()),
	)

	srv := server.New(store,
		server.WithLogger(logger),
		server.WithEngine(engine),
		server.WithCalculator(calc),
	)
	return srv.ListenAndServe(ctx, cmd.String("addr"))
}
