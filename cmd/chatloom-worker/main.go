package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/chatloom/chatloom/pkg/cmd"
	"github.com/chatloom/chatloom/pkg/execution"
	"github.com/chatloom/chatloom/pkg/log"
	"github.com/chatloom/chatloom/pkg/otelhelper"
	"github.com/chatloom/chatloom/pkg/pricing"
	"github.com/chatloom/chatloom/pkg/workflow"
)

func main() {
	logger := log.WithModule("worker")

	command := &cli.Command{
		Name:                  "chatloom-worker",
		Usage:                 "Consume execution requests and run them",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Usage:   "Stable worker identifier, generated when omitted",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces via OTLP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()
			}

			logger.InfoContext(ctx, "Initializing Chatloom worker", "worker_id", workerID)

			if command.Bool("tracing") {
				if _, err := otelhelper.NewTracer(ctx, "chatloom-worker"); err != nil {
					logger.WarnContext(ctx, "Failed to initialize tracer", "error", err)
				}
			}

			persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			registry := cmd.NewRegistry(logger)
			toolRegistry := cmd.NewToolRegistry(logger)
			deps := cmd.NewDependencies(logger, persist, toolRegistry)

			builder := workflow.NewBuilder(registry, deps, logger)
			runner := workflow.NewRunner(logger, pricing.DefaultTable())
			executor := execution.NewExecutor(logger, builder, runner, persist, eventBus, workerID)

			worker := NewWorker(workerID, executor, eventBus, logger)

			return worker.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
