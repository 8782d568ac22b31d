package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/chatloom/chatloom/pkg/cmd"
	"github.com/chatloom/chatloom/pkg/execution"
	"github.com/chatloom/chatloom/pkg/log"
	"github.com/chatloom/chatloom/pkg/otelhelper"
	"github.com/chatloom/chatloom/pkg/pricing"
	"github.com/chatloom/chatloom/pkg/retention"
	"github.com/chatloom/chatloom/pkg/workflow"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "chatloom-api",
		Usage:                 "Run conversational executions over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "retention-schedule",
				Usage:   "Cron schedule for the execution retention sweep",
				Value:   "0 3 * * *",
				Sources: cli.EnvVars("RETENTION_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "retention-days",
				Usage:   "Days to keep execution records before purging",
				Value:   90,
				Sources: cli.EnvVars("RETENTION_DAYS"),
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

			logger.InfoContext(ctx, "Initializing Chatloom API")

			if command.Bool("tracing") {
				if _, err := otelhelper.NewTracer(ctx, "chatloom-api"); err != nil {
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
			executor := execution.NewExecutor(logger, builder, runner, persist, eventBus, "api")

			sweeper := retention.NewSweeper(
				logger,
				persist,
				command.String("retention-schedule"),
				time.Duration(command.Int("retention-days"))*24*time.Hour,
			)
			if err := sweeper.Start(ctx); err != nil {
				return err
			}
			defer sweeper.Stop()

			api := NewAPI(logger, executor, persist)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
