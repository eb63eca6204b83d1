package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/regenera-io/regenera/pkg/cmd"
	"github.com/regenera-io/regenera/pkg/definition"
	"github.com/regenera-io/regenera/pkg/engine"
	"github.com/regenera-io/regenera/pkg/evidence"
	"github.com/regenera-io/regenera/pkg/log"
	"github.com/regenera-io/regenera/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	logger := log.WithModule("engine")

	command := &cli.Command{
		Name:                  "regenera-engine",
		Usage:                 "Run process executions requested over the event bus",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "evidence-url",
				Usage:   "Evidence store URL (redis://... or empty for in-memory)",
				Value:   "",
				Sources: cli.EnvVars("EVIDENCE_URL"),
			},
			&cli.StringFlag{
				Name:    "definitions-path",
				Usage:   "Directory of additional process definition documents",
				Value:   "",
				Sources: cli.EnvVars("DEFINITIONS_PATH"),
			},
			&cli.BoolFlag{
				Name:    "enable-tracing",
				Usage:   "Export evidence spans over OTLP",
				Sources: cli.EnvVars("ENABLE_TRACING"),
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

			logger.InfoContext(ctx, "Initializing Regenera engine")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "regenera-engine", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var tracer trace.Tracer

			if command.Bool("enable-tracing") {
				var err error

				tracer, err = telemetry.NewTracer(ctx, "regenera-engine")
				if err != nil {
					return err
				}
			}

			definitions := definition.NewStore(logger)

			documents, err := persistence.Definitions(ctx)
			if err != nil {
				return err
			}

			for name, document := range documents {
				if _, err := definitions.Add(document); err != nil {
					logger.ErrorContext(ctx, "Skipping invalid stored definition",
						"process", name, "error", err)
				}
			}

			if path := command.String("definitions-path"); path != "" {
				if err := definitions.LoadDirectory(path); err != nil {
					return err
				}
			}

			registry := cmd.NewRegistry(ctx, logger)
			store := cmd.NewEvidenceStore(ctx, logger, command.String("evidence-url"))
			recorder := evidence.NewRecorder(logger, store, tracer)

			eng := engine.NewEngine(logger, definitions, registry, recorder,
				engine.WithPublisher(eventBus),
				engine.WithArchiver(persistence),
			)

			worker := NewWorker(logger, eng, eventBus)

			return worker.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
