package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/regenera-io/regenera/pkg/cmd"
	"github.com/regenera-io/regenera/pkg/definition"
	"github.com/regenera-io/regenera/pkg/engine"
	"github.com/regenera-io/regenera/pkg/evidence"
	"github.com/regenera-io/regenera/pkg/log"
	"github.com/regenera-io/regenera/pkg/monitor"
	"github.com/regenera-io/regenera/pkg/regeneration"
	"github.com/regenera-io/regenera/pkg/spc"
)

func main() {
	command := &cli.Command{
		Name:                  "regenera-monitor",
		Usage:                 "Run the entropy assessment and regeneration control loop",
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
				Name:     "evidence-url",
				Usage:    "Evidence store URL shared with the engine (redis://...)",
				Required: true,
				Sources:  cli.EnvVars("EVIDENCE_URL"),
			},
			&cli.StringFlag{
				Name:    "limits-file",
				Usage:   "JSON file with initial control limits",
				Value:   "",
				Sources: cli.EnvVars("LIMITS_FILE"),
			},
			&cli.StringFlag{
				Name:    "strategies-file",
				Usage:   "JSON file with the regeneration strategy catalog",
				Value:   "",
				Sources: cli.EnvVars("STRATEGIES_FILE"),
			},
			&cli.StringFlag{
				Name:    "assessment-schedule",
				Usage:   "Cron expression driving entropy assessments",
				Value:   "@every 1m",
				Sources: cli.EnvVars("ASSESSMENT_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "entropy-window",
				Usage:   "Evidence window for entropy collectors",
				Value:   15 * time.Minute,
				Sources: cli.EnvVars("ENTROPY_WINDOW"),
			},
			&cli.DurationFlag{
				Name:    "efficiency-target",
				Usage:   "Target task duration for the efficiency metric",
				Value:   time.Minute,
				Sources: cli.EnvVars("EFFICIENCY_TARGET"),
			},
			&cli.BoolFlag{
				Name:    "act-on-optional",
				Usage:   "Also remediate advisory violations",
				Sources: cli.EnvVars("ACT_ON_OPTIONAL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("monitor")
	logger.InfoContext(ctx, "Initializing Regenera monitor")

	persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), "regenera-monitor", logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	// Remediation processes run on an embedded engine against the same
	// definition set and evidence store the main engine uses.
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

	registry := cmd.NewRegistry(ctx, logger)
	store := cmd.NewEvidenceStore(ctx, logger, command.String("evidence-url"))
	recorder := evidence.NewRecorder(logger, store, nil)

	eng := engine.NewEngine(logger, definitions, registry, recorder,
		engine.WithPublisher(eventBus),
		engine.WithArchiver(persistence),
	)

	system, err := cmd.NewEntropySystem(logger, recorder,
		command.Duration("entropy-window"), command.Duration("efficiency-target"))
	if err != nil {
		return err
	}

	limits, err := cmd.LoadControlLimits(logger, command.String("limits-file"))
	if err != nil {
		return err
	}

	controller := spc.NewController(logger, limits)

	catalog := regeneration.NewCatalog()
	if err := cmd.LoadStrategies(logger, command.String("strategies-file"), catalog); err != nil {
		return err
	}

	regenerator, err := regeneration.NewEngine(logger, regeneration.Config{
		Catalog:   catalog,
		Simulator: regeneration.NewSimulator(recorder, command.Duration("entropy-window")),
		Executor:  eng,
		Notifier:  monitor.NewLogNotifier(logger),
		Limits:    controller,
		PostCheck: monitor.NewPostCheck(system, controller),
		Publisher: eventBus,
	})
	if err != nil {
		return err
	}

	loop, err := monitor.NewMonitor(logger, monitor.Config{
		Entropy:       system,
		Controller:    controller,
		Regenerator:   regenerator,
		Schedule:      command.String("assessment-schedule"),
		ActOnOptional: command.Bool("act-on-optional"),
		Publisher:     eventBus,
	})
	if err != nil {
		return err
	}

	if err := loop.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.InfoContext(ctx, "Shutting down monitor")

	return loop.Stop(ctx)
}
