// Package main provides the Regenera API server: the management surface
// plus an embedded engine and assessment loop.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	cli "github.com/urfave/cli/v3"

	"github.com/regenera-io/regenera/pkg/cmd"
	"github.com/regenera-io/regenera/pkg/definition"
	"github.com/regenera-io/regenera/pkg/engine"
	"github.com/regenera-io/regenera/pkg/evidence"
	"github.com/regenera-io/regenera/pkg/monitor"
	"github.com/regenera-io/regenera/pkg/regeneration"
	"github.com/regenera-io/regenera/pkg/spc"
	"github.com/regenera-io/regenera/pkg/web"
)

type API struct {
	logger   *slog.Logger
	handlers *web.APIHandlers
	monitor  *monitor.Monitor
}

// NewAPI wires the full stack from command-line flags. The returned cleanup
// closes everything in reverse order.
func NewAPI(ctx context.Context, logger *slog.Logger, command *cli.Command) (*API, func(), error) {
	persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	eventBus := cmd.NewEventBus(command.String("event-bus"), "regenera-api", logger)

	cleanup := func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}

		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}

	definitions := definition.NewStore(logger)

	documents, err := persistence.Definitions(ctx)
	if err != nil {
		cleanup()

		return nil, nil, err
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
		cleanup()

		return nil, nil, err
	}

	limits, err := cmd.LoadControlLimits(logger, command.String("limits-file"))
	if err != nil {
		cleanup()

		return nil, nil, err
	}

	controller := spc.NewController(logger, limits)

	catalog := regeneration.NewCatalog()
	if err := cmd.LoadStrategies(logger, command.String("strategies-file"), catalog); err != nil {
		cleanup()

		return nil, nil, err
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
		cleanup()

		return nil, nil, err
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
		cleanup()

		return nil, nil, err
	}

	handlers := web.NewAPIHandlers(web.Config{
		Logger:      logger,
		Definitions: definitions,
		Persistence: persistence,
		Engine:      eng,
		Recorder:    recorder,
		Checker:     evidence.NewValidator(recorder),
		Entropy:     system,
		Controller:  controller,
		Violations:  loop,
		Publisher:   eventBus,
	})

	return &API{logger: logger, handlers: handlers, monitor: loop}, cleanup, nil
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Regenera API")
	})

	a.handlers.Register(app)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	if err := a.monitor.Start(ctx); err != nil {
		return err
	}

	defer func() {
		if err := a.monitor.Stop(ctx); err != nil {
			a.logger.ErrorContext(ctx, "Failed to stop assessment loop", "error", err)
		}
	}()

	return a.App().Listen(":" + strconv.Itoa(port))
}
