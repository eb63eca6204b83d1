package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/regenera-io/regenera/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "regenera-api",
		Usage:                 "Serve the management API with an embedded engine and control loop",
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
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Regenera API")

			api, cleanup, err := NewAPI(ctx, logger, command)
			if err != nil {
				return err
			}
			defer cleanup()

			return api.Start(ctx, command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
