package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/dominion/cmd/app/commands"
	"github.com/allisson/dominion/internal/app"
	"github.com/allisson/dominion/internal/config"
	"github.com/allisson/dominion/internal/entropy"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the token API, the metrics server and the rotation scheduler",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				return commands.RunServer(ctx, container, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "clean-audit-events",
			Usage: "Delete persisted audit events older than the given number of days",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:     "days",
					Aliases:  []string{"d"},
					Required: true,
					Usage:    "Delete audit events older than this many days",
				},
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Value:   false,
					Usage:   "Show how many events would be deleted without deleting",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				repo, err := container.AuditEventRepository()
				if err != nil {
					return err
				}

				return commands.RunCleanAuditEvents(
					ctx,
					repo,
					container.Clock(),
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("days")),
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "scan-env",
			Usage: "Scan .env files and the process environment for exposed or weak secrets",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "dir",
					Aliases: []string{"d"},
					Value:   ".",
					Usage:   "Directory holding the .env files to scan",
				},
				&cli.BoolFlag{
					Name:  "skip-process-env",
					Value: false,
					Usage: "Only scan files, not the variables of the current process",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunScanEnv(
					entropy.NewValidator(),
					container.Logger(),
					commands.DefaultIO().Writer,
					commands.ScanEnvOptions{
						Dir:            cmd.String("dir"),
						IncludeProcess: !cmd.Bool("skip-process-env"),
						Format:         cmd.String("format"),
					},
				)
			},
		},
	}
}
