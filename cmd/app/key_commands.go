package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/dominion/cmd/app/commands"
	"github.com/allisson/dominion/internal/app"
	"github.com/allisson/dominion/internal/config"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-root-key",
			Usage: "Generate a root key for ROOT_KEY, wrapped with KMS when a key URI is given",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "kms-key-uri",
					Value: "",
					Usage: "KMS key URI (e.g., base64key://, gcpkms://projects/.../cryptoKeys/...)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunCreateRootKey(
					ctx,
					container.KMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("kms-key-uri"),
				)
			},
		},
		{
			Name:  "create-operator-token",
			Usage: "Generate an operator bearer token and its OPERATOR_TOKEN_HASH",
			Flags: []cli.Flag{
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

				return commands.RunCreateOperatorToken(
					container.OperatorTokenService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}
