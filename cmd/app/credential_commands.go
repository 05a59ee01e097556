package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/cecsync/cmd/app/commands"
	"github.com/allisson/cecsync/internal/app"
	"github.com/allisson/cecsync/internal/config"
	eventService "github.com/allisson/cecsync/internal/event/service"
)

func getCredentialCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "encrypt-credential",
			Usage: "Encrypt a password with KMS_KEY_URI into the kms: form accepted by the configuration",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "value",
					Aliases: []string{"v"},
					Usage:   "Plaintext credential (read from stdin when omitted)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				cipher, err := container.CredentialCipher()
				if err != nil {
					return err
				}

				return commands.RunEncryptCredential(
					ctx,
					cipher,
					container.Logger(),
					commands.DefaultIO(),
					cmd.String("value"),
				)
			},
		},
		{
			Name:  "hash-webhook-password",
			Usage: "Print the Argon2id hash to use as WEBHOOK_PASSWORD_HASH",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "value",
					Aliases: []string{"v"},
					Usage:   "Plaintext password (read from stdin when omitted)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())

				hasher, err := eventService.NewCredentialVerifier("", "", "")
				if err != nil {
					return err
				}

				return commands.RunHashWebhookPassword(
					hasher,
					container.Logger(),
					commands.DefaultIO(),
					cmd.String("value"),
				)
			},
		},
	}
}
