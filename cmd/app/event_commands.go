package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/cecsync/cmd/app/commands"
	"github.com/allisson/cecsync/internal/app"
	"github.com/allisson/cecsync/internal/config"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func getEventCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "list-events",
			Usage: "List the queued events in dispatch order",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "pending",
					Aliases: []string{"p"},
					Value:   false,
					Usage:   "Only list events that were not processed yet",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				queueUseCase, err := container.QueueUseCase()
				if err != nil {
					return err
				}

				return commands.RunListEvents(
					ctx,
					queueUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Bool("pending"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "prune-events",
			Usage: "Remove processed events older than QUEUE_RETENTION_HOURS",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Value:   false,
					Usage:   "Show how many events would be removed without removing them",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				queueUseCase, err := container.QueueUseCase()
				if err != nil {
					return err
				}
				queueRepository, err := container.QueueRepository()
				if err != nil {
					return err
				}

				return commands.RunPruneEvents(
					ctx,
					queueUseCase,
					queueRepository,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "requeue-event",
			Usage: "Reset a failed event and move it to the tail of the queue",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Event ID",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				queueUseCase, err := container.QueueUseCase()
				if err != nil {
					return err
				}

				return commands.RunRequeueEvent(
					ctx,
					queueUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
	}
}
