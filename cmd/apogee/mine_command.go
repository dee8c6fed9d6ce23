package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"apogee/internal/config"
	"apogee/internal/logging"
	"apogee/internal/notifications"
	"apogee/internal/queue"
)

func newMineCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "Run one topic mining pass for the configured channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				pipe := buildPipeline(cfg, store, logger, notifications.NewService(cfg))
				result, err := pipe.miner.Run(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Mining pass complete: %d accepted, %d rejected as near-duplicates\n",
					len(result.Accepted), result.Rejected)
				for _, item := range result.Accepted {
					fmt.Fprintf(out, "  %s  %s\n", item.ID, item.Title)
				}
				return nil
			})
		},
	}
}
