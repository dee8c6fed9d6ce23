package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"apogee/internal/daemon"
	"apogee/internal/logging"
	"apogee/internal/notifications"
	"apogee/internal/queue"
	"apogee/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var mineOnStart bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline daemon until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}

			notifier := notifications.NewService(cfg)
			pipe := buildPipeline(cfg, store, logger, notifier)

			mgr := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
			mgr.ConfigureStages(pipe.stages)

			d, err := daemon.New(cfg, store, logger, mgr)
			if err != nil {
				_ = store.Close()
				return err
			}
			defer func() { _ = d.Close() }()

			signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(signalCtx); err != nil {
				return err
			}

			if mineOnStart {
				if _, err := pipe.miner.Run(signalCtx); err != nil {
					logger.Warn("initial mining pass failed", logging.Error(err))
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), "apogee daemon running; press Ctrl+C to stop")
			<-signalCtx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&mineOnStart, "mine", false, "Run one topic mining pass after startup")
	return cmd
}
