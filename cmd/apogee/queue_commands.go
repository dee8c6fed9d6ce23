package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"apogee/internal/config"
	"apogee/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the content queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	queueCmd.AddCommand(newQueueFailCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				stats, err := store.QueueStats(cmd.Context())
				if err != nil {
					return err
				}
				if stats.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(stats.ByStatus)+2)
				for _, status := range queue.AllStatuses() {
					if count := stats.ByStatus[status]; count > 0 {
						rows = append(rows, []string{string(status), strconv.Itoa(count)})
					}
				}
				rows = append(rows, []string{"paused", strconv.Itoa(stats.Paused)})
				rows = append(rows, []string{"total", strconv.Itoa(stats.Total)})

				writeTable(cmd.OutOrStdout(), []string{"Status", "Count"}, rows,
					[]columnAlignment{alignLeft, alignRight})
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				statuses := make([]queue.Status, 0, len(listStatuses))
				for _, raw := range listStatuses {
					status, err := queue.ParseStatus(raw)
					if err != nil {
						return err
					}
					statuses = append(statuses, status)
				}

				items, err := store.ItemsByStatus(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.ID,
						item.Title,
						displayStatus(item),
						formatScore(item.SimilarityScore),
						formatScore(item.RepetitionScore),
						item.CreatedAt.Local().Format(time.DateTime),
					})
				}
				writeTable(cmd.OutOrStdout(),
					[]string{"ID", "Title", "Status", "Similarity", "Repetition", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <item-id>...",
		Short: "Return failed items to draft with fresh counters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					retried, err := store.RetryFailed(cmd.Context(), id)
					if err != nil {
						return err
					}
					if retried {
						fmt.Fprintf(out, "Item %s returned to draft\n", id)
					} else {
						fmt.Fprintf(out, "Item %s is not in a failed state\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <item-id>...",
		Short: "Clear the pause flag on items held for review",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					resumed, err := store.ResumeItem(cmd.Context(), id)
					if err != nil {
						return err
					}
					if resumed {
						fmt.Fprintf(out, "Item %s resumed\n", id)
					} else {
						fmt.Fprintf(out, "Item %s was not paused\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueFailCommand(ctx *commandContext) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "fail <item-id>",
		Short: "Terminally fail an item, discarding any in-flight stage result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				failed, err := store.FailItem(cmd.Context(), args[0], queue.ReasonOperatorFailed, message)
				if err != nil {
					return err
				}
				if !failed {
					return fmt.Errorf("item %s not found or already terminal", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %s failed (%s)\n", args[0], queue.ReasonOperatorFailed)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "failed by operator", "Failure message recorded on the item")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearFailed bool
	var clearPublished bool
	var clearForce bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearFailed && clearPublished {
				return errors.New("specify only one of --failed or --published")
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				switch {
				case clearFailed:
					removed, err := store.DeleteByStatus(cmd.Context(), queue.StatusFailed)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d failed items\n", removed)
				case clearPublished:
					removed, err := store.DeleteByStatus(cmd.Context(), queue.StatusPublished)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d published items\n", removed)
				default:
					if !clearForce {
						return errors.New("clearing the whole queue removes embeddings and audit rows; pass --force to confirm")
					}
					if err := store.Clear(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(out, "Cleared queue, stage runs, and embeddings")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed items")
	cmd.Flags().BoolVar(&clearPublished, "published", false, "Remove only published items")
	cmd.Flags().BoolVar(&clearForce, "force", false, "Confirm clearing the entire queue")
	return cmd
}

func displayStatus(item *queue.Item) string {
	if item.Paused {
		return string(item.Status) + " (paused)"
	}
	return string(item.Status)
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return strconv.FormatFloat(*score, 'f', 3, 64)
}
