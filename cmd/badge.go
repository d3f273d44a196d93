package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
	"gatehouse/internal/ports"
)

var badgeCmd = &cobra.Command{
	Use:   "badge",
	Short: "Badge print queue commands",
}

var badgeWorkerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the badge print worker loop",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
		if pollInterval <= 0 {
			pollInterval = deps.App.Config.Badge.PollInterval
		}

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			if err := deps.Layout.WatchLayout(ctx); err != nil {
				logging.Warn(ctx, "layout watcher stopped", slog.Any("err", errs.Loggable(err)))
			}
		}()

		logging.Info(ctx, "badge worker started", slog.Duration("poll_interval", pollInterval))
		if err := deps.Badge.RunWorker(ctx, pollInterval); err != nil {
			return errs.Wrap(err, "badge worker loop")
		}

		logging.Info(ctx, "badge worker stopped")
		return nil
	}),
}

var badgeRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Move a failed badge job back to pending",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		job, err := deps.Badge.Retry(ctx, cmd.Flags().Args()[0])
		if err != nil {
			return errs.Wrap(err, "retry badge job")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"job %s requeued ticket=%s attempts=%d\n",
			job.ID,
			job.TicketID,
			job.Attempts,
		); err != nil {
			return errs.Wrap(err, "write retry output")
		}
		return nil
	}),
}

var badgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List badge print jobs",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := deps.Badge.List(ctx, ports.BadgeJobFilter{
			Status: status,
			Limit:  limit,
		})
		if err != nil {
			return errs.Wrap(err, "list badge jobs")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTICKET\tSTATUS\tPRIORITY\tQUEUED AT\tATTEMPTS\tLAST ERROR")
		for _, job := range jobs {
			fmt.Fprintf(
				w,
				"%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
				job.ID,
				job.TicketID,
				job.Status,
				job.Priority,
				job.QueuedAt,
				job.Attempts,
				job.LastError,
			)
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write list output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(badgeCmd)
	badgeCmd.AddCommand(badgeWorkerCmd)
	badgeCmd.AddCommand(badgeRetryCmd)
	badgeCmd.AddCommand(badgeListCmd)

	badgeWorkerCmd.Flags().Duration("poll-interval", 2*time.Second, "Queue poll interval when idle")
	badgeListCmd.Flags().String("status", "", "Filter by status: pending, printing, completed or failed")
	badgeListCmd.Flags().Int("limit", 50, "Max jobs to list")
}
