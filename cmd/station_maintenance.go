package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
)

var stationCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge old synced records from the local queue",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		olderThanDays, _ := cmd.Flags().GetInt("older-than-days")

		removed, err := deps.Station.Cleanup(ctx, olderThanDays)
		if err != nil {
			return errs.Wrap(err, "cleanup local queue")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %d synced records older than %d days\n", removed, olderThanDays); err != nil {
			return errs.Wrap(err, "write cleanup output")
		}
		return nil
	}),
}

var stationExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump the local queue as YAML for diagnostics",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		outPath, _ := cmd.Flags().GetString("out")

		out := cmd.OutOrStdout()
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return errs.Wrapf(err, "create export file %q", outPath)
			}
			defer func() { _ = f.Close() }()
			out = f
		}

		if err := deps.Station.Export(ctx, out); err != nil {
			return errs.Wrap(err, "export local queue")
		}

		if outPath != "" {
			logging.Info(ctx, "local queue exported", slog.String("path", outPath))
		}
		return nil
	}),
}

var stationStuckCmd = &cobra.Command{
	Use:   "stuck",
	Short: "List check-ins stuck retrying past the attempts threshold",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		records, err := deps.Station.StuckRecords(ctx)
		if err != nil {
			return errs.Wrap(err, "list stuck check-ins")
		}

		if len(records) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no stuck check-ins"); err != nil {
				return errs.Wrap(err, "write stuck output")
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EVENT ID\tTICKET\tATTEMPTS\tLAST ATTEMPT\tLAST ERROR")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.TicketID, r.SyncAttempts, r.LastSyncAttempt, r.Error)
		}
		return errs.Wrap(w.Flush(), "write stuck output")
	}),
}

func init() {
	stationCmd.AddCommand(stationCleanupCmd)
	stationCmd.AddCommand(stationExportCmd)
	stationCmd.AddCommand(stationStuckCmd)

	stationCleanupCmd.Flags().Int("older-than-days", 7, "Remove synced records older than this many days")
	stationExportCmd.Flags().String("out", "", "Write YAML to this file instead of stdout")
}
