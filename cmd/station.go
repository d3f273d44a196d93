package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
	"gatehouse/internal/usecase/station"
)

var stationCmd = &cobra.Command{
	Use:   "station",
	Short: "Station-side check-in commands",
}

var stationScanCmd = &cobra.Command{
	Use:   "scan <ticket-code>",
	Short: "Capture one check-in into the local durable queue",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		method, _ := cmd.Flags().GetString("method")
		force, _ := cmd.Flags().GetBool("force")

		result, err := deps.Station.Capture(ctx, station.CaptureInput{
			Code:   cmd.Flags().Args()[0],
			Method: method,
			Force:  force,
		})
		if err != nil {
			return errs.Wrap(err, "capture check-in")
		}

		if result.AlreadyAdmitted {
			if _, err := fmt.Fprintf(
				cmd.OutOrStdout(),
				"ticket %s already admitted at %s by %s (use --force to queue anyway)\n",
				result.TicketID,
				result.CheckedInAt,
				result.StationID,
			); err != nil {
				return errs.Wrap(err, "write scan output")
			}
			return nil
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"queued check-in event=%s ticket=%s station=%s\n",
			result.EventID,
			result.TicketID,
			deps.Station.StationID(),
		); err != nil {
			return errs.Wrap(err, "write scan output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(stationCmd)
	stationCmd.AddCommand(stationScanCmd)

	stationScanCmd.Flags().String("method", "qr", "Check-in method: qr, manual or nfc")
	stationScanCmd.Flags().Bool("force", false, "Queue even when the local snapshot says already admitted")
}
