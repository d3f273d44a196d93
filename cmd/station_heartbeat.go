package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
)

var stationHeartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Send one heartbeat to the server",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		state, err := deps.Station.HeartbeatOnce(ctx)
		if err != nil {
			// The local state row is saved even when the server is unreachable.
			logging.Warn(ctx, "heartbeat send failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "send heartbeat")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"heartbeat sent station=%s pending=%d at=%s\n",
			state.StationID,
			state.PendingSyncCount,
			state.LastHeartbeat,
		); err != nil {
			return errs.Wrap(err, "write heartbeat output")
		}
		return nil
	}),
}

func init() {
	stationCmd.AddCommand(stationHeartbeatCmd)
}
