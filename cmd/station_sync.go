package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
	"gatehouse/internal/usecase/station"
)

var stationSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass against the server",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		result, err := deps.Station.SyncOnce(ctx)
		if err != nil {
			return errs.Wrap(err, "sync pass")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"sync submitted=%d admitted=%d duplicate=%d parked=%d failed=%d\n",
			result.Submitted,
			result.Admitted,
			result.Duplicate,
			result.Parked,
			result.Failed,
		); err != nil {
			return errs.Wrap(err, "write sync output")
		}
		return nil
	}),
}

var stationRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the continuous sync and heartbeat loop",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		syncInterval, _ := cmd.Flags().GetDuration("sync-interval")
		heartbeatInterval, _ := cmd.Flags().GetDuration("heartbeat-interval")

		if syncInterval <= 0 {
			syncInterval = deps.App.Config.Sync.Interval
		}
		if heartbeatInterval <= 0 {
			heartbeatInterval = deps.App.Config.Heartbeat.Interval
		}

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logging.Info(
			ctx,
			"station loop started",
			slog.String("station_id", deps.Station.StationID()),
			slog.Duration("sync_interval", syncInterval),
			slog.Duration("heartbeat_interval", heartbeatInterval),
		)

		runSync := func() {
			result, err := deps.Station.SyncOnce(ctx)
			if err != nil {
				if errors.Is(err, station.ErrSyncInProgress) {
					return
				}
				// The queue is durable; a failed pass just waits for the next tick.
				logging.Warn(ctx, "sync pass failed", slog.Any("err", errs.Loggable(err)))
				return
			}
			if result.Submitted > 0 {
				logging.Info(
					ctx,
					"sync pass finished",
					slog.Int("submitted", result.Submitted),
					slog.Int("admitted", result.Admitted),
					slog.Int("duplicate", result.Duplicate),
					slog.Int("parked", result.Parked),
					slog.Int("failed", result.Failed),
				)
			}
			if stuck, err := deps.Station.StuckRecords(ctx); err == nil && len(stuck) > 0 {
				logging.Warn(
					ctx,
					"check-ins stuck retrying, operator attention needed",
					slog.Int("count", len(stuck)),
					slog.String("event_id", stuck[0].ID),
				)
			}
		}

		online := false
		runHeartbeat := func() {
			if _, err := deps.Station.HeartbeatOnce(ctx); err != nil {
				if online {
					logging.Warn(ctx, "server unreachable", slog.Any("err", errs.Loggable(err)))
				}
				online = false
				return
			}
			if !online {
				// Connectivity regained: flush the backlog now instead of
				// waiting for the next sync tick.
				logging.Info(ctx, "server reachable, flushing queue")
				runSync()
			}
			online = true
		}

		runHeartbeat()
		runSync()

		syncTicker := time.NewTicker(syncInterval)
		defer syncTicker.Stop()
		heartbeatTicker := time.NewTicker(heartbeatInterval)
		defer heartbeatTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				logging.Info(ctx, "station loop stopped")
				return nil
			case <-syncTicker.C:
				runSync()
			case <-heartbeatTicker.C:
				runHeartbeat()
			}
		}
	}),
}

func init() {
	stationCmd.AddCommand(stationSyncCmd)
	stationCmd.AddCommand(stationRunCmd)

	stationRunCmd.Flags().Duration("sync-interval", 0, "Sync loop interval (defaults to sync.interval from config)")
	stationRunCmd.Flags().Duration("heartbeat-interval", 0, "Heartbeat interval (defaults to heartbeat.interval from config)")
}
