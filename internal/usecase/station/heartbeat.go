package station

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
	"gatehouse/internal/ports"
)

// HeartbeatOnce saves the station's own state locally and reports it to the
// server. The local save always happens; a failed send is returned so the
// run loop can track connectivity, but the state is not lost.
func (s *Service) HeartbeatOnce(ctx context.Context) (ports.StationState, error) {
	if ctx == nil {
		return ports.StationState{}, errors.New("context is required")
	}

	pending, err := s.queue.ListUnsynced(ctx, s.opts.StationID)
	if err != nil {
		return ports.StationState{}, errs.Wrap(err, "count pending check-ins")
	}

	state := ports.StationState{
		StationID:        s.opts.StationID,
		LastHeartbeat:    time.Now().UTC().Format(time.RFC3339Nano),
		PendingSyncCount: len(pending),
		StuckSyncCount:   s.countStuck(pending),
		DeviceType:       s.opts.DeviceType,
	}

	if err := s.queue.SaveStationState(ctx, state); err != nil {
		return ports.StationState{}, errs.Wrap(err, "save station state")
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.opts.HeartbeatTimeout)
	defer cancel()

	if err := s.client.SendHeartbeat(sendCtx, state); err != nil {
		return state, errs.Wrap(err, "send heartbeat")
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "station.heartbeat")),
		"heartbeat sent",
		slog.String("station_id", state.StationID),
		slog.Int("pending_sync_count", state.PendingSyncCount),
	)
	return state, nil
}
