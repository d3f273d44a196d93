package station

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/domain/checkin"
	"gatehouse/internal/errs"
	"gatehouse/internal/ports"
)

type CaptureInput struct {
	// Code is the decoded ticket identifier from the QR/NFC payload or
	// manual entry.
	Code   string
	Method string
	// Force bypasses the local already-admitted short-circuit. The cache may
	// be stale; the server constraint still guarantees at-most-once.
	Force bool
}

type CaptureResult struct {
	EventID         string
	TicketID        string
	Queued          bool
	AlreadyAdmitted bool
	CheckedInAt     string
	StationID       string
}

// Capture turns one scan into a queued check-in event. The local snapshot
// check is an optimization to avoid queueing obvious duplicates; it is never
// the correctness mechanism.
func (s *Service) Capture(ctx context.Context, input CaptureInput) (CaptureResult, error) {
	if ctx == nil {
		return CaptureResult{}, errors.New("context is required")
	}

	ticketID := strings.TrimSpace(input.Code)
	if ticketID == "" {
		return CaptureResult{}, errCodeRequired
	}

	method, err := checkin.NormalizeMethod(input.Method)
	if err != nil {
		return CaptureResult{}, err
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "station.capture"),
		slog.String("ticket_id", ticketID),
		slog.String("station_id", s.opts.StationID),
	)

	snap, found, err := s.getSnapshot(ctx, ticketID)
	if err != nil {
		return CaptureResult{}, err
	}
	if found && snap.Admitted && !input.Force {
		logging.Info(logCtx, "ticket already admitted per local snapshot",
			slog.String("checked_in_at", snap.CheckedInAt),
			slog.String("admitted_by", snap.StationID),
		)
		return CaptureResult{
			TicketID:        ticketID,
			AlreadyAdmitted: true,
			CheckedInAt:     snap.CheckedInAt,
			StationID:       snap.StationID,
		}, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	record := ports.QueuedCheckIn{
		ID:              uuid.NewString(),
		TicketID:        ticketID,
		StationID:       s.opts.StationID,
		ClientTimestamp: now,
		Method:          method,
	}

	if err := s.queue.Enqueue(ctx, record); err != nil {
		// A failing local store means scans are silently lost; surface it as
		// a station-health fault, not a retryable condition.
		return CaptureResult{}, errs.Wrap(err, "enqueue check-in")
	}

	// Optimistic local view so a re-scan at this station short-circuits.
	if err := s.putSnapshot(ctx, ticketSnapshot{
		TicketID:    ticketID,
		Status:      snap.Status,
		Admitted:    true,
		CheckedInAt: now,
		StationID:   s.opts.StationID,
		Source:      snapshotSourceLocal,
		RefreshedAt: now,
	}); err != nil {
		logging.Warn(logCtx, "optimistic snapshot write failed", slog.Any("err", errs.Loggable(err)))
	}

	if err := s.updatePendingCount(ctx); err != nil {
		logging.Warn(logCtx, "pending count update failed", slog.Any("err", errs.Loggable(err)))
	}

	logging.Info(logCtx, "check-in queued", slog.String("event_id", record.ID), slog.String("method", method))
	return CaptureResult{
		EventID:     record.ID,
		TicketID:    ticketID,
		Queued:      true,
		CheckedInAt: now,
		StationID:   s.opts.StationID,
	}, nil
}

func (s *Service) updatePendingCount(ctx context.Context) error {
	pending, err := s.queue.ListUnsynced(ctx, s.opts.StationID)
	if err != nil {
		return err
	}

	state, found, err := s.queue.GetStationState(ctx, s.opts.StationID)
	if err != nil {
		return err
	}
	if !found {
		state = ports.StationState{
			StationID:     s.opts.StationID,
			DeviceType:    s.opts.DeviceType,
			LastHeartbeat: time.Now().UTC().Format(time.RFC3339Nano),
		}
	}
	state.PendingSyncCount = len(pending)
	state.StuckSyncCount = s.countStuck(pending)
	return s.queue.SaveStationState(ctx, state)
}
