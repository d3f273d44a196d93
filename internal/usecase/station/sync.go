package station

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gatehouse/internal/bootstrap/config"
	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/domain/checkin"
	"gatehouse/internal/errs"
)

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Submitted int
	Admitted  int
	Duplicate int
	Parked    int
	Failed    int
}

// SyncOnce drains the local queue to the server. Exactly one pass runs at a
// time; a second caller gets ErrSyncInProgress instead of duplicate in-flight
// submissions. Each submission is bounded by the configured per-record
// timeout, so one hung call cannot stall the rest of the pass.
func (s *Service) SyncOnce(ctx context.Context) (SyncResult, error) {
	if ctx == nil {
		return SyncResult{}, errors.New("context is required")
	}

	if !s.syncMu.TryLock() {
		return SyncResult{}, ErrSyncInProgress
	}
	defer s.syncMu.Unlock()

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "station.sync"),
		slog.String("station_id", s.opts.StationID),
	)

	records, err := s.queue.ListUnsynced(ctx, s.opts.StationID)
	if err != nil {
		return SyncResult{}, errs.Wrap(err, "list unsynced check-ins")
	}

	var result SyncResult
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, errs.Wrap(err, "sync pass cancelled")
		}

		result.Submitted++

		submitCtx, cancel := context.WithTimeout(ctx, s.opts.SubmitTimeout)
		outcome, submitErr := s.client.SubmitCheckIn(submitCtx, record)
		cancel()

		if submitErr != nil {
			// Transient: network, timeout, server unavailable. The record
			// stays unsynced for the next pass.
			if err := s.queue.RecordSyncError(ctx, record.ID, submitErr.Error()); err != nil {
				return result, errs.Wrap(err, "record sync error")
			}
			result.Failed++
			logging.Warn(logCtx, "submission failed",
				slog.String("event_id", record.ID),
				slog.Any("err", errs.Loggable(submitErr)),
			)
			continue
		}

		if !checkin.OutcomeIsTerminal(outcome.Outcome) {
			msg := fmt.Sprintf("unexpected outcome %q", outcome.Outcome)
			if err := s.queue.RecordSyncError(ctx, record.ID, msg); err != nil {
				return result, errs.Wrap(err, "record sync error")
			}
			result.Failed++
			continue
		}

		switch outcome.Outcome {
		case checkin.OutcomeAdmitted:
			if err := s.queue.MarkSynced(ctx, record.ID); err != nil {
				return result, errs.Wrap(err, "mark synced")
			}
			result.Admitted++
			s.noteServerAdmission(ctx, record.TicketID, outcome.CheckedInAt, outcome.StationID)

		case checkin.OutcomeDuplicate:
			// Success-but-superseded: the ticket was admitted elsewhere first.
			if err := s.queue.MarkSynced(ctx, record.ID); err != nil {
				return result, errs.Wrap(err, "mark synced")
			}
			result.Duplicate++
			s.noteServerAdmission(ctx, record.TicketID, outcome.CheckedInAt, outcome.StationID)
			logging.Info(logCtx, "ticket already admitted",
				slog.String("event_id", record.ID),
				slog.String("ticket_id", record.TicketID),
				slog.String("checked_in_at", outcome.CheckedInAt),
				slog.String("admitted_by", outcome.StationID),
			)

		default:
			// Invalid: a permanent rejection the policy decides how to hold.
			reason := outcome.Reason
			if reason == "" {
				reason = "rejected by server"
			}
			if err := s.queue.RecordSyncError(ctx, record.ID, reason); err != nil {
				return result, errs.Wrap(err, "record rejection")
			}
			if s.opts.PermanentFailurePolicy == config.PermanentFailureRetry {
				// Operator opted into indefinite retry for rejections.
				result.Failed++
				continue
			}
			// Park: stop retrying, keep the record visible with its error.
			if err := s.queue.MarkSynced(ctx, record.ID); err != nil {
				return result, errs.Wrap(err, "park rejected check-in")
			}
			result.Parked++
			logging.Warn(logCtx, "check-in rejected and parked",
				slog.String("event_id", record.ID),
				slog.String("ticket_id", record.TicketID),
				slog.String("reason", reason),
			)
		}
	}

	if err := s.updatePendingCount(ctx); err != nil {
		logging.Warn(logCtx, "pending count update failed", slog.Any("err", errs.Loggable(err)))
	}

	logging.Info(logCtx, "sync pass finished",
		slog.Int("submitted", result.Submitted),
		slog.Int("admitted", result.Admitted),
		slog.Int("duplicate", result.Duplicate),
		slog.Int("parked", result.Parked),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

// noteServerAdmission records the authoritative admission in the local
// snapshot so later scans at this station show the real winner.
func (s *Service) noteServerAdmission(ctx context.Context, ticketID string, checkedInAt string, stationID string) {
	snap := ticketSnapshot{
		TicketID:    ticketID,
		Admitted:    true,
		CheckedInAt: checkedInAt,
		StationID:   stationID,
		Source:      snapshotSourceServer,
		RefreshedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.putSnapshot(ctx, snap); err != nil {
		logging.Warn(ctx, "snapshot update failed", slog.Any("err", errs.Loggable(err)))
	}
}
