package badge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
)

// ProcessOne claims and prints a single job. Reports whether a job was
// available; print failures transition the job to failed and are not returned
// as errors, since the queue records them for the operator.
func (s *Service) ProcessOne(ctx context.Context) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if s.printer == nil {
		return false, errors.New("printer is required")
	}

	job, found, err := s.queue.ClaimNext(ctx)
	if err != nil {
		return false, errs.Wrap(err, "claim badge job")
	}
	if !found {
		return false, nil
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "badge.worker"),
		slog.String("job_id", job.ID),
		slog.String("ticket_id", job.TicketID),
	)

	rendered, err := s.layout.Render(job)
	if err != nil {
		if failErr := s.queue.MarkFailed(ctx, job.ID, err.Error()); failErr != nil {
			return true, errs.Wrap(failErr, "mark badge job failed")
		}
		logging.Warn(logCtx, "badge render failed", slog.Any("err", errs.Loggable(err)))
		return true, nil
	}

	if err := s.printer.Print(ctx, rendered); err != nil {
		if failErr := s.queue.MarkFailed(ctx, job.ID, err.Error()); failErr != nil {
			return true, errs.Wrap(failErr, "mark badge job failed")
		}
		logging.Warn(logCtx, "badge print failed", slog.Any("err", errs.Loggable(err)))
		return true, nil
	}

	if err := s.queue.MarkCompleted(ctx, job.ID); err != nil {
		return true, errs.Wrap(err, "mark badge job completed")
	}
	logging.Info(logCtx, "badge printed", slog.Int("attempts", job.Attempts))
	return true, nil
}

// RunWorker drains pending jobs, then polls. One job is claimed at a time so
// failures stay isolated and ordering holds.
func (s *Service) RunWorker(ctx context.Context, pollInterval time.Duration) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		processed, err := s.ProcessOne(ctx)
		if err != nil {
			logging.Error(ctx, "badge worker pass failed", slog.Any("err", errs.Loggable(err)))
		}
		if processed && err == nil {
			// More work may be pending; keep draining before sleeping.
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
