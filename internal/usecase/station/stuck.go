package station

import (
	"context"
	"errors"

	"gatehouse/internal/errs"
	"gatehouse/internal/ports"
)

// StuckRecords returns unsynced check-ins whose attempt count reached the
// configured threshold. The passes themselves back off by interval; this is
// the operator surface for records that keep failing anyway.
func (s *Service) StuckRecords(ctx context.Context) ([]ports.QueuedCheckIn, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	records, err := s.queue.ListUnsynced(ctx, s.opts.StationID)
	if err != nil {
		return nil, errs.Wrap(err, "list unsynced check-ins")
	}

	threshold := s.stuckThreshold()
	stuck := make([]ports.QueuedCheckIn, 0)
	for _, record := range records {
		if record.SyncAttempts >= threshold {
			stuck = append(stuck, record)
		}
	}
	return stuck, nil
}

func (s *Service) stuckThreshold() int {
	if s.opts.StuckAttemptsThreshold <= 0 {
		return 10
	}
	return s.opts.StuckAttemptsThreshold
}

func (s *Service) countStuck(records []ports.QueuedCheckIn) int {
	threshold := s.stuckThreshold()
	count := 0
	for _, record := range records {
		if record.SyncAttempts >= threshold {
			count++
		}
	}
	return count
}
