package badge

import (
	"context"
	"errors"

	"gatehouse/internal/ports"
)

// Service wraps the badge print queue for workers, the dashboard API, and
// operator commands. Printer faults stay inside this component: the
// underlying admission is never touched.
type Service struct {
	queue   ports.BadgeQueue
	printer ports.BadgePrinter
	layout  *LayoutProvider
}

func NewService(queue ports.BadgeQueue, printer ports.BadgePrinter, layout *LayoutProvider) *Service {
	if layout == nil {
		layout = NewLayoutProvider("")
	}
	return &Service{
		queue:   queue,
		printer: printer,
		layout:  layout,
	}
}

// Retry moves one failed job back to pending. Operator-triggered only; there
// is no automatic retry path.
func (s *Service) Retry(ctx context.Context, jobID string) (ports.BadgePrintJob, error) {
	if ctx == nil {
		return ports.BadgePrintJob{}, errors.New("context is required")
	}

	if err := s.queue.Retry(ctx, jobID); err != nil {
		return ports.BadgePrintJob{}, err
	}
	return s.queue.GetJob(ctx, jobID)
}

func (s *Service) List(ctx context.Context, filter ports.BadgeJobFilter) ([]ports.BadgePrintJob, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	return s.queue.List(ctx, filter)
}

func (s *Service) Counts(ctx context.Context) (map[string]int64, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	return s.queue.Counts(ctx)
}
