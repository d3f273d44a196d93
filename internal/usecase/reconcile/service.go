package reconcile

import (
	"context"
	"errors"

	"gatehouse/internal/ports"
)

// Service is the server-side authority for admissions. Its correctness rests
// on the storage-level uniqueness of canonical_checkins.ticket_id; everything
// else here is bookkeeping around that constraint.
type Service struct {
	tickets   ports.TicketRepository
	canonical ports.CanonicalRepository
	badges    ports.BadgeQueue
	uow       ports.UnitOfWork
	publisher ports.EventPublisher
}

func NewService(
	tickets ports.TicketRepository,
	canonical ports.CanonicalRepository,
	badges ports.BadgeQueue,
	uow ports.UnitOfWork,
	publisher ports.EventPublisher,
) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Service{
		tickets:   tickets,
		canonical: canonical,
		badges:    badges,
		uow:       uow,
		publisher: publisher,
	}
}

type noopPublisher struct{}

func (noopPublisher) PublishAdmitted(context.Context, ports.CanonicalCheckIn) error { return nil }
func (noopPublisher) PublishBadgeQueued(context.Context, ports.BadgePrintJob) error { return nil }

// SeedTicket is the minimal surface the out-of-scope purchase flow uses to
// register tickets the core validates against.
func (s *Service) SeedTicket(ctx context.Context, ticket ports.Ticket) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	return s.tickets.CreateTicket(ctx, ticket)
}

// TicketView answers the advisory station lookup: current known admission
// state for one ticket.
func (s *Service) TicketView(ctx context.Context, ticketID string) (ports.TicketAdmissionView, error) {
	if ctx == nil {
		return ports.TicketAdmissionView{}, errors.New("context is required")
	}

	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ports.ErrTicketNotFound) {
			return ports.TicketAdmissionView{TicketID: ticketID, Known: false}, nil
		}
		return ports.TicketAdmissionView{}, err
	}

	view := ports.TicketAdmissionView{
		TicketID: ticket.ID,
		Known:    true,
		Status:   ticket.Status,
	}

	row, found, err := s.canonical.FindByTicket(ctx, ticketID)
	if err != nil {
		return ports.TicketAdmissionView{}, err
	}
	if found {
		view.Admitted = true
		view.CheckedInAt = row.CheckedInAt
		view.StationID = row.StationID
	}
	return view, nil
}

// EventStats exposes the per-event admission counters.
func (s *Service) EventStats(ctx context.Context, eventID string) (ports.EventStats, bool, error) {
	if ctx == nil {
		return ports.EventStats{}, false, errors.New("context is required")
	}
	return s.tickets.GetEventStats(ctx, eventID)
}
