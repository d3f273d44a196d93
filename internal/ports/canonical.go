package ports

import (
	"context"
	"errors"
)

var ErrTicketNotFound = errors.New("ticket not found")

// Ticket is the server-side ticket row the core validates against. Creation
// belongs to the out-of-scope purchase flow; the core only reads it (plus a
// minimal seeding surface for fixtures).
type Ticket struct {
	ID           string
	EventID      string
	AttendeeName string
	Tier         string
	Status       string
}

// Ticket status values.
const (
	TicketActive    = "active"
	TicketCancelled = "cancelled"
)

// CanonicalCheckIn is the single authoritative admission row for a ticket.
// SourceEventID records which QueuedCheckIn won the race.
type CanonicalCheckIn struct {
	TicketID      string
	CheckedInAt   string
	Method        string
	StationID     string
	SourceEventID string
}

// EventStats are per-event aggregate counters bumped on first admission.
type EventStats struct {
	EventID   string
	CheckedIn int64
	UpdatedAt string
}

type TicketRepository interface {
	GetTicket(ctx context.Context, id string) (Ticket, error)
	CreateTicket(ctx context.Context, ticket Ticket) error
	IncrementCheckedIn(ctx context.Context, eventID string, at string) error
	GetEventStats(ctx context.Context, eventID string) (EventStats, bool, error)
}

// CanonicalRepository persists admission rows under a storage-level unique
// constraint on ticket_id. Create is the race arbiter: it reports false when
// another submission already holds the ticket.
type CanonicalRepository interface {
	FindBySourceEvent(ctx context.Context, sourceEventID string) (CanonicalCheckIn, bool, error)
	FindByTicket(ctx context.Context, ticketID string) (CanonicalCheckIn, bool, error)
	Create(ctx context.Context, row CanonicalCheckIn) (bool, error)
}

// StationDirectory is the server-side view of station heartbeats.
type StationDirectory interface {
	UpsertStation(ctx context.Context, state StationState) error
	ListStations(ctx context.Context) ([]StationState, error)
}
