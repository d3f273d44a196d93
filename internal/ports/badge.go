package ports

import (
	"context"
	"errors"
)

var ErrJobNotFound = errors.New("badge job not found")

// BadgePrintJob is a unit of print work created on first admission of a
// ticket. BadgeData is a JSON blob (attendee name, tier) rendered by the
// worker; lower Priority dequeues first, FIFO by QueuedAt within a priority.
type BadgePrintJob struct {
	ID        string
	TicketID  string
	Status    string
	Priority  int
	QueuedAt  string
	BadgeData string
	Attempts  int
	LastError string
}

type BadgeJobFilter struct {
	Status   string
	TicketID string
	Limit    int
}

type BadgeQueue interface {
	// Enqueue creates the job unless one already exists for the ticket
	// (one job per admission, ever). Reports whether a row was inserted.
	Enqueue(ctx context.Context, job BadgePrintJob) (bool, error)
	// ClaimNext atomically moves the best pending job to printing.
	ClaimNext(ctx context.Context) (BadgePrintJob, bool, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, message string) error
	// Retry moves a failed job back to pending; attempts are incremented,
	// never reset.
	Retry(ctx context.Context, id string) error
	GetJob(ctx context.Context, id string) (BadgePrintJob, error)
	List(ctx context.Context, filter BadgeJobFilter) ([]BadgePrintJob, error)
	Counts(ctx context.Context) (map[string]int64, error)
}

// RenderedBadge is what a print driver receives: layout-ordered text lines.
type RenderedBadge struct {
	JobID    string
	TicketID string
	Lines    []string
}

// BadgePrinter abstracts the print hardware. The driver itself is out of
// scope; implementations report success or a hardware fault.
type BadgePrinter interface {
	Print(ctx context.Context, badge RenderedBadge) error
}
