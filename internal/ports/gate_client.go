package ports

import "context"

// SubmitResult is the server's deterministic answer for one submission.
// Outcome is one of the checkin outcome constants; for duplicates,
// CheckedInAt/StationID describe the winning admission.
type SubmitResult struct {
	Outcome     string
	CheckedInAt string
	StationID   string
	Reason      string
}

// TicketAdmissionView is the advisory snapshot a station caches locally.
// It is never authoritative: the server constraint decides admission.
type TicketAdmissionView struct {
	TicketID    string
	Known       bool
	Status      string
	Admitted    bool
	CheckedInAt string
	StationID   string
}

// GateClient is the station's transport to the server. Any returned error is
// treated as transient by the sync engine; permanent rejections come back as
// an invalid outcome, not an error.
type GateClient interface {
	SubmitCheckIn(ctx context.Context, record QueuedCheckIn) (SubmitResult, error)
	SendHeartbeat(ctx context.Context, state StationState) error
	LookupTicket(ctx context.Context, ticketID string) (TicketAdmissionView, error)
}
