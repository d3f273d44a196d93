package ports

import "context"

// EventPublisher pushes admission and badge events to downstream consumers
// (ops dashboards, message bus). Publishing happens after commit and failures
// must never roll back an admission.
type EventPublisher interface {
	PublishAdmitted(ctx context.Context, row CanonicalCheckIn) error
	PublishBadgeQueued(ctx context.Context, job BadgePrintJob) error
}
