package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/domain/checkin"
	"gatehouse/internal/errs"
	"gatehouse/internal/ports"
)

type SubmitInput struct {
	ID              string
	TicketID        string
	StationID       string
	ClientTimestamp string
	Method          string
}

// Badge priority by ticket tier; lower prints sooner. Unknown tiers fall to
// the general lane.
var tierPriority = map[string]int{
	"vip":     0,
	"speaker": 0,
	"staff":   1,
	"general": 2,
}

const defaultPriority = 2

type badgeData struct {
	TicketID     string `json:"ticket_id"`
	EventID      string `json:"event_id"`
	AttendeeName string `json:"attendee_name"`
	Tier         string `json:"tier"`
}

// Submit processes one check-in event under at-most-once semantics. It is
// replay-safe: the same event id always resolves to the same outcome, and at
// most one canonical row ever exists per ticket.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (ports.SubmitResult, error) {
	if ctx == nil {
		return ports.SubmitResult{}, errors.New("context is required")
	}

	if strings.TrimSpace(input.ID) == "" {
		return ports.SubmitResult{}, checkin.ErrEventIDRequired
	}
	if strings.TrimSpace(input.TicketID) == "" {
		return ports.SubmitResult{}, checkin.ErrTicketIDRequired
	}
	if strings.TrimSpace(input.StationID) == "" {
		return ports.SubmitResult{}, checkin.ErrStationIDRequired
	}

	method, err := checkin.NormalizeMethod(input.Method)
	if err != nil {
		// Malformed method is a permanent rejection, not a transport error.
		return ports.SubmitResult{
			Outcome: checkin.OutcomeInvalid,
			Reason:  err.Error(),
		}, nil
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "reconcile.submit"),
		slog.String("event_id", input.ID),
		slog.String("ticket_id", input.TicketID),
		slog.String("station_id", input.StationID),
	)

	var result ports.SubmitResult
	var admittedRow ports.CanonicalCheckIn
	var queuedJob ports.BadgePrintJob
	var badgeQueued bool

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		// Replay of a previously processed submission: return the stored
		// outcome unchanged.
		own, found, err := s.canonical.FindBySourceEvent(txCtx, input.ID)
		if err != nil {
			return err
		}
		if found {
			result = ports.SubmitResult{
				Outcome:     checkin.OutcomeAdmitted,
				CheckedInAt: own.CheckedInAt,
				StationID:   own.StationID,
			}
			return nil
		}

		ticket, err := s.tickets.GetTicket(txCtx, input.TicketID)
		if err != nil {
			if errors.Is(err, ports.ErrTicketNotFound) {
				result = ports.SubmitResult{
					Outcome: checkin.OutcomeInvalid,
					Reason:  checkin.ErrTicketUnknown.Error(),
				}
				return nil
			}
			return err
		}
		if ticket.Status == ports.TicketCancelled {
			result = ports.SubmitResult{
				Outcome: checkin.OutcomeInvalid,
				Reason:  checkin.ErrTicketCancelled.Error(),
			}
			return nil
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		row := ports.CanonicalCheckIn{
			TicketID:      input.TicketID,
			CheckedInAt:   now,
			Method:        method,
			StationID:     input.StationID,
			SourceEventID: input.ID,
		}

		inserted, err := s.canonical.Create(txCtx, row)
		if err != nil {
			return err
		}
		if !inserted {
			// Lost the race: whichever write landed first holds the ticket.
			winner, found, err := s.canonical.FindByTicket(txCtx, input.TicketID)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("ticket %s admitted but winner row missing", input.TicketID)
			}
			result = ports.SubmitResult{
				Outcome:     checkin.OutcomeDuplicate,
				CheckedInAt: winner.CheckedInAt,
				StationID:   winner.StationID,
			}
			return nil
		}

		data, err := json.Marshal(badgeData{
			TicketID:     ticket.ID,
			EventID:      ticket.EventID,
			AttendeeName: ticket.AttendeeName,
			Tier:         ticket.Tier,
		})
		if err != nil {
			return errs.Wrap(err, "marshal badge data")
		}

		priority, ok := tierPriority[ticket.Tier]
		if !ok {
			priority = defaultPriority
		}
		job := ports.BadgePrintJob{
			ID:        uuid.NewString(),
			TicketID:  ticket.ID,
			Status:    checkin.JobPending,
			Priority:  priority,
			QueuedAt:  now,
			BadgeData: string(data),
		}
		jobInserted, err := s.badges.Enqueue(txCtx, job)
		if err != nil {
			return errs.Wrap(err, "enqueue badge job")
		}

		if err := s.tickets.IncrementCheckedIn(txCtx, ticket.EventID, now); err != nil {
			return errs.Wrap(err, "bump event stats")
		}

		result = ports.SubmitResult{
			Outcome:     checkin.OutcomeAdmitted,
			CheckedInAt: now,
			StationID:   input.StationID,
		}
		admittedRow = row
		queuedJob = job
		badgeQueued = jobInserted
		return nil
	})
	if err != nil {
		return ports.SubmitResult{}, errs.Wrap(err, "submit check-in")
	}

	// Post-commit notifications; failures here never affect the admission.
	if admittedRow.TicketID != "" {
		_ = s.publisher.PublishAdmitted(ctx, admittedRow)
		if badgeQueued {
			_ = s.publisher.PublishBadgeQueued(ctx, queuedJob)
		}
		logging.Info(logCtx, "ticket admitted", slog.String("checked_in_at", admittedRow.CheckedInAt))
	}

	return result, nil
}
