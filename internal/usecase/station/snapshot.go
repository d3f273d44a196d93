package station

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gatehouse/internal/errs"
	"gatehouse/internal/ports"
)

// ticketSnapshot is the cached, best-effort admission view of one ticket.
// Source records whether it came from the server or from an optimistic local
// capture; a server refresh always overwrites.
type ticketSnapshot struct {
	TicketID    string `json:"ticket_id"`
	Status      string `json:"status"`
	Admitted    bool   `json:"admitted"`
	CheckedInAt string `json:"checked_in_at,omitempty"`
	StationID   string `json:"station_id,omitempty"`
	Source      string `json:"source"`
	RefreshedAt string `json:"refreshed_at"`
}

const (
	snapshotSourceServer = "server"
	snapshotSourceLocal  = "local"
)

func snapshotKey(ticketID string) string {
	return "ticket:" + ticketID
}

func (s *Service) getSnapshot(ctx context.Context, ticketID string) (ticketSnapshot, bool, error) {
	raw, found, err := s.cache.Get(ctx, snapshotKey(ticketID))
	if err != nil {
		return ticketSnapshot{}, false, errs.Wrap(err, "read ticket snapshot")
	}
	if !found {
		return ticketSnapshot{}, false, nil
	}

	var snap ticketSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		// A corrupt snapshot entry is advisory data; treat as absent.
		return ticketSnapshot{}, false, nil
	}
	return snap, true, nil
}

func (s *Service) putSnapshot(ctx context.Context, snap ticketSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return errs.Wrap(err, "marshal ticket snapshot")
	}
	if err := s.cache.Set(ctx, snapshotKey(snap.TicketID), string(raw), 0); err != nil {
		return errs.Wrap(err, "store ticket snapshot")
	}
	return nil
}

// RefreshSnapshot pulls the server's current view of a ticket into the local
// cache. Advisory only: admission correctness never depends on it.
func (s *Service) RefreshSnapshot(ctx context.Context, ticketID string) (ports.TicketAdmissionView, error) {
	if ctx == nil {
		return ports.TicketAdmissionView{}, errors.New("context is required")
	}

	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return ports.TicketAdmissionView{}, errCodeRequired
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.opts.SubmitTimeout)
	defer cancel()

	view, err := s.client.LookupTicket(lookupCtx, ticketID)
	if err != nil {
		return ports.TicketAdmissionView{}, errs.Wrap(err, "lookup ticket")
	}
	if !view.Known {
		// Drop any stale local entry so the next capture re-validates server-side.
		_ = s.cache.Delete(ctx, snapshotKey(ticketID))
		return view, nil
	}

	if err := s.putSnapshot(ctx, ticketSnapshot{
		TicketID:    view.TicketID,
		Status:      view.Status,
		Admitted:    view.Admitted,
		CheckedInAt: view.CheckedInAt,
		StationID:   view.StationID,
		Source:      snapshotSourceServer,
		RefreshedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}); err != nil {
		return ports.TicketAdmissionView{}, err
	}
	return view, nil
}
