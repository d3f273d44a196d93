package gateclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"gatehouse/internal/errs"
	"gatehouse/internal/ports"
)

// Client is the station-side HTTP adapter for the server API. Callers bound
// each call with a context deadline; any transport or 5xx failure surfaces as
// an error, which the sync engine treats as transient.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ ports.GateClient = (*Client)(nil)

func New(baseURL string) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("server base url is required")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, errs.Wrap(err, "parse server base url")
	}

	return &Client{
		baseURL: trimmed,
		// No client-level timeout: per-call deadlines come from context.
		http: &http.Client{},
	}, nil
}

type submitRequest struct {
	ID              string `json:"id"`
	TicketID        string `json:"ticket_id"`
	StationID       string `json:"station_id"`
	ClientTimestamp string `json:"client_timestamp"`
	Method          string `json:"method"`
}

type submitResponse struct {
	Outcome     string `json:"outcome"`
	CheckedInAt string `json:"checked_in_at,omitempty"`
	StationID   string `json:"station_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (c *Client) SubmitCheckIn(ctx context.Context, record ports.QueuedCheckIn) (ports.SubmitResult, error) {
	var resp submitResponse
	err := c.postJSON(ctx, "/api/checkins", submitRequest{
		ID:              record.ID,
		TicketID:        record.TicketID,
		StationID:       record.StationID,
		ClientTimestamp: record.ClientTimestamp,
		Method:          record.Method,
	}, &resp)
	if err != nil {
		return ports.SubmitResult{}, err
	}

	return ports.SubmitResult{
		Outcome:     resp.Outcome,
		CheckedInAt: resp.CheckedInAt,
		StationID:   resp.StationID,
		Reason:      resp.Reason,
	}, nil
}

type heartbeatRequest struct {
	StationID        string `json:"station_id"`
	PendingSyncCount int    `json:"pending_sync_count"`
	StuckSyncCount   int    `json:"stuck_sync_count"`
	DeviceType       string `json:"device_type"`
	Timestamp        string `json:"timestamp"`
}

func (c *Client) SendHeartbeat(ctx context.Context, state ports.StationState) error {
	return c.postJSON(ctx, "/api/stations/heartbeat", heartbeatRequest{
		StationID:        state.StationID,
		PendingSyncCount: state.PendingSyncCount,
		StuckSyncCount:   state.StuckSyncCount,
		DeviceType:       state.DeviceType,
		Timestamp:        state.LastHeartbeat,
	}, nil)
}

type ticketResponse struct {
	TicketID    string `json:"ticket_id"`
	Status      string `json:"status"`
	Admitted    bool   `json:"admitted"`
	CheckedInAt string `json:"checked_in_at,omitempty"`
	StationID   string `json:"station_id,omitempty"`
}

func (c *Client) LookupTicket(ctx context.Context, ticketID string) (ports.TicketAdmissionView, error) {
	if ctx == nil {
		return ports.TicketAdmissionView{}, errors.New("context is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tickets/"+url.PathEscape(ticketID), nil)
	if err != nil {
		return ports.TicketAdmissionView{}, errs.Wrap(err, "build ticket lookup request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.TicketAdmissionView{}, errs.Wrap(err, "lookup ticket")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ports.TicketAdmissionView{TicketID: ticketID, Known: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return ports.TicketAdmissionView{}, fmt.Errorf("ticket lookup returned status %d", resp.StatusCode)
	}

	var body ticketResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return ports.TicketAdmissionView{}, errs.Wrap(err, "decode ticket response")
	}

	return ports.TicketAdmissionView{
		TicketID:    body.TicketID,
		Known:       true,
		Status:      body.Status,
		Admitted:    body.Admitted,
		CheckedInAt: body.CheckedInAt,
		StationID:   body.StationID,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return errs.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrapf(err, "post %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post %s returned status %d", path, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return errs.Wrap(err, "decode response")
	}
	return nil
}
