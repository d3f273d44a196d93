package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
	"gatehouse/internal/ports"
)

const (
	opsWriteWait      = 10 * time.Second
	opsClientBacklog  = 16
	eventTypeAdmitted = "checkin.admitted"
	eventTypeBadge    = "badge.queued"
)

// opsEvent is the envelope pushed to dashboard subscribers.
type opsEvent struct {
	Type string `json:"type"`
	At   string `json:"at"`
	Data any    `json:"data"`
}

// OpsHub fans admission and badge events out to websocket subscribers. It is
// best-effort: a slow subscriber is dropped rather than allowed to block the
// reconciliation path.
type OpsHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*opsClient]struct{}
}

var _ ports.EventPublisher = (*OpsHub)(nil)

type opsClient struct {
	conn *websocket.Conn
	send chan opsEvent
}

func NewOpsHub() *OpsHub {
	return &OpsHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*opsClient]struct{}),
	}
}

func (h *OpsHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(r.Context(), "websocket upgrade failed", slog.Any("err", errs.Loggable(err)))
		return
	}

	client := &opsClient{
		conn: conn,
		send: make(chan opsEvent, opsClientBacklog),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(client)
	h.readLoop(client)
}

// readLoop discards inbound frames; the feed is one-way. It exists to detect
// the close handshake and free the client.
func (h *OpsHub) readLoop(client *opsClient) {
	defer h.drop(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *OpsHub) writeLoop(client *opsClient) {
	for event := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(opsWriteWait))
		raw, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if err := client.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			h.drop(client)
			return
		}
	}
	_ = client.conn.Close()
}

func (h *OpsHub) drop(client *opsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	_ = client.conn.Close()
}

func (h *OpsHub) broadcast(event opsEvent) {
	h.mu.Lock()
	stale := make([]*opsClient, 0)
	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			// Backlog full: the subscriber stopped draining.
			stale = append(stale, client)
		}
	}
	h.mu.Unlock()

	for _, client := range stale {
		h.drop(client)
	}
}

type admittedEvent struct {
	TicketID    string `json:"ticket_id"`
	CheckedInAt string `json:"checked_in_at"`
	Method      string `json:"method"`
	StationID   string `json:"station_id"`
}

func (h *OpsHub) PublishAdmitted(ctx context.Context, row ports.CanonicalCheckIn) error {
	if ctx == nil || ctx.Err() != nil {
		return nil
	}
	h.broadcast(opsEvent{
		Type: eventTypeAdmitted,
		At:   time.Now().UTC().Format(time.RFC3339Nano),
		Data: admittedEvent{
			TicketID:    row.TicketID,
			CheckedInAt: row.CheckedInAt,
			Method:      row.Method,
			StationID:   row.StationID,
		},
	})
	return nil
}

type badgeQueuedEvent struct {
	JobID    string `json:"job_id"`
	TicketID string `json:"ticket_id"`
	Priority int    `json:"priority"`
	QueuedAt string `json:"queued_at"`
}

func (h *OpsHub) PublishBadgeQueued(ctx context.Context, job ports.BadgePrintJob) error {
	if ctx == nil || ctx.Err() != nil {
		return nil
	}
	h.broadcast(opsEvent{
		Type: eventTypeBadge,
		At:   time.Now().UTC().Format(time.RFC3339Nano),
		Data: badgeQueuedEvent{
			JobID:    job.ID,
			TicketID: job.TicketID,
			Priority: job.Priority,
			QueuedAt: job.QueuedAt,
		},
	})
	return nil
}

// Close drops every subscriber. Used on server shutdown.
func (h *OpsHub) Close() {
	h.mu.Lock()
	clients := make([]*opsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.drop(client)
	}
}
