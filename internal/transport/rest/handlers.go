package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/domain/checkin"
	"gatehouse/internal/errs"
	"gatehouse/internal/ports"
	"gatehouse/internal/usecase/reconcile"
)

const maxBodyBytes = 1 << 20

type submitCheckInRequest struct {
	ID              string `json:"id"`
	TicketID        string `json:"ticket_id"`
	StationID       string `json:"station_id"`
	ClientTimestamp string `json:"client_timestamp"`
	Method          string `json:"method"`
}

type submitCheckInResponse struct {
	Outcome     string `json:"outcome"`
	CheckedInAt string `json:"checked_in_at,omitempty"`
	StationID   string `json:"station_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (h *Handler) handleSubmitCheckIn(w http.ResponseWriter, r *http.Request) {
	var req submitCheckInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.reconcile.Submit(r.Context(), reconcile.SubmitInput{
		ID:              req.ID,
		TicketID:        req.TicketID,
		StationID:       req.StationID,
		ClientTimestamp: req.ClientTimestamp,
		Method:          req.Method,
	})
	if err != nil {
		switch {
		case errors.Is(err, checkin.ErrEventIDRequired),
			errors.Is(err, checkin.ErrTicketIDRequired),
			errors.Is(err, checkin.ErrStationIDRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logging.Error(r.Context(), "submit check-in failed", slog.Any("err", errs.Loggable(err)))
			writeError(w, http.StatusInternalServerError, "submit check-in failed")
		}
		return
	}

	// Every resolved outcome, including invalid, is a successful submission:
	// the station must stop retrying it.
	writeJSON(w, http.StatusOK, submitCheckInResponse{
		Outcome:     result.Outcome,
		CheckedInAt: result.CheckedInAt,
		StationID:   result.StationID,
		Reason:      result.Reason,
	})
}

type heartbeatRequest struct {
	StationID        string `json:"station_id"`
	PendingSyncCount int    `json:"pending_sync_count"`
	StuckSyncCount   int    `json:"stuck_sync_count"`
	DeviceType       string `json:"device_type"`
	Timestamp        string `json:"timestamp"`
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.StationID) == "" {
		writeError(w, http.StatusBadRequest, "station_id is required")
		return
	}

	// The client timestamp is advisory; liveness uses the server clock
	// assigned inside RecordHeartbeat.
	state, err := h.monitor.RecordHeartbeat(r.Context(), ports.StationState{
		StationID:        req.StationID,
		PendingSyncCount: req.PendingSyncCount,
		StuckSyncCount:   req.StuckSyncCount,
		DeviceType:       req.DeviceType,
	})
	if err != nil {
		logging.Error(r.Context(), "record heartbeat failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "record heartbeat failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"station_id":  state.StationID,
		"recorded_at": state.LastHeartbeat,
		"device_type": state.DeviceType,
	})
}

func (h *Handler) handleListStations(w http.ResponseWriter, r *http.Request) {
	views, err := h.monitor.ListStations(r.Context())
	if err != nil {
		logging.Error(r.Context(), "list stations failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "list stations failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": views})
}

type seedTicketRequest struct {
	ID           string `json:"id"`
	EventID      string `json:"event_id"`
	AttendeeName string `json:"attendee_name"`
	Tier         string `json:"tier"`
	Status       string `json:"status"`
}

func (h *Handler) handleSeedTicket(w http.ResponseWriter, r *http.Request) {
	var req seedTicketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.EventID) == "" {
		writeError(w, http.StatusBadRequest, "id and event_id are required")
		return
	}

	status := req.Status
	if status == "" {
		status = ports.TicketActive
	}
	err := h.reconcile.SeedTicket(r.Context(), ports.Ticket{
		ID:           req.ID,
		EventID:      req.EventID,
		AttendeeName: req.AttendeeName,
		Tier:         req.Tier,
		Status:       status,
	})
	if err != nil {
		logging.Error(r.Context(), "seed ticket failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "seed ticket failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

type ticketResponse struct {
	TicketID    string `json:"ticket_id"`
	Status      string `json:"status"`
	Admitted    bool   `json:"admitted"`
	CheckedInAt string `json:"checked_in_at,omitempty"`
	StationID   string `json:"station_id,omitempty"`
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	view, err := h.reconcile.TicketView(r.Context(), ticketID)
	if err != nil {
		logging.Error(r.Context(), "ticket lookup failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "ticket lookup failed")
		return
	}
	if !view.Known {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}

	writeJSON(w, http.StatusOK, ticketResponse{
		TicketID:    view.TicketID,
		Status:      view.Status,
		Admitted:    view.Admitted,
		CheckedInAt: view.CheckedInAt,
		StationID:   view.StationID,
	})
}

func (h *Handler) handleEventStats(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	stats, found, err := h.reconcile.EventStats(r.Context(), eventID)
	if err != nil {
		logging.Error(r.Context(), "event stats failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "event stats failed")
		return
	}
	if !found {
		stats = ports.EventStats{EventID: eventID}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event_id":   stats.EventID,
		"checked_in": stats.CheckedIn,
		"updated_at": stats.UpdatedAt,
	})
}

type badgeJobResponse struct {
	ID        string `json:"id"`
	TicketID  string `json:"ticket_id"`
	Status    string `json:"status"`
	Priority  int    `json:"priority"`
	QueuedAt  string `json:"queued_at"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

func toBadgeJobResponse(job ports.BadgePrintJob) badgeJobResponse {
	return badgeJobResponse{
		ID:        job.ID,
		TicketID:  job.TicketID,
		Status:    job.Status,
		Priority:  job.Priority,
		QueuedAt:  job.QueuedAt,
		Attempts:  job.Attempts,
		LastError: job.LastError,
	}
}

func (h *Handler) handleListBadgeJobs(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && !checkin.ValidJobStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown badge job status")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	jobs, err := h.badges.List(r.Context(), ports.BadgeJobFilter{
		Status:   status,
		TicketID: strings.TrimSpace(r.URL.Query().Get("ticket_id")),
		Limit:    limit,
	})
	if err != nil {
		logging.Error(r.Context(), "list badge jobs failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "list badge jobs failed")
		return
	}

	out := make([]badgeJobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toBadgeJobResponse(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (h *Handler) handleBadgeJobCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.badges.Counts(r.Context())
	if err != nil {
		logging.Error(r.Context(), "badge job counts failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "badge job counts failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (h *Handler) handleRetryBadgeJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.badges.Retry(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "badge job not found")
		case errors.Is(err, checkin.ErrInvalidJobTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			logging.Error(r.Context(), "retry badge job failed", slog.Any("err", errs.Loggable(err)))
			writeError(w, http.StatusInternalServerError, "retry badge job failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, toBadgeJobResponse(job))
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read payload")
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return false
	}
	return true
}
