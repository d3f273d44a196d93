package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
	"gatehouse/internal/usecase/badge"
	"gatehouse/internal/usecase/monitor"
	"gatehouse/internal/usecase/reconcile"
)

// Handler exposes the reconciliation, monitoring and badge services over
// HTTP. It is the only inbound surface of the server process.
type Handler struct {
	reconcile *reconcile.Service
	monitor   *monitor.Service
	badges    *badge.Service
	hub       *OpsHub
}

func NewHandler(reconcileSvc *reconcile.Service, monitorSvc *monitor.Service, badgeSvc *badge.Service, hub *OpsHub) *Handler {
	return &Handler{
		reconcile: reconcileSvc,
		monitor:   monitorSvc,
		badges:    badgeSvc,
		hub:       hub,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/checkins", h.handleSubmitCheckIn)

		r.Post("/stations/heartbeat", h.handleHeartbeat)
		r.Get("/stations", h.handleListStations)

		r.Post("/tickets", h.handleSeedTicket)
		r.Get("/tickets/{ticketID}", h.handleGetTicket)
		r.Get("/events/{eventID}/stats", h.handleEventStats)

		r.Get("/badge-jobs", h.handleListBadgeJobs)
		r.Get("/badge-jobs/counts", h.handleBadgeJobCounts)
		r.Post("/badge-jobs/{jobID}/retry", h.handleRetryBadgeJob)
	})

	if h.hub != nil {
		r.Get("/ws/ops", h.hub.ServeWS)
	}

	return r
}

// Server wraps the HTTP listener with graceful shutdown.
type Server struct {
	http *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "rest.server"))
	logging.Info(logCtx, "http server started", slog.String("addr", s.http.Addr))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error(logCtx, "http server failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "serve http")
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
