package monitor

import (
	"context"
	"errors"
	"time"

	"gatehouse/internal/errs"
	"gatehouse/internal/ports"
)

// StationView is a directory row with liveness derived at read time from
// heartbeat age. Nothing ever writes an online flag; a station that stops
// heartbeating goes offline the moment its last beat ages past the threshold.
type StationView struct {
	StationID        string `json:"station_id"`
	LastHeartbeat    string `json:"last_heartbeat"`
	PendingSyncCount int    `json:"pending_sync_count"`
	StuckSyncCount   int    `json:"stuck_sync_count"`
	DeviceType       string `json:"device_type"`
	IsOnline         bool   `json:"is_online"`
	IsStuck          bool   `json:"is_stuck"`
}

type Options struct {
	OfflineAfter time.Duration
}

type Service struct {
	directory ports.StationDirectory
	opts      Options
	now       func() time.Time
}

func NewService(directory ports.StationDirectory, opts Options) *Service {
	if opts.OfflineAfter <= 0 {
		opts.OfflineAfter = 90 * time.Second
	}

	return &Service{
		directory: directory,
		opts:      opts,
		now:       time.Now,
	}
}

// RecordHeartbeat upserts the station row with a server-assigned timestamp.
// Client clocks are not trusted for liveness.
func (s *Service) RecordHeartbeat(ctx context.Context, state ports.StationState) (ports.StationState, error) {
	if ctx == nil {
		return ports.StationState{}, errors.New("context is required")
	}
	if state.StationID == "" {
		return ports.StationState{}, errors.New("station id is required")
	}

	state.LastHeartbeat = s.now().UTC().Format(time.RFC3339Nano)
	if err := s.directory.UpsertStation(ctx, state); err != nil {
		return ports.StationState{}, errs.Wrapf(err, "upsert station %s", state.StationID)
	}

	return state, nil
}

// ListStations returns every known station with is_online derived from
// heartbeat age against the configured threshold.
func (s *Service) ListStations(ctx context.Context) ([]StationView, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	states, err := s.directory.ListStations(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "list stations")
	}

	now := s.now()
	views := make([]StationView, 0, len(states))
	for _, state := range states {
		views = append(views, StationView{
			StationID:        state.StationID,
			LastHeartbeat:    state.LastHeartbeat,
			PendingSyncCount: state.PendingSyncCount,
			StuckSyncCount:   state.StuckSyncCount,
			DeviceType:       state.DeviceType,
			IsOnline:         s.isOnline(now, state.LastHeartbeat),
			IsStuck:          state.StuckSyncCount > 0,
		})
	}

	return views, nil
}

func (s *Service) isOnline(now time.Time, lastHeartbeat string) bool {
	if lastHeartbeat == "" {
		return false
	}

	beat, err := time.Parse(time.RFC3339Nano, lastHeartbeat)
	if err != nil {
		// An unparseable timestamp reads as offline rather than failing the listing.
		return false
	}

	return now.Sub(beat) < s.opts.OfflineAfter
}
