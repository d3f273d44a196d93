package monitor

import (
	"context"
	"testing"
	"time"

	"gatehouse/internal/ports"
)

type memoryDirectory struct {
	states map[string]ports.StationState
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{states: make(map[string]ports.StationState)}
}

func (d *memoryDirectory) UpsertStation(_ context.Context, state ports.StationState) error {
	d.states[state.StationID] = state
	return nil
}

func (d *memoryDirectory) ListStations(_ context.Context) ([]ports.StationState, error) {
	items := make([]ports.StationState, 0, len(d.states))
	for _, state := range d.states {
		items = append(items, state)
	}
	return items, nil
}

func TestRecordHeartbeatUsesServerClock(t *testing.T) {
	dir := newMemoryDirectory()
	svc := NewService(dir, Options{OfflineAfter: 90 * time.Second})
	serverNow := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return serverNow }

	state, err := svc.RecordHeartbeat(context.Background(), ports.StationState{
		StationID:        "station-1",
		LastHeartbeat:    "2020-01-01T00:00:00Z",
		PendingSyncCount: 4,
		DeviceType:       "kiosk",
	})
	if err != nil {
		t.Fatalf("RecordHeartbeat() error = %v", err)
	}
	if state.LastHeartbeat != serverNow.Format(time.RFC3339Nano) {
		t.Fatalf("client clock trusted: %s", state.LastHeartbeat)
	}
	if dir.states["station-1"].PendingSyncCount != 4 {
		t.Fatalf("stored state = %+v", dir.states["station-1"])
	}
}

func TestRecordHeartbeatRequiresStationID(t *testing.T) {
	svc := NewService(newMemoryDirectory(), Options{})

	if _, err := svc.RecordHeartbeat(context.Background(), ports.StationState{}); err == nil {
		t.Fatalf("RecordHeartbeat() error = nil")
	}
}

func TestListStationsDerivesOnlineAtReadTime(t *testing.T) {
	dir := newMemoryDirectory()
	svc := NewService(dir, Options{OfflineAfter: 90 * time.Second})
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	fresh := now.Add(-30 * time.Second).Format(time.RFC3339Nano)
	stale := now.Add(-5 * time.Minute).Format(time.RFC3339Nano)
	boundary := now.Add(-90 * time.Second).Format(time.RFC3339Nano)

	_ = dir.UpsertStation(context.Background(), ports.StationState{StationID: "fresh", LastHeartbeat: fresh})
	_ = dir.UpsertStation(context.Background(), ports.StationState{StationID: "stale", LastHeartbeat: stale})
	_ = dir.UpsertStation(context.Background(), ports.StationState{StationID: "boundary", LastHeartbeat: boundary})
	_ = dir.UpsertStation(context.Background(), ports.StationState{StationID: "silent"})
	_ = dir.UpsertStation(context.Background(), ports.StationState{StationID: "garbled", LastHeartbeat: "yesterday-ish"})

	views, err := svc.ListStations(context.Background())
	if err != nil {
		t.Fatalf("ListStations() error = %v", err)
	}

	online := make(map[string]bool, len(views))
	for _, view := range views {
		online[view.StationID] = view.IsOnline
	}
	if !online["fresh"] {
		t.Fatalf("fresh station offline")
	}
	for _, id := range []string{"stale", "boundary", "silent", "garbled"} {
		if online[id] {
			t.Fatalf("station %s reported online", id)
		}
	}

	// Nothing is written back: liveness flips purely by the passage of time.
	svc.now = func() time.Time { return now.Add(2 * time.Minute) }
	views, err = svc.ListStations(context.Background())
	if err != nil {
		t.Fatalf("ListStations() later error = %v", err)
	}
	for _, view := range views {
		if view.IsOnline {
			t.Fatalf("station %s online after silence", view.StationID)
		}
	}
}

func TestListStationsFlagsStuckStations(t *testing.T) {
	dir := newMemoryDirectory()
	svc := NewService(dir, Options{})

	_ = dir.UpsertStation(context.Background(), ports.StationState{StationID: "healthy", PendingSyncCount: 2})
	_ = dir.UpsertStation(context.Background(), ports.StationState{StationID: "wedged", PendingSyncCount: 5, StuckSyncCount: 3})

	views, err := svc.ListStations(context.Background())
	if err != nil {
		t.Fatalf("ListStations() error = %v", err)
	}

	byID := make(map[string]StationView, len(views))
	for _, view := range views {
		byID[view.StationID] = view
	}
	if byID["healthy"].IsStuck {
		t.Fatalf("healthy station flagged stuck")
	}
	if !byID["wedged"].IsStuck || byID["wedged"].StuckSyncCount != 3 {
		t.Fatalf("wedged view = %+v", byID["wedged"])
	}
}
