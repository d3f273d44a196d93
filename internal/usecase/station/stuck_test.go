package station

import (
	"context"
	"testing"

	"gatehouse/internal/bootstrap/config"
)

func TestStuckRecordsHonorThreshold(t *testing.T) {
	client := &fakeGateClient{}
	svc, queue := setupStation(t, client, config.PermanentFailurePark)
	svc.opts.StuckAttemptsThreshold = 3
	ctx := context.Background()

	stuckCap, err := svc.Capture(ctx, CaptureInput{Code: "tkt-stuck"})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	youngCap, err := svc.Capture(ctx, CaptureInput{Code: "tkt-young"})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := queue.RecordSyncError(ctx, stuckCap.EventID, "connection refused"); err != nil {
			t.Fatalf("RecordSyncError() error = %v", err)
		}
	}
	if err := queue.RecordSyncError(ctx, youngCap.EventID, "connection refused"); err != nil {
		t.Fatalf("RecordSyncError() error = %v", err)
	}

	stuck, err := svc.StuckRecords(ctx)
	if err != nil {
		t.Fatalf("StuckRecords() error = %v", err)
	}
	if len(stuck) != 1 {
		t.Fatalf("stuck = %+v", stuck)
	}
	if stuck[0].ID != stuckCap.EventID || stuck[0].SyncAttempts != 3 {
		t.Fatalf("stuck record = %+v", stuck[0])
	}
}

func TestHeartbeatReportsStuckCount(t *testing.T) {
	client := &fakeGateClient{}
	svc, queue := setupStation(t, client, config.PermanentFailurePark)
	svc.opts.StuckAttemptsThreshold = 2
	ctx := context.Background()

	captured, err := svc.Capture(ctx, CaptureInput{Code: "tkt-wedged"})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := queue.RecordSyncError(ctx, captured.EventID, "timeout"); err != nil {
			t.Fatalf("RecordSyncError() error = %v", err)
		}
	}

	state, err := svc.HeartbeatOnce(ctx)
	if err != nil {
		t.Fatalf("HeartbeatOnce() error = %v", err)
	}
	if state.PendingSyncCount != 1 || state.StuckSyncCount != 1 {
		t.Fatalf("heartbeat state = %+v", state)
	}
	if len(client.heartbeats) != 1 || client.heartbeats[0].StuckSyncCount != 1 {
		t.Fatalf("sent heartbeats = %+v", client.heartbeats)
	}
}

func TestStuckRecordsIgnoreSynced(t *testing.T) {
	client := &fakeGateClient{}
	svc, queue := setupStation(t, client, config.PermanentFailurePark)
	svc.opts.StuckAttemptsThreshold = 1
	ctx := context.Background()

	captured, err := svc.Capture(ctx, CaptureInput{Code: "tkt-1"})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if err := queue.RecordSyncError(ctx, captured.EventID, "timeout"); err != nil {
		t.Fatalf("RecordSyncError() error = %v", err)
	}
	if err := queue.MarkSynced(ctx, captured.EventID); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}

	stuck, err := svc.StuckRecords(ctx)
	if err != nil {
		t.Fatalf("StuckRecords() error = %v", err)
	}
	if len(stuck) != 0 {
		t.Fatalf("stuck after sync = %+v", stuck)
	}
}
