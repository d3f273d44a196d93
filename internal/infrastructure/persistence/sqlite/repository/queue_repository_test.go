package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"gatehouse/internal/infrastructure/persistence/sqlite/model"
	"gatehouse/internal/ports"
)

func setupQueueRepository(t *testing.T) (*QueueRepository, string) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "station.sqlite")
	return openQueueRepository(t, dsn), dsn
}

func openQueueRepository(t *testing.T, dsn string) *QueueRepository {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&model.QueuedCheckIn{}, &model.StationState{}, &model.SnapshotKV{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewQueueRepository(db)
}

func TestEnqueueSurvivesReopen(t *testing.T) {
	repo, dsn := setupQueueRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if err := repo.Enqueue(ctx, ports.QueuedCheckIn{
		ID:              "evt-1",
		TicketID:        "tkt-1",
		StationID:       "station-1",
		ClientTimestamp: now,
		Method:          "qr",
	}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	reopened := openQueueRepository(t, dsn)
	items, err := reopened.ListUnsynced(ctx, "station-1")
	if err != nil {
		t.Fatalf("ListUnsynced() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("ListUnsynced() len = %d", len(items))
	}
	if items[0].ID != "evt-1" || items[0].TicketID != "tkt-1" {
		t.Fatalf("ListUnsynced() row = %+v", items[0])
	}
}

func TestListUnsyncedFiltersStationAndSynced(t *testing.T) {
	repo, _ := setupQueueRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	for _, record := range []ports.QueuedCheckIn{
		{ID: "evt-1", TicketID: "tkt-1", StationID: "station-1", ClientTimestamp: now, Method: "qr"},
		{ID: "evt-2", TicketID: "tkt-2", StationID: "station-2", ClientTimestamp: now, Method: "qr"},
		{ID: "evt-3", TicketID: "tkt-3", StationID: "station-1", ClientTimestamp: now, Method: "manual"},
	} {
		if err := repo.Enqueue(ctx, record); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", record.ID, err)
		}
	}
	if err := repo.MarkSynced(ctx, "evt-3"); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}

	items, err := repo.ListUnsynced(ctx, "station-1")
	if err != nil {
		t.Fatalf("ListUnsynced() error = %v", err)
	}
	if len(items) != 1 || items[0].ID != "evt-1" {
		t.Fatalf("ListUnsynced(station-1) = %+v", items)
	}

	all, err := repo.ListUnsynced(ctx, "")
	if err != nil {
		t.Fatalf("ListUnsynced(all) error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListUnsynced(all) len = %d", len(all))
	}
}

func TestMarkSyncedKeepsLastError(t *testing.T) {
	repo, _ := setupQueueRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if err := repo.Enqueue(ctx, ports.QueuedCheckIn{
		ID: "evt-1", TicketID: "tkt-1", StationID: "station-1", ClientTimestamp: now, Method: "qr",
	}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if err := repo.RecordSyncError(ctx, "evt-1", "connection refused"); err != nil {
		t.Fatalf("RecordSyncError() error = %v", err)
	}
	if err := repo.RecordSyncError(ctx, "evt-1", "timeout"); err != nil {
		t.Fatalf("RecordSyncError() error = %v", err)
	}
	if err := repo.MarkSynced(ctx, "evt-1"); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	// Marking twice is a no-op, not an error.
	if err := repo.MarkSynced(ctx, "evt-1"); err != nil {
		t.Fatalf("MarkSynced() second call error = %v", err)
	}

	snapshot, err := repo.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll() error = %v", err)
	}
	if len(snapshot.CheckIns) != 1 {
		t.Fatalf("ExportAll() len = %d", len(snapshot.CheckIns))
	}
	row := snapshot.CheckIns[0]
	if !row.Synced {
		t.Fatalf("row not synced: %+v", row)
	}
	if row.SyncAttempts != 2 {
		t.Fatalf("SyncAttempts = %d, want 2", row.SyncAttempts)
	}
	if row.Error != "timeout" {
		t.Fatalf("Error = %q, want last error kept", row.Error)
	}
	if row.LastSyncAttempt == "" {
		t.Fatalf("LastSyncAttempt not recorded")
	}
}

func TestMarkSyncedUnknownIDIsNoop(t *testing.T) {
	repo, _ := setupQueueRepository(t)
	ctx := context.Background()

	if err := repo.MarkSynced(ctx, "missing"); err != nil {
		t.Fatalf("MarkSynced(missing) error = %v", err)
	}
	if err := repo.RecordSyncError(ctx, "missing", "boom"); err != nil {
		t.Fatalf("RecordSyncError(missing) error = %v", err)
	}
}

func TestCleanupSyncedKeepsUnsyncedAndRecent(t *testing.T) {
	repo, _ := setupQueueRepository(t)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -10).Format(time.RFC3339Nano)
	recent := time.Now().UTC().Format(time.RFC3339Nano)

	for _, record := range []ports.QueuedCheckIn{
		{ID: "old-synced", TicketID: "tkt-1", StationID: "s1", ClientTimestamp: old, Method: "qr"},
		{ID: "old-unsynced", TicketID: "tkt-2", StationID: "s1", ClientTimestamp: old, Method: "qr"},
		{ID: "recent-synced", TicketID: "tkt-3", StationID: "s1", ClientTimestamp: recent, Method: "qr"},
	} {
		if err := repo.Enqueue(ctx, record); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", record.ID, err)
		}
	}
	if err := repo.MarkSynced(ctx, "old-synced"); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	if err := repo.MarkSynced(ctx, "recent-synced"); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}

	removed, err := repo.CleanupSynced(ctx, 7)
	if err != nil {
		t.Fatalf("CleanupSynced() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("CleanupSynced() removed = %d, want 1", removed)
	}

	snapshot, err := repo.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll() error = %v", err)
	}
	ids := make(map[string]bool, len(snapshot.CheckIns))
	for _, row := range snapshot.CheckIns {
		ids[row.ID] = true
	}
	if ids["old-synced"] {
		t.Fatalf("old synced record not removed")
	}
	if !ids["old-unsynced"] || !ids["recent-synced"] {
		t.Fatalf("cleanup removed records it must keep: %v", ids)
	}
}

func TestSaveStationStateUpserts(t *testing.T) {
	repo, _ := setupQueueRepository(t)
	ctx := context.Background()

	first := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339Nano)
	second := time.Now().UTC().Format(time.RFC3339Nano)

	if err := repo.SaveStationState(ctx, ports.StationState{
		StationID: "station-1", LastHeartbeat: first, PendingSyncCount: 3, DeviceType: "kiosk",
	}); err != nil {
		t.Fatalf("SaveStationState() error = %v", err)
	}
	if err := repo.SaveStationState(ctx, ports.StationState{
		StationID: "station-1", LastHeartbeat: second, PendingSyncCount: 0, DeviceType: "kiosk",
	}); err != nil {
		t.Fatalf("SaveStationState() second error = %v", err)
	}

	state, found, err := repo.GetStationState(ctx, "station-1")
	if err != nil {
		t.Fatalf("GetStationState() error = %v", err)
	}
	if !found {
		t.Fatalf("GetStationState() not found")
	}
	if state.LastHeartbeat != second || state.PendingSyncCount != 0 {
		t.Fatalf("GetStationState() = %+v", state)
	}

	_, found, err = repo.GetStationState(ctx, "station-9")
	if err != nil {
		t.Fatalf("GetStationState(missing) error = %v", err)
	}
	if found {
		t.Fatalf("GetStationState(missing) found = true")
	}
}
