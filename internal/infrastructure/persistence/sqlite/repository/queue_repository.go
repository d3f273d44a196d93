package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gatehouse/internal/errs"
	"gatehouse/internal/infrastructure/persistence/sqlite/model"
	"gatehouse/internal/ports"
)

// QueueRepository is the station-resident durable queue. Every write is a
// single-record transaction; partial writes are not observable.
type QueueRepository struct {
	db *gorm.DB
}

var _ ports.LocalQueue = (*QueueRepository)(nil)

func NewQueueRepository(db *gorm.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

func (r *QueueRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *QueueRepository) Enqueue(ctx context.Context, record ports.QueuedCheckIn) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if strings.TrimSpace(record.ID) == "" {
		return errors.New("check-in id is required")
	}

	row := model.QueuedCheckIn{
		ID:              record.ID,
		TicketID:        record.TicketID,
		StationID:       record.StationID,
		ClientTimestamp: record.ClientTimestamp,
		Method:          record.Method,
		Synced:          record.Synced,
		SyncAttempts:    record.SyncAttempts,
		LastSyncAttempt: record.LastSyncAttempt,
		Error:           record.Error,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert queued check-in")
	}
	return nil
}

func (r *QueueRepository) ListUnsynced(ctx context.Context, stationID string) ([]ports.QueuedCheckIn, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.QueuedCheckIn{}).Where("synced = ?", false)
	if station := strings.TrimSpace(stationID); station != "" {
		query = query.Where("station_id = ?", station)
	}

	var rows []model.QueuedCheckIn
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query unsynced check-ins")
	}

	items := make([]ports.QueuedCheckIn, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapQueuedCheckIn(row))
	}
	return items, nil
}

// MarkSynced flips the synced flag only. The last error stays in place so
// operators can audit what a record went through before it landed.
func (r *QueueRepository) MarkSynced(ctx context.Context, id string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.QueuedCheckIn{}).
		Where("id = ?", id).
		Update("synced", true).Error; err != nil {
		return errs.Wrap(err, "mark check-in synced")
	}
	return nil
}

func (r *QueueRepository) RecordSyncError(ctx context.Context, id string, message string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := db.Model(&model.QueuedCheckIn{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sync_attempts":     gorm.Expr("sync_attempts + 1"),
			"last_sync_attempt": now,
			"error":             message,
		}).Error; err != nil {
		return errs.Wrap(err, "record sync error")
	}
	return nil
}

func (r *QueueRepository) CleanupSynced(ctx context.Context, olderThanDays int) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	if olderThanDays < 0 {
		return 0, fmt.Errorf("invalid retention window: %d days", olderThanDays)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(time.RFC3339Nano)
	result := db.Where("synced = ? AND client_timestamp < ?", true, cutoff).
		Delete(&model.QueuedCheckIn{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "cleanup synced check-ins")
	}
	return result.RowsAffected, nil
}

func (r *QueueRepository) SaveStationState(ctx context.Context, state ports.StationState) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if strings.TrimSpace(state.StationID) == "" {
		return errors.New("station id is required")
	}

	row := model.StationState{
		StationID:        state.StationID,
		LastHeartbeat:    state.LastHeartbeat,
		PendingSyncCount: state.PendingSyncCount,
		StuckSyncCount:   state.StuckSyncCount,
		DeviceType:       state.DeviceType,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "station_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_heartbeat":     row.LastHeartbeat,
			"pending_sync_count": row.PendingSyncCount,
			"stuck_sync_count":   row.StuckSyncCount,
			"device_type":        row.DeviceType,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert station state")
	}
	return nil
}

func (r *QueueRepository) GetStationState(ctx context.Context, stationID string) (ports.StationState, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.StationState{}, false, err
	}

	var row model.StationState
	if err := db.Where("station_id = ?", stationID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.StationState{}, false, nil
		}
		return ports.StationState{}, false, errs.Wrap(err, "query station state")
	}
	return mapStationState(row), true, nil
}

func (r *QueueRepository) ExportAll(ctx context.Context) (ports.QueueSnapshot, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.QueueSnapshot{}, err
	}

	var checkinRows []model.QueuedCheckIn
	if err := db.Order("client_timestamp asc").Find(&checkinRows).Error; err != nil {
		return ports.QueueSnapshot{}, errs.Wrap(err, "query all check-ins")
	}

	var stationRows []model.StationState
	if err := db.Order("station_id asc").Find(&stationRows).Error; err != nil {
		return ports.QueueSnapshot{}, errs.Wrap(err, "query all station states")
	}

	snapshot := ports.QueueSnapshot{
		CheckIns: make([]ports.QueuedCheckIn, 0, len(checkinRows)),
		Stations: make([]ports.StationState, 0, len(stationRows)),
	}
	for _, row := range checkinRows {
		snapshot.CheckIns = append(snapshot.CheckIns, mapQueuedCheckIn(row))
	}
	for _, row := range stationRows {
		snapshot.Stations = append(snapshot.Stations, mapStationState(row))
	}
	return snapshot, nil
}

func mapQueuedCheckIn(row model.QueuedCheckIn) ports.QueuedCheckIn {
	return ports.QueuedCheckIn{
		ID:              row.ID,
		TicketID:        row.TicketID,
		StationID:       row.StationID,
		ClientTimestamp: row.ClientTimestamp,
		Method:          row.Method,
		Synced:          row.Synced,
		SyncAttempts:    row.SyncAttempts,
		LastSyncAttempt: row.LastSyncAttempt,
		Error:           row.Error,
	}
}

func mapStationState(row model.StationState) ports.StationState {
	return ports.StationState{
		StationID:        row.StationID,
		LastHeartbeat:    row.LastHeartbeat,
		PendingSyncCount: row.PendingSyncCount,
		StuckSyncCount:   row.StuckSyncCount,
		DeviceType:       row.DeviceType,
	}
}
