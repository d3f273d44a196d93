package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gatehouse/internal/errs"
	"gatehouse/internal/infrastructure/persistence/sqlite/model"
	"gatehouse/internal/ports"
)

type TicketRepository struct {
	db *gorm.DB
}

var _ ports.TicketRepository = (*TicketRepository)(nil)

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

func (r *TicketRepository) GetTicket(ctx context.Context, id string) (ports.Ticket, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Ticket{}, err
	}

	var row model.Ticket
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Ticket{}, ports.ErrTicketNotFound
		}
		return ports.Ticket{}, errs.Wrap(err, "query ticket")
	}
	return ports.Ticket{
		ID:           row.ID,
		EventID:      row.EventID,
		AttendeeName: row.AttendeeName,
		Tier:         row.Tier,
		Status:       row.Status,
	}, nil
}

func (r *TicketRepository) CreateTicket(ctx context.Context, ticket ports.Ticket) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if strings.TrimSpace(ticket.ID) == "" {
		return errors.New("ticket id is required")
	}
	status := ticket.Status
	if status == "" {
		status = ports.TicketActive
	}

	row := model.Ticket{
		ID:           ticket.ID,
		EventID:      ticket.EventID,
		AttendeeName: ticket.AttendeeName,
		Tier:         ticket.Tier,
		Status:       status,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert ticket")
	}
	return nil
}

func (r *TicketRepository) IncrementCheckedIn(ctx context.Context, eventID string, at string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.EventStats{
		EventID:   eventID,
		CheckedIn: 1,
		UpdatedAt: at,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"checked_in": gorm.Expr("checked_in + 1"),
			"updated_at": at,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "bump event stats")
	}
	return nil
}

func (r *TicketRepository) GetEventStats(ctx context.Context, eventID string) (ports.EventStats, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.EventStats{}, false, err
	}

	var row model.EventStats
	if err := db.Where("event_id = ?", eventID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.EventStats{}, false, nil
		}
		return ports.EventStats{}, false, errs.Wrap(err, "query event stats")
	}
	return ports.EventStats{
		EventID:   row.EventID,
		CheckedIn: row.CheckedIn,
		UpdatedAt: row.UpdatedAt,
	}, true, nil
}

// StationDirectory is the server-side heartbeat store.
type StationDirectory struct {
	db *gorm.DB
}

var _ ports.StationDirectory = (*StationDirectory)(nil)

func NewStationDirectory(db *gorm.DB) *StationDirectory {
	return &StationDirectory{db: db}
}

func (r *StationDirectory) UpsertStation(ctx context.Context, state ports.StationState) error {
	if ctx == nil {
		return errors.New("context is required")
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
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "station_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_heartbeat":     row.LastHeartbeat,
			"pending_sync_count": row.PendingSyncCount,
			"stuck_sync_count":   row.StuckSyncCount,
			"device_type":        row.DeviceType,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert station heartbeat")
	}
	return nil
}

func (r *StationDirectory) ListStations(ctx context.Context) ([]ports.StationState, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	var rows []model.StationState
	if err := r.db.WithContext(ctx).Order("station_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query stations")
	}

	items := make([]ports.StationState, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.StationState{
			StationID:        row.StationID,
			LastHeartbeat:    row.LastHeartbeat,
			PendingSyncCount: row.PendingSyncCount,
			StuckSyncCount:   row.StuckSyncCount,
			DeviceType:       row.DeviceType,
		})
	}
	return items, nil
}
