package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gatehouse/internal/errs"
	"gatehouse/internal/infrastructure/persistence/sqlite/model"
	"gatehouse/internal/ports"
)

// CanonicalRepository persists the server-side admission log. The primary key
// on ticket_id enforces at-most-once admission at the storage layer.
type CanonicalRepository struct {
	db *gorm.DB
}

var _ ports.CanonicalRepository = (*CanonicalRepository)(nil)

func NewCanonicalRepository(db *gorm.DB) *CanonicalRepository {
	return &CanonicalRepository{db: db}
}

func (r *CanonicalRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

func (r *CanonicalRepository) FindBySourceEvent(ctx context.Context, sourceEventID string) (ports.CanonicalCheckIn, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.CanonicalCheckIn{}, false, err
	}

	var row model.CanonicalCheckIn
	if err := db.Where("source_event_id = ?", sourceEventID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CanonicalCheckIn{}, false, nil
		}
		return ports.CanonicalCheckIn{}, false, errs.Wrap(err, "query canonical by source event")
	}
	return mapCanonical(row), true, nil
}

func (r *CanonicalRepository) FindByTicket(ctx context.Context, ticketID string) (ports.CanonicalCheckIn, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.CanonicalCheckIn{}, false, err
	}

	var row model.CanonicalCheckIn
	if err := db.Where("ticket_id = ?", ticketID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CanonicalCheckIn{}, false, nil
		}
		return ports.CanonicalCheckIn{}, false, errs.Wrap(err, "query canonical by ticket")
	}
	return mapCanonical(row), true, nil
}

// Create inserts the admission row; the conflict target is the ticket_id
// primary key, so a concurrent winner makes this a no-op and the caller sees
// inserted=false.
func (r *CanonicalRepository) Create(ctx context.Context, input ports.CanonicalCheckIn) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	row := model.CanonicalCheckIn{
		TicketID:      input.TicketID,
		CheckedInAt:   input.CheckedInAt,
		Method:        input.Method,
		StationID:     input.StationID,
		SourceEventID: input.SourceEventID,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticket_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert canonical check-in")
	}
	return result.RowsAffected > 0, nil
}

func mapCanonical(row model.CanonicalCheckIn) ports.CanonicalCheckIn {
	return ports.CanonicalCheckIn{
		TicketID:      row.TicketID,
		CheckedInAt:   row.CheckedInAt,
		Method:        row.Method,
		StationID:     row.StationID,
		SourceEventID: row.SourceEventID,
	}
}
