package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gatehouse/internal/domain/checkin"
	"gatehouse/internal/errs"
	"gatehouse/internal/infrastructure/persistence/sqlite/model"
	"gatehouse/internal/ports"
)

type BadgeRepository struct {
	db *gorm.DB
}

var _ ports.BadgeQueue = (*BadgeRepository)(nil)

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

func (r *BadgeRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

// Enqueue inserts the job unless the ticket already has one; the unique index
// on ticket_id absorbs the conflict.
func (r *BadgeRepository) Enqueue(ctx context.Context, job ports.BadgePrintJob) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	if strings.TrimSpace(job.ID) == "" {
		return false, errors.New("badge job id is required")
	}

	status := job.Status
	if status == "" {
		status = checkin.JobPending
	}
	if !checkin.ValidJobStatus(status) {
		return false, fmt.Errorf("%w: %q", checkin.ErrInvalidJobStatus, status)
	}

	row := model.BadgePrintJob{
		ID:        job.ID,
		TicketID:  job.TicketID,
		Status:    status,
		Priority:  job.Priority,
		QueuedAt:  job.QueuedAt,
		BadgeData: job.BadgeData,
		Attempts:  job.Attempts,
		LastError: job.LastError,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticket_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert badge job")
	}
	return result.RowsAffected > 0, nil
}

// ClaimNext picks the lowest (priority, queued_at) pending job and moves it
// to printing. The status guard on the update keeps concurrent workers from
// claiming the same job; the loser simply sees no pending job this round.
func (r *BadgeRepository) ClaimNext(ctx context.Context) (ports.BadgePrintJob, bool, error) {
	if ctx == nil {
		return ports.BadgePrintJob{}, false, errors.New("context is required")
	}

	var claimed ports.BadgePrintJob
	found := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.BadgePrintJob
		if err := tx.Where("status = ?", checkin.JobPending).
			Order("priority asc, queued_at asc").
			Limit(1).
			Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return errs.Wrap(err, "query pending badge job")
		}

		result := tx.Model(&model.BadgePrintJob{}).
			Where("id = ? AND status = ?", row.ID, checkin.JobPending).
			Update("status", checkin.JobPrinting)
		if result.Error != nil {
			return errs.Wrap(result.Error, "claim badge job")
		}
		if result.RowsAffected == 0 {
			// Lost the claim race; report no job this round.
			return nil
		}

		row.Status = checkin.JobPrinting
		claimed = mapBadgeJob(row)
		found = true
		return nil
	})
	if err != nil {
		return ports.BadgePrintJob{}, false, err
	}
	return claimed, found, nil
}

func (r *BadgeRepository) MarkCompleted(ctx context.Context, id string) error {
	return r.transition(ctx, id, checkin.JobCompleted, "")
}

func (r *BadgeRepository) MarkFailed(ctx context.Context, id string, message string) error {
	return r.transition(ctx, id, checkin.JobFailed, message)
}

// Retry moves a failed job back to pending with attempts incremented, never
// reset, so the counter keeps the full retry history.
func (r *BadgeRepository) Retry(ctx context.Context, id string) error {
	return r.transition(ctx, id, checkin.JobPending, "")
}

func (r *BadgeRepository) transition(ctx context.Context, id string, to string, message string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	var row model.BadgePrintJob
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ErrJobNotFound
		}
		return errs.Wrap(err, "query badge job")
	}

	if err := checkin.CheckJobTransition(row.Status, to); err != nil {
		return err
	}

	updates := map[string]any{"status": to}
	if to == checkin.JobFailed {
		updates["last_error"] = message
	}
	if to == checkin.JobPending {
		// Only the failed->pending retry lands here; pending is never a
		// transition target otherwise.
		updates["attempts"] = gorm.Expr("attempts + 1")
	}

	result := db.Model(&model.BadgePrintJob{}).
		Where("id = ? AND status = ?", id, row.Status).
		Updates(updates)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update badge job status")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %s changed concurrently", checkin.ErrInvalidJobTransition, id)
	}
	return nil
}

func (r *BadgeRepository) GetJob(ctx context.Context, id string) (ports.BadgePrintJob, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.BadgePrintJob{}, err
	}

	var row model.BadgePrintJob
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.BadgePrintJob{}, ports.ErrJobNotFound
		}
		return ports.BadgePrintJob{}, errs.Wrap(err, "query badge job")
	}
	return mapBadgeJob(row), nil
}

func (r *BadgeRepository) List(ctx context.Context, filter ports.BadgeJobFilter) ([]ports.BadgePrintJob, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.BadgePrintJob{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		if !checkin.ValidJobStatus(status) {
			return nil, fmt.Errorf("%w: %q", checkin.ErrInvalidJobStatus, status)
		}
		query = query.Where("status = ?", status)
	}
	if ticket := strings.TrimSpace(filter.TicketID); ticket != "" {
		query = query.Where("ticket_id = ?", ticket)
	}
	query = query.Order("priority asc, queued_at asc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.BadgePrintJob
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query badge jobs")
	}

	items := make([]ports.BadgePrintJob, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapBadgeJob(row))
	}
	return items, nil
}

func (r *BadgeRepository) Counts(ctx context.Context) (map[string]int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	if err := db.Model(&model.BadgePrintJob{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "count badge jobs")
	}

	counts := map[string]int64{
		checkin.JobPending:   0,
		checkin.JobPrinting:  0,
		checkin.JobCompleted: 0,
		checkin.JobFailed:    0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func mapBadgeJob(row model.BadgePrintJob) ports.BadgePrintJob {
	return ports.BadgePrintJob{
		ID:        row.ID,
		TicketID:  row.TicketID,
		Status:    row.Status,
		Priority:  row.Priority,
		QueuedAt:  row.QueuedAt,
		BadgeData: row.BadgeData,
		Attempts:  row.Attempts,
		LastError: row.LastError,
	}
}
