package repositories

import (
	"context"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/database"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// outboxRepository implements OutboxRepository
type outboxRepository struct {
	db *database.Connection
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *database.Connection) OutboxRepository {
	return &outboxRepository{db: db}
}

// Enqueue inserts new events in one statement
func (r *outboxRepository) Enqueue(ctx context.Context, events []*models.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	return translateError(r.db.WithContext(ctx).Create(&events).Error)
}

// ClaimDue selects due events with SKIP LOCKED and leases them to owner in one
// transaction. Re-claiming an expired lease charges the abandoned attempt.
func (r *outboxRepository) ClaimDue(ctx context.Context, owner string, now time.Time, leaseTTL time.Duration, limit int) ([]*models.OutboxEvent, error) {
	var claimed []*models.OutboxEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		err := tx.Model(&models.OutboxEvent{}).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)) OR (status = ? AND lease_expires_at <= ?)",
				[]models.OutboxStatus{models.OutboxStatusPending, models.OutboxStatusRetry}, now,
				models.OutboxStatusDispatching, now).
			Order("created_at ASC").
			Limit(limit).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		err = tx.Model(&models.OutboxEvent{}).
			Where("id IN ? AND status = ?", ids, models.OutboxStatusDispatching).
			Updates(map[string]interface{}{
				"attempt_count": gorm.Expr("attempt_count + 1"),
				"last_error":    models.LeaseExpiredError,
			}).Error
		if err != nil {
			return err
		}

		leaseExpiresAt := now.Add(leaseTTL)
		err = tx.Model(&models.OutboxEvent{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":           models.OutboxStatusDispatching,
				"lease_owner":      owner,
				"lease_expires_at": leaseExpiresAt,
				"next_attempt_at":  nil,
				"updated_at":       now,
			}).Error
		if err != nil {
			return err
		}

		return tx.Where("id IN ?", ids).Order("created_at ASC").Find(&claimed).Error
	})
	return claimed, err
}

// MarkPublished resolves a leased event as delivered
func (r *outboxRepository) MarkPublished(ctx context.Context, id, owner string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND status = ? AND lease_owner = ?", id, models.OutboxStatusDispatching, owner).
		Updates(map[string]interface{}{
			"status":           models.OutboxStatusPublished,
			"published_at":     publishedAt,
			"lease_owner":      "",
			"lease_expires_at": nil,
			"updated_at":       publishedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// MarkFailed resolves a leased event as RETRY or DEAD
func (r *outboxRepository) MarkFailed(ctx context.Context, id, owner string, update OutboxFailure) error {
	result := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND status = ? AND lease_owner = ?", id, models.OutboxStatusDispatching, owner).
		Updates(map[string]interface{}{
			"status":           update.Status,
			"attempt_count":    update.AttemptCount,
			"next_attempt_at":  update.NextAttemptAt,
			"last_error":       update.LastError,
			"lease_owner":      "",
			"lease_expires_at": nil,
			"updated_at":       update.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// GetByID retrieves an event by ID
func (r *outboxRepository) GetByID(ctx context.Context, id string) (*models.OutboxEvent, error) {
	var event models.OutboxEvent
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &event, nil
}

// CountByStatus returns the number of events in each status
func (r *outboxRepository) CountByStatus(ctx context.Context) (map[models.OutboxStatus]int64, error) {
	var rows []struct {
		Status models.OutboxStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// DeleteOlderThan removes events in a terminal status last updated before cutoff
func (r *outboxRepository) DeleteOlderThan(ctx context.Context, status models.OutboxStatus, cutoff time.Time) (int64, error) {
	if !status.IsTerminal() {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, cutoff).
		Delete(&models.OutboxEvent{})
	return result.RowsAffected, result.Error
}
