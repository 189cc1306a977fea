package repository

import (
	"context"
	"errors"
	"time"

	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/utils"
	"gorm.io/gorm"
)

// DeliveryRepositoryImpl implements DeliveryRepository interface
type DeliveryRepositoryImpl struct {
	*BaseRepository[models.Delivery, models.DeliveryFilter]
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &DeliveryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Delivery, models.DeliveryFilter](db),
	}
}

// ByID retrieves a delivery by its ID
func (r *DeliveryRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Delivery, error) {
	db := r.getDB(ctx)
	var row models.Delivery
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// RecordOutcome moves a delivery out of QUEUED. The status guard makes the
// update idempotent: a terminal row is never overwritten by a late retry.
func (r *DeliveryRepositoryImpl) RecordOutcome(ctx context.Context, deliveryID uint, status models.DeliveryStatus, errorMessage *string, providerMeta models.JSONMap) error {
	db := r.getDB(ctx)

	updates := map[string]any{
		"status":     status,
		"updated_at": utils.UTCNow(),
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}
	if providerMeta != nil {
		updates["provider_meta"] = providerMeta
	}

	return db.Model(&models.Delivery{}).
		Where("id = ?", deliveryID).
		Where("status = ?", models.DeliveryStatusQueued).
		Updates(updates).Error
}

// StatsByBroadcast derives per-status counts with a single GROUP BY query
func (r *DeliveryRepositoryImpl) StatsByBroadcast(ctx context.Context, broadcastID uint) (*models.BroadcastStats, error) {
	db := r.getDB(ctx)

	type row struct {
		Status models.DeliveryStatus
		Cnt    int64
	}
	var rows []row
	err := db.Model(&models.Delivery{}).
		Select("status, COUNT(*) AS cnt").
		Where("broadcast_id = ?", broadcastID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &models.BroadcastStats{}
	for _, r := range rows {
		stats.Total += r.Cnt
		switch r.Status {
		case models.DeliveryStatusQueued:
			stats.Queued = r.Cnt
		case models.DeliveryStatusSent:
			stats.Sent = r.Cnt
		case models.DeliveryStatusFailed:
			stats.Failed = r.Cnt
		}
	}
	return stats, nil
}

// ListByBroadcast retrieves a page of a broadcast's deliveries
func (r *DeliveryRepositoryImpl) ListByBroadcast(ctx context.Context, broadcastID uint, status *models.DeliveryStatus, limit, offset int) ([]*models.Delivery, error) {
	filter := models.DeliveryFilter{BroadcastID: &broadcastID, Status: status}
	return r.ByFilter(ctx, filter, "id ASC", limit, offset)
}

// ListQueuedOlderThan retrieves stale queued deliveries for the reaper pass
func (r *DeliveryRepositoryImpl) ListQueuedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.Delivery, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Delivery{}).
		Where("status = ?", models.DeliveryStatusQueued).
		Where("created_at < ?", cutoff).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []*models.Delivery
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *DeliveryRepositoryImpl) applyFilter(query *gorm.DB, filter models.DeliveryFilter) *gorm.DB {
	if filter.BroadcastID != nil {
		query = query.Where("broadcast_id = ?", *filter.BroadcastID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves deliveries based on filter criteria
func (r *DeliveryRepositoryImpl) ByFilter(ctx context.Context, filter models.DeliveryFilter, orderBy string, limit, offset int) ([]*models.Delivery, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Delivery{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Delivery
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of deliveries matching the filter
func (r *DeliveryRepositoryImpl) Count(ctx context.Context, filter models.DeliveryFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Delivery{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any delivery matching the filter exists
func (r *DeliveryRepositoryImpl) Exists(ctx context.Context, filter models.DeliveryFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
