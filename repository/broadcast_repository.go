package repository

import (
	"context"
	"errors"

	"github.com/aikyo-io/campaign-engine/models"
	"gorm.io/gorm"
)

// BroadcastRepositoryImpl implements BroadcastRepository interface
type BroadcastRepositoryImpl struct {
	*BaseRepository[models.Broadcast, models.BroadcastFilter]
}

// NewBroadcastRepository creates a new broadcast repository
func NewBroadcastRepository(db *gorm.DB) BroadcastRepository {
	return &BroadcastRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Broadcast, models.BroadcastFilter](db),
	}
}

// ByID retrieves a broadcast by its ID
func (r *BroadcastRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Broadcast, error) {
	db := r.getDB(ctx)
	var row models.Broadcast
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ByUUID retrieves a broadcast by UUID
func (r *BroadcastRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Broadcast, error) {
	db := r.getDB(ctx)
	var row models.Broadcast
	if err := db.Where("uuid = ?", uuid).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListByTenant retrieves a tenant's broadcasts newest first
func (r *BroadcastRepositoryImpl) ListByTenant(ctx context.Context, tenantID uint, filter models.BroadcastFilter, limit, offset int) ([]*models.Broadcast, error) {
	filter.TenantID = &tenantID
	return r.ByFilter(ctx, filter, "created_at DESC", limit, offset)
}

// applyFilter applies filter criteria to a GORM query
func (r *BroadcastRepositoryImpl) applyFilter(query *gorm.DB, filter models.BroadcastFilter) *gorm.DB {
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.AutomationID != nil {
		query = query.Where("automation_id = ?", *filter.AutomationID)
	}
	if filter.Channel != nil {
		query = query.Where("channel = ?", *filter.Channel)
	}
	if filter.After != nil {
		query = query.Where("created_at > ?", *filter.After)
	}
	if filter.Before != nil {
		query = query.Where("created_at < ?", *filter.Before)
	}
	return query
}

// ByFilter retrieves broadcasts based on filter criteria
func (r *BroadcastRepositoryImpl) ByFilter(ctx context.Context, filter models.BroadcastFilter, orderBy string, limit, offset int) ([]*models.Broadcast, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Broadcast{})

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

	var rows []*models.Broadcast
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of broadcasts matching the filter
func (r *BroadcastRepositoryImpl) Count(ctx context.Context, filter models.BroadcastFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Broadcast{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any broadcast matching the filter exists
func (r *BroadcastRepositoryImpl) Exists(ctx context.Context, filter models.BroadcastFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
