package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/utils"
	"gorm.io/gorm"
)

// SegmentRepositoryImpl implements SegmentRepository interface
type SegmentRepositoryImpl struct {
	*BaseRepository[models.Segment, models.SegmentFilter]
}

// NewSegmentRepository creates a new segment repository
func NewSegmentRepository(db *gorm.DB) SegmentRepository {
	return &SegmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Segment, models.SegmentFilter](db),
	}
}

// ByID retrieves a segment by its ID
func (r *SegmentRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Segment, error) {
	db := r.getDB(ctx)
	var row models.Segment
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ByUUID retrieves a segment by UUID
func (r *SegmentRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Segment, error) {
	db := r.getDB(ctx)
	var row models.Segment
	if err := db.Where("uuid = ?", uuid).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find segment by UUID: %w", err)
	}
	return &row, nil
}

// ListByTenant retrieves a page of segments for a tenant
func (r *SegmentRepositoryImpl) ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.Segment, error) {
	return r.ByFilter(ctx, models.SegmentFilter{TenantID: &tenantID}, "id DESC", limit, offset)
}

// Update updates a segment
func (r *SegmentRepositoryImpl) Update(ctx context.Context, segment models.Segment) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	now := utils.UTCNow()
	segment.UpdatedAt = &now

	err = db.Save(&segment).Error
	if err != nil {
		return err
	}

	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *SegmentRepositoryImpl) applyFilter(query *gorm.DB, filter models.SegmentFilter) *gorm.DB {
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	return query
}

// ByFilter retrieves segments based on filter criteria
func (r *SegmentRepositoryImpl) ByFilter(ctx context.Context, filter models.SegmentFilter, orderBy string, limit, offset int) ([]*models.Segment, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Segment{})

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

	var rows []*models.Segment
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of segments matching the filter
func (r *SegmentRepositoryImpl) Count(ctx context.Context, filter models.SegmentFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Segment{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any segment matching the filter exists
func (r *SegmentRepositoryImpl) Exists(ctx context.Context, filter models.SegmentFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
