package repository

import (
	"context"
	"errors"

	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/utils"
	"gorm.io/gorm"
)

// AutomationRepositoryImpl implements AutomationRepository interface
type AutomationRepositoryImpl struct {
	*BaseRepository[models.Automation, models.AutomationFilter]
}

// NewAutomationRepository creates a new automation repository
func NewAutomationRepository(db *gorm.DB) AutomationRepository {
	return &AutomationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Automation, models.AutomationFilter](db),
	}
}

// ByID retrieves an automation by its ID
func (r *AutomationRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Automation, error) {
	db := r.getDB(ctx)
	var row models.Automation
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ByUUID retrieves an automation by UUID
func (r *AutomationRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Automation, error) {
	db := r.getDB(ctx)
	var row models.Automation
	if err := db.Where("uuid = ?", uuid).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Update updates an automation
func (r *AutomationRepositoryImpl) Update(ctx context.Context, automation models.Automation) error {
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
	automation.UpdatedAt = &now

	err = db.Save(&automation).Error
	if err != nil {
		return err
	}

	return nil
}

// ListActive retrieves automations in ACTIVE status
func (r *AutomationRepositoryImpl) ListActive(ctx context.Context, limit int) ([]*models.Automation, error) {
	status := models.AutomationStatusActive
	return r.ByFilter(ctx, models.AutomationFilter{Status: &status}, "id ASC", limit, 0)
}

// applyFilter applies filter criteria to a GORM query
func (r *AutomationRepositoryImpl) applyFilter(query *gorm.DB, filter models.AutomationFilter) *gorm.DB {
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves automations based on filter criteria
func (r *AutomationRepositoryImpl) ByFilter(ctx context.Context, filter models.AutomationFilter, orderBy string, limit, offset int) ([]*models.Automation, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Automation{})

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

	var rows []*models.Automation
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of automations matching the filter
func (r *AutomationRepositoryImpl) Count(ctx context.Context, filter models.AutomationFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Automation{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any automation matching the filter exists
func (r *AutomationRepositoryImpl) Exists(ctx context.Context, filter models.AutomationFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
