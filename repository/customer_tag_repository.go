package repository

import (
	"context"
	"errors"

	"github.com/aikyo-io/campaign-engine/models"
	"gorm.io/gorm"
)

// CustomerTagRepositoryImpl implements CustomerTagRepository interface
type CustomerTagRepositoryImpl struct {
	*BaseRepository[models.CustomerTag, models.CustomerTagFilter]
}

// NewCustomerTagRepository creates a new customer tag repository
func NewCustomerTagRepository(db *gorm.DB) CustomerTagRepository {
	return &CustomerTagRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CustomerTag, models.CustomerTagFilter](db),
	}
}

// ByID retrieves a customer tag assignment by its ID
func (r *CustomerTagRepositoryImpl) ByID(ctx context.Context, id uint) (*models.CustomerTag, error) {
	db := r.getDB(ctx)
	var row models.CustomerTag
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListByCustomerIDs retrieves all tag assignments for a set of customers
func (r *CustomerTagRepositoryImpl) ListByCustomerIDs(ctx context.Context, tenantID uint, customerIDs []uint) ([]*models.CustomerTag, error) {
	db := r.getDB(ctx)
	if len(customerIDs) == 0 {
		return []*models.CustomerTag{}, nil
	}
	var rows []*models.CustomerTag
	if err := db.Model(&models.CustomerTag{}).Where("tenant_id = ? AND customer_id IN ?", tenantID, customerIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByTagIDs retrieves all assignments for a set of tags
func (r *CustomerTagRepositoryImpl) ListByTagIDs(ctx context.Context, tenantID uint, tagIDs []uint) ([]*models.CustomerTag, error) {
	db := r.getDB(ctx)
	if len(tagIDs) == 0 {
		return []*models.CustomerTag{}, nil
	}
	var rows []*models.CustomerTag
	if err := db.Model(&models.CustomerTag{}).Where("tenant_id = ? AND tag_id IN ?", tenantID, tagIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CustomerHasTag checks whether a customer currently carries a tag
func (r *CustomerTagRepositoryImpl) CustomerHasTag(ctx context.Context, tenantID uint, customerID uint, tagID uint) (bool, error) {
	filter := models.CustomerTagFilter{TenantID: &tenantID, CustomerID: &customerID, TagID: &tagID}
	return r.Exists(ctx, filter)
}

// applyFilter applies filter criteria to a GORM query
func (r *CustomerTagRepositoryImpl) applyFilter(query *gorm.DB, filter models.CustomerTagFilter) *gorm.DB {
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.TagID != nil {
		query = query.Where("tag_id = ?", *filter.TagID)
	}
	return query
}

// ByFilter retrieves customer tag assignments based on filter criteria
func (r *CustomerTagRepositoryImpl) ByFilter(ctx context.Context, filter models.CustomerTagFilter, orderBy string, limit, offset int) ([]*models.CustomerTag, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.CustomerTag{})

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

	var rows []*models.CustomerTag
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of assignments matching the filter
func (r *CustomerTagRepositoryImpl) Count(ctx context.Context, filter models.CustomerTagFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.CustomerTag{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any assignment matching the filter exists
func (r *CustomerTagRepositoryImpl) Exists(ctx context.Context, filter models.CustomerTagFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
