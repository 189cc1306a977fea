package repository

import (
	"context"
	"errors"

	"github.com/aikyo-io/campaign-engine/models"
	"gorm.io/gorm"
)

// BillingRepositoryImpl implements BillingRepository interface
type BillingRepositoryImpl struct {
	*BaseRepository[models.Billing, models.BillingFilter]
}

// NewBillingRepository creates a new billing repository
func NewBillingRepository(db *gorm.DB) BillingRepository {
	return &BillingRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Billing, models.BillingFilter](db),
	}
}

// ByID retrieves a billing record by its ID
func (r *BillingRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Billing, error) {
	db := r.getDB(ctx)
	var row models.Billing
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListByCustomerIDs retrieves billing records for a set of customers
func (r *BillingRepositoryImpl) ListByCustomerIDs(ctx context.Context, tenantID uint, customerIDs []uint) ([]*models.Billing, error) {
	db := r.getDB(ctx)
	if len(customerIDs) == 0 {
		return []*models.Billing{}, nil
	}
	var rows []*models.Billing
	if err := db.Model(&models.Billing{}).Where("tenant_id = ? AND customer_id IN ?", tenantID, customerIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *BillingRepositoryImpl) applyFilter(query *gorm.DB, filter models.BillingFilter) *gorm.DB {
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves billing records based on filter criteria
func (r *BillingRepositoryImpl) ByFilter(ctx context.Context, filter models.BillingFilter, orderBy string, limit, offset int) ([]*models.Billing, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Billing{})

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

	var rows []*models.Billing
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of billing records matching the filter
func (r *BillingRepositoryImpl) Count(ctx context.Context, filter models.BillingFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Billing{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any billing record matching the filter exists
func (r *BillingRepositoryImpl) Exists(ctx context.Context, filter models.BillingFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
