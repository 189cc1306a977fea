package repository

import (
	"context"
	"errors"
	"time"

	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/utils"
	"gorm.io/gorm"
)

// JourneyInstanceRepositoryImpl implements JourneyInstanceRepository interface
type JourneyInstanceRepositoryImpl struct {
	*BaseRepository[models.JourneyInstance, models.JourneyInstanceFilter]
}

// NewJourneyInstanceRepository creates a new journey instance repository
func NewJourneyInstanceRepository(db *gorm.DB) JourneyInstanceRepository {
	return &JourneyInstanceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.JourneyInstance, models.JourneyInstanceFilter](db),
	}
}

// ByID retrieves a journey instance by its ID
func (r *JourneyInstanceRepositoryImpl) ByID(ctx context.Context, id uint) (*models.JourneyInstance, error) {
	db := r.getDB(ctx)
	var row models.JourneyInstance
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ByAutomationAndCustomer retrieves the single instance for a customer in an automation
func (r *JourneyInstanceRepositoryImpl) ByAutomationAndCustomer(ctx context.Context, automationID uint, customerID uint) (*models.JourneyInstance, error) {
	filter := models.JourneyInstanceFilter{AutomationID: &automationID, CustomerID: &customerID}
	rows, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListDue retrieves active instances whose wake time has passed and whose
// lock has expired
func (r *JourneyInstanceRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.JourneyInstance, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.JourneyInstance{}).
		Where("status = ?", models.JourneyInstanceActive).
		Where("wake_at IS NULL OR wake_at <= ?", now).
		Where("locked_until IS NULL OR locked_until < ?", now).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []*models.JourneyInstance
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimInstance leases an instance for processing; returns false when a
// concurrent worker already holds it
func (r *JourneyInstanceRepositoryImpl) ClaimInstance(ctx context.Context, instanceID uint, lockedUntil time.Time) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.JourneyInstance{}).
		Where("id = ?", instanceID).
		Where("status = ?", models.JourneyInstanceActive).
		Where("locked_until IS NULL OR locked_until < ?", utils.UTCNow()).
		Updates(map[string]any{
			"locked_until": lockedUntil,
			"updated_at":   utils.UTCNow(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Advance moves an instance to a new node, releasing the lock and setting the
// next wake time
func (r *JourneyInstanceRepositoryImpl) Advance(ctx context.Context, instanceID uint, nodeID string, status models.JourneyInstanceStatus, wakeAt *time.Time) error {
	db := r.getDB(ctx)

	return db.Model(&models.JourneyInstance{}).
		Where("id = ?", instanceID).
		Updates(map[string]any{
			"current_node_id": nodeID,
			"status":          status,
			"wake_at":         wakeAt,
			"locked_until":    nil,
			"updated_at":      utils.UTCNow(),
		}).Error
}

// EnrolledCustomerIDs lists customers already holding an instance in an automation
func (r *JourneyInstanceRepositoryImpl) EnrolledCustomerIDs(ctx context.Context, automationID uint) ([]uint, error) {
	db := r.getDB(ctx)

	var ids []uint
	err := db.Model(&models.JourneyInstance{}).
		Where("automation_id = ?", automationID).
		Pluck("customer_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *JourneyInstanceRepositoryImpl) applyFilter(query *gorm.DB, filter models.JourneyInstanceFilter) *gorm.DB {
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.AutomationID != nil {
		query = query.Where("automation_id = ?", *filter.AutomationID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves journey instances based on filter criteria
func (r *JourneyInstanceRepositoryImpl) ByFilter(ctx context.Context, filter models.JourneyInstanceFilter, orderBy string, limit, offset int) ([]*models.JourneyInstance, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.JourneyInstance{})

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

	var rows []*models.JourneyInstance
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of journey instances matching the filter
func (r *JourneyInstanceRepositoryImpl) Count(ctx context.Context, filter models.JourneyInstanceFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.JourneyInstance{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any journey instance matching the filter exists
func (r *JourneyInstanceRepositoryImpl) Exists(ctx context.Context, filter models.JourneyInstanceFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
