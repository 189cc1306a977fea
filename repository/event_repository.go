package repository

import (
	"context"
	"errors"

	"github.com/aikyo-io/campaign-engine/models"
	"gorm.io/gorm"
)

// EventRepositoryImpl implements EventRepository interface
type EventRepositoryImpl struct {
	*BaseRepository[models.Event, models.EventFilter]
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &EventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Event, models.EventFilter](db),
	}
}

// ByID retrieves an event by its ID
func (r *EventRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Event, error) {
	db := r.getDB(ctx)
	var row models.Event
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListByCustomerIDs retrieves events for a set of customers
func (r *EventRepositoryImpl) ListByCustomerIDs(ctx context.Context, tenantID uint, customerIDs []uint) ([]*models.Event, error) {
	db := r.getDB(ctx)
	if len(customerIDs) == 0 {
		return []*models.Event{}, nil
	}
	var rows []*models.Event
	if err := db.Model(&models.Event{}).Where("tenant_id = ? AND customer_id IN ?", tenantID, customerIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByCustomerAndType retrieves a customer's events of a given type
func (r *EventRepositoryImpl) ListByCustomerAndType(ctx context.Context, tenantID uint, customerID uint, eventType string) ([]*models.Event, error) {
	filter := models.EventFilter{TenantID: &tenantID, CustomerID: &customerID, Type: &eventType}
	return r.ByFilter(ctx, filter, "timestamp DESC", 0, 0)
}

// applyFilter applies filter criteria to a GORM query
func (r *EventRepositoryImpl) applyFilter(query *gorm.DB, filter models.EventFilter) *gorm.DB {
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.After != nil {
		query = query.Where("timestamp > ?", *filter.After)
	}
	if filter.Before != nil {
		query = query.Where("timestamp < ?", *filter.Before)
	}
	return query
}

// ByFilter retrieves events based on filter criteria
func (r *EventRepositoryImpl) ByFilter(ctx context.Context, filter models.EventFilter, orderBy string, limit, offset int) ([]*models.Event, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Event{})

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

	var rows []*models.Event
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of events matching the filter
func (r *EventRepositoryImpl) Count(ctx context.Context, filter models.EventFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Event{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any event matching the filter exists
func (r *EventRepositoryImpl) Exists(ctx context.Context, filter models.EventFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
