// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/aikyo-io/campaign-engine/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Customer, error)
	ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.Customer, error)
	ListByIDs(ctx context.Context, tenantID uint, ids []uint) ([]*models.Customer, error)
}

// BillingRepository defines operations for billing records
type BillingRepository interface {
	Repository[models.Billing, models.BillingFilter]
	ListByCustomerIDs(ctx context.Context, tenantID uint, customerIDs []uint) ([]*models.Billing, error)
}

// EventRepository defines operations for behavioral events
type EventRepository interface {
	Repository[models.Event, models.EventFilter]
	ListByCustomerIDs(ctx context.Context, tenantID uint, customerIDs []uint) ([]*models.Event, error)
	ListByCustomerAndType(ctx context.Context, tenantID uint, customerID uint, eventType string) ([]*models.Event, error)
}

// TagRepository defines operations for tags
type TagRepository interface {
	Repository[models.Tag, models.TagFilter]
	ByName(ctx context.Context, tenantID uint, name string) (*models.Tag, error)
	ListByTenant(ctx context.Context, tenantID uint) ([]*models.Tag, error)
}

// CustomerTagRepository defines operations for customer tag assignments
type CustomerTagRepository interface {
	Repository[models.CustomerTag, models.CustomerTagFilter]
	ListByCustomerIDs(ctx context.Context, tenantID uint, customerIDs []uint) ([]*models.CustomerTag, error)
	ListByTagIDs(ctx context.Context, tenantID uint, tagIDs []uint) ([]*models.CustomerTag, error)
	CustomerHasTag(ctx context.Context, tenantID uint, customerID uint, tagID uint) (bool, error)
}

// SegmentRepository defines operations for audience segments
type SegmentRepository interface {
	Repository[models.Segment, models.SegmentFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Segment, error)
	ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.Segment, error)
	Update(ctx context.Context, segment models.Segment) error
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	Update(ctx context.Context, campaign models.Campaign) error
	ListDueActive(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
	Claim(ctx context.Context, campaignID uint, firedAt time.Time, lockedUntil time.Time) (bool, error)
	RollbackFire(ctx context.Context, campaignID uint, firedAt time.Time, prior *time.Time) error
	ReleaseLock(ctx context.Context, campaignID uint) error
	UpdateStatus(ctx context.Context, campaignID uint, status models.CampaignStatus) error
}

// BroadcastRepository defines operations for broadcast fan-out records
type BroadcastRepository interface {
	Repository[models.Broadcast, models.BroadcastFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Broadcast, error)
	ListByTenant(ctx context.Context, tenantID uint, filter models.BroadcastFilter, limit, offset int) ([]*models.Broadcast, error)
}

// DeliveryRepository defines operations for per-recipient deliveries
type DeliveryRepository interface {
	Repository[models.Delivery, models.DeliveryFilter]
	RecordOutcome(ctx context.Context, deliveryID uint, status models.DeliveryStatus, errorMessage *string, providerMeta models.JSONMap) error
	StatsByBroadcast(ctx context.Context, broadcastID uint) (*models.BroadcastStats, error)
	ListByBroadcast(ctx context.Context, broadcastID uint, status *models.DeliveryStatus, limit, offset int) ([]*models.Delivery, error)
	ListQueuedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.Delivery, error)
}

// AutomationRepository defines operations for journey automations
type AutomationRepository interface {
	Repository[models.Automation, models.AutomationFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Automation, error)
	Update(ctx context.Context, automation models.Automation) error
	ListActive(ctx context.Context, limit int) ([]*models.Automation, error)
}

// JourneyInstanceRepository defines operations for per-customer journey state
type JourneyInstanceRepository interface {
	Repository[models.JourneyInstance, models.JourneyInstanceFilter]
	ByAutomationAndCustomer(ctx context.Context, automationID uint, customerID uint) (*models.JourneyInstance, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.JourneyInstance, error)
	ClaimInstance(ctx context.Context, instanceID uint, lockedUntil time.Time) (bool, error)
	Advance(ctx context.Context, instanceID uint, nodeID string, status models.JourneyInstanceStatus, wakeAt *time.Time) error
	EnrolledCustomerIDs(ctx context.Context, automationID uint) ([]uint, error)
}
