package dispatch

import (
	"context"

	"github.com/aikyo-io/campaign-engine/models"
)

// TrackerStore is the slice of the delivery repository the tracker needs
type TrackerStore interface {
	RecordOutcome(ctx context.Context, deliveryID uint, status models.DeliveryStatus, errorMessage *string, providerMeta models.JSONMap) error
	StatsByBroadcast(ctx context.Context, broadcastID uint) (*models.BroadcastStats, error)
	ListByBroadcast(ctx context.Context, broadcastID uint, status *models.DeliveryStatus, limit, offset int) ([]*models.Delivery, error)
}

// Tracker owns delivery state transitions and the derived reporting
// aggregates. Stats are always counted from the rows; there is no separately
// maintained counter to drift.
type Tracker struct {
	store TrackerStore
}

// NewTracker creates a delivery tracker
func NewTracker(store TrackerStore) *Tracker {
	return &Tracker{store: store}
}

// RecordOutcome transitions one delivery to a terminal status. Terminal rows
// are left untouched; the store's guarded update enforces that.
func (t *Tracker) RecordOutcome(ctx context.Context, deliveryID uint, status models.DeliveryStatus, errorMessage *string, providerMeta models.JSONMap) error {
	return t.store.RecordOutcome(ctx, deliveryID, status, errorMessage, providerMeta)
}

// Stats derives a broadcast's per-status counts
func (t *Tracker) Stats(ctx context.Context, broadcastID uint) (*models.BroadcastStats, error) {
	return t.store.StatsByBroadcast(ctx, broadcastID)
}

// List pages through a broadcast's deliveries, optionally by status
func (t *Tracker) List(ctx context.Context, broadcastID uint, status *models.DeliveryStatus, page, limit int) ([]*models.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit
	return t.store.ListByBroadcast(ctx, broadcastID, status, limit, offset)
}
