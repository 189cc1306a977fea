package models

import (
	"time"
)

// Event represents a behavioral event recorded against a customer
type Event struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   uint      `gorm:"not null;index:idx_events_tenant_id" json:"tenant_id"`
	CustomerID uint      `gorm:"not null;index:idx_events_customer_id" json:"customer_id"`
	Type       string    `gorm:"size:100;not null;index:idx_events_type" json:"type"`
	Timestamp  time.Time `gorm:"not null;index:idx_events_timestamp" json:"timestamp"`
	Payload    JSONMap   `gorm:"type:jsonb" json:"payload,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Event) TableName() string {
	return "events"
}

// EventFilter represents filter criteria for event queries
type EventFilter struct {
	TenantID   *uint
	CustomerID *uint
	Type       *string
	After      *time.Time
	Before     *time.Time
}
