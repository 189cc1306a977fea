package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DeliveryStatus represents the terminal-transition state of a delivery.
// QUEUED rows move once to SENT or FAILED and never revert.
type DeliveryStatus string

const (
	DeliveryStatusQueued DeliveryStatus = "QUEUED"
	DeliveryStatusSent   DeliveryStatus = "SENT"
	DeliveryStatusFailed DeliveryStatus = "FAILED"
)

// String returns the string representation of the status
func (s DeliveryStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusQueued, DeliveryStatusSent, DeliveryStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is a terminal outcome
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusSent || s == DeliveryStatusFailed
}

// Scan implements the sql.Scanner interface for DeliveryStatus
func (s *DeliveryStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = DeliveryStatus(v)
	case []byte:
		*s = DeliveryStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DeliveryStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for DeliveryStatus
func (s DeliveryStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid DeliveryStatus: %s", s)
	}
	return string(s), nil
}

// Delivery represents one per-destination send attempt of a broadcast
type Delivery struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	BroadcastID uint           `gorm:"not null;index:idx_deliveries_broadcast_id" json:"broadcast_id"`
	CustomerID  *uint          `gorm:"index:idx_deliveries_customer_id" json:"customer_id,omitempty"`
	Destination string         `gorm:"size:255;not null" json:"destination"`
	Status      DeliveryStatus `gorm:"type:varchar(20);not null;index:idx_deliveries_status" json:"status"`

	ErrorMessage *string `gorm:"type:text" json:"error_message,omitempty"`
	ProviderMeta JSONMap `gorm:"type:jsonb" json:"provider_meta,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (Delivery) TableName() string {
	return "deliveries"
}

// DeliveryFilter represents filter criteria for delivery queries
type DeliveryFilter struct {
	BroadcastID *uint
	CustomerID  *uint
	Status      *DeliveryStatus
}

// BroadcastStats is the derived per-status aggregate of a broadcast's deliveries
type BroadcastStats struct {
	Total  int64 `json:"total"`
	Queued int64 `json:"queued"`
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
}
