package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// JourneyInstanceStatus represents the runtime state of an enrolled customer
type JourneyInstanceStatus string

const (
	JourneyInstanceActive    JourneyInstanceStatus = "ACTIVE"
	JourneyInstanceCompleted JourneyInstanceStatus = "COMPLETED"
	JourneyInstanceAbandoned JourneyInstanceStatus = "ABANDONED"
)

// Valid checks if the status is valid
func (s JourneyInstanceStatus) Valid() bool {
	switch s {
	case JourneyInstanceActive, JourneyInstanceCompleted, JourneyInstanceAbandoned:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for JourneyInstanceStatus
func (s *JourneyInstanceStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = JourneyInstanceStatus(v)
	case []byte:
		*s = JourneyInstanceStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into JourneyInstanceStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for JourneyInstanceStatus
func (s JourneyInstanceStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid JourneyInstanceStatus: %s", s)
	}
	return string(s), nil
}

// JourneyInstance is the per-customer runtime state of an automation. Created
// on enrollment, advanced by the journey engine, closed on reaching a terminal
// node or a dead end. One instance per (automation, customer).
type JourneyInstance struct {
	ID            uint                  `gorm:"primaryKey" json:"id"`
	TenantID      uint                  `gorm:"not null;index:idx_journey_instances_tenant_id" json:"tenant_id"`
	AutomationID  uint                  `gorm:"not null;uniqueIndex:uk_journey_instances_automation_customer;index:idx_journey_instances_automation_id" json:"automation_id"`
	CustomerID    uint                  `gorm:"not null;uniqueIndex:uk_journey_instances_automation_customer" json:"customer_id"`
	CurrentNodeID string                `gorm:"size:64;not null" json:"current_node_id"`
	Status        JourneyInstanceStatus `gorm:"type:varchar(20);not null;index:idx_journey_instances_status" json:"status"`

	// WakeAt is set on entering a WAIT node; the instance is inert until due.
	WakeAt      *time.Time `gorm:"index:idx_journey_instances_wake_at" json:"wake_at,omitempty"`
	LockedUntil *time.Time `json:"-"`

	EnteredAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"entered_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (JourneyInstance) TableName() string {
	return "journey_instances"
}

// JourneyInstanceFilter represents filter criteria for journey instance queries
type JourneyInstanceFilter struct {
	TenantID     *uint
	AutomationID *uint
	CustomerID   *uint
	Status       *JourneyInstanceStatus
}
