package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// BillingStatus represents the payment status of a billing row
type BillingStatus string

const (
	BillingStatusPending BillingStatus = "PENDING"
	BillingStatusPaid    BillingStatus = "PAID"
	BillingStatusOverdue BillingStatus = "OVERDUE"
	BillingStatusVoid    BillingStatus = "VOID"
)

// String returns the string representation of the status
func (s BillingStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s BillingStatus) Valid() bool {
	switch s {
	case BillingStatusPending, BillingStatusPaid, BillingStatusOverdue, BillingStatusVoid:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for BillingStatus
func (s *BillingStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = BillingStatus(v)
	case []byte:
		*s = BillingStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into BillingStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for BillingStatus
func (s BillingStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid BillingStatus: %s", s)
	}
	return string(s), nil
}

// Billing represents an invoice attached to a customer
type Billing struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	TenantID      uint          `gorm:"not null;index:idx_billings_tenant_id" json:"tenant_id"`
	CustomerID    uint          `gorm:"not null;index:idx_billings_customer_id" json:"customer_id"`
	InvoiceNumber string        `gorm:"size:64;not null" json:"invoice_number"`
	Status        BillingStatus `gorm:"type:varchar(20);not null;index:idx_billings_status" json:"status"`
	IssueDate     time.Time     `gorm:"not null" json:"issue_date"`
	PaidDate      *time.Time    `json:"paid_date,omitempty"`
	Amount        int64         `gorm:"not null" json:"amount"`
	Currency      string        `gorm:"size:3;not null" json:"currency"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Billing) TableName() string {
	return "billings"
}

// BillingFilter represents filter criteria for billing queries
type BillingFilter struct {
	TenantID   *uint
	CustomerID *uint
	Status     *BillingStatus
}
