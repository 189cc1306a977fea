// Package models contains domain entities and business models for the campaign engine
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CustomerType represents the kind of customer profile
type CustomerType string

const (
	CustomerTypeIndividual CustomerType = "INDIVIDUAL"
	CustomerTypeCompany    CustomerType = "COMPANY"
)

// String returns the string representation of the type
func (t CustomerType) String() string {
	return string(t)
}

// Valid checks if the customer type is valid
func (t CustomerType) Valid() bool {
	switch t {
	case CustomerTypeIndividual, CustomerTypeCompany:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CustomerType
func (t *CustomerType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = CustomerType(v)
	case []byte:
		*t = CustomerType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CustomerType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CustomerType
func (t CustomerType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid CustomerType: %s", t)
	}
	return string(t), nil
}

// Identifiers holds the per-channel destination identifiers of a customer
type Identifiers struct {
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	LineUserID *string `json:"lineUserId,omitempty"`
	PSID       *string `json:"psid,omitempty"`
}

// Value implements the driver.Valuer interface for Identifiers
func (i Identifiers) Value() (driver.Value, error) {
	return json.Marshal(i)
}

// Scan implements the sql.Scanner interface for Identifiers
func (i *Identifiers) Scan(value any) error {
	if value == nil {
		*i = Identifiers{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Identifiers", value)
	}

	return json.Unmarshal(bytes, i)
}

// Profile holds the descriptive profile fields of a customer
type Profile struct {
	Name        *string `json:"name,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
}

// Value implements the driver.Valuer interface for Profile
func (p Profile) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for Profile
func (p *Profile) Scan(value any) error {
	if value == nil {
		*p = Profile{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Profile", value)
	}

	return json.Unmarshal(bytes, p)
}

// Customer represents a tenant-scoped customer profile in the database
type Customer struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`
	TenantID    uint         `gorm:"not null;index:idx_customers_tenant_id" json:"tenant_id"`
	Type        CustomerType `gorm:"type:varchar(20);not null;index:idx_customers_type" json:"type"`
	Identifiers Identifiers  `gorm:"type:jsonb;not null" json:"identifiers"`
	Profile     Profile      `gorm:"type:jsonb;not null" json:"profile"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_customers_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Billings     []Billing     `gorm:"foreignKey:CustomerID" json:"-"`
	Events       []Event       `gorm:"foreignKey:CustomerID" json:"-"`
	CustomerTags []CustomerTag `gorm:"foreignKey:CustomerID" json:"-"`
}

func (Customer) TableName() string {
	return "customers"
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	ID            *uint
	TenantID      *uint
	Type          *CustomerType
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
