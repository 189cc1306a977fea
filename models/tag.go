package models

import "time"

// Tag represents a label used to categorize or target customers
// Table: tags
// Unique by (tenant_id, name); timestamps default to UTC at DB level
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  uint      `gorm:"not null;uniqueIndex:uk_tags_tenant_name;index:idx_tags_tenant_id" json:"tenant_id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:uk_tags_tenant_name" json:"name"`
	IsActive  *bool     `gorm:"default:true;index:idx_tags_is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_tags_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Tag) TableName() string { return "tags" }

// TagFilter represents filter criteria for tag queries
type TagFilter struct {
	ID            *uint
	TenantID      *uint
	Name          *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// CustomerTag represents a tag assignment on a customer
// Table: customer_tags
// Unique by (customer_id, tag_id)
type CustomerTag struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   uint      `gorm:"not null;index:idx_customer_tags_tenant_id" json:"tenant_id"`
	CustomerID uint      `gorm:"not null;uniqueIndex:uk_customer_tags_customer_tag;index:idx_customer_tags_customer_id" json:"customer_id"`
	TagID      uint      `gorm:"not null;uniqueIndex:uk_customer_tags_customer_tag;index:idx_customer_tags_tag_id" json:"tag_id"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (CustomerTag) TableName() string { return "customer_tags" }

// CustomerTagFilter represents filter criteria for customer tag queries
type CustomerTagFilter struct {
	TenantID   *uint
	CustomerID *uint
	TagID      *uint
}
