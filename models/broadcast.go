package models

import (
	"time"

	"github.com/google/uuid"
)

// Broadcast represents one fired instance of a campaign, manual send, or
// journey output. Immutable after creation; its stats are always derived from
// the delivery rows, never stored.
type Broadcast struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UUID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_broadcasts_uuid" json:"uuid"`
	TenantID uint      `gorm:"not null;index:idx_broadcasts_tenant_id" json:"tenant_id"`
	Channel  Channel   `gorm:"type:varchar(20);not null" json:"channel"`

	// Source reference: exactly one of CampaignID, ImmediateID, AutomationID is
	// set, identifying what triggered the fire.
	CampaignID    *uint   `gorm:"index:idx_broadcasts_campaign_id" json:"campaign_id,omitempty"`
	ImmediateID   *string `gorm:"size:64" json:"immediate_id,omitempty"`
	AutomationID  *uint   `gorm:"index:idx_broadcasts_automation_id" json:"automation_id,omitempty"`
	JourneyNodeID *string `gorm:"size:64" json:"journey_node_id,omitempty"`

	Name         *string      `gorm:"size:255" json:"name,omitempty"`
	TemplateKind TemplateKind `gorm:"type:varchar(20);not null" json:"template_kind"`
	TemplateID   *string      `gorm:"size:64" json:"template_id,omitempty"`
	Metadata     JSONMap      `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_broadcasts_created_at" json:"created_at"`

	// Relations
	Deliveries []Delivery `gorm:"foreignKey:BroadcastID" json:"-"`
}

func (Broadcast) TableName() string {
	return "broadcasts"
}

// BroadcastFilter represents filter criteria for broadcast queries
type BroadcastFilter struct {
	TenantID     *uint
	CampaignID   *uint
	AutomationID *uint
	Channel      *Channel
	After        *time.Time
	Before       *time.Time
}
