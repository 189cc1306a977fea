package dto

import (
	"time"

	"github.com/aikyo-io/campaign-engine/models"
)

// EstimateAudienceRequest represents the request to estimate an audience size.
// Exactly one of SegmentUUID or Definition must be provided.
type EstimateAudienceRequest struct {
	TenantID    uint                       `json:"-"`
	SegmentUUID *string                    `json:"segment_uuid,omitempty" validate:"omitempty,uuid4"`
	Definition  *models.AudienceDefinition `json:"definition,omitempty"`
}

// EstimateAudienceResponse represents the response to estimate an audience size
type EstimateAudienceResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// ListBroadcastsRequest represents the request to list broadcast history
type ListBroadcastsRequest struct {
	TenantID uint    `json:"-"`
	Channel  *string `json:"channel,omitempty" validate:"omitempty,oneof=LINE MESSENGER EMAIL SMS"`
	Page     int     `json:"page" validate:"omitempty,min=1"`
	PageSize int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// BroadcastDTO represents a broadcast in history responses
type BroadcastDTO struct {
	UUID         string                `json:"uuid"`
	Channel      string                `json:"channel"`
	Name         *string               `json:"name,omitempty"`
	CampaignID   *uint                 `json:"campaign_id,omitempty"`
	ImmediateID  *string               `json:"immediate_id,omitempty"`
	AutomationID *uint                 `json:"automation_id,omitempty"`
	TemplateKind string                `json:"template_kind"`
	TemplateID   *string               `json:"template_id,omitempty"`
	Stats        models.BroadcastStats `json:"stats"`
	CreatedAt    time.Time             `json:"created_at"`
}

// ListBroadcastsResponse represents the response to list broadcast history
type ListBroadcastsResponse struct {
	Message    string         `json:"message"`
	Broadcasts []BroadcastDTO `json:"broadcasts"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}

// ListDeliveriesRequest represents the request to list deliveries of a broadcast
type ListDeliveriesRequest struct {
	TenantID      uint    `json:"-"`
	BroadcastUUID string  `json:"broadcast_uuid" validate:"required,uuid4"`
	Status        *string `json:"status,omitempty" validate:"omitempty,oneof=QUEUED SENT FAILED"`
	Page          int     `json:"page" validate:"omitempty,min=1"`
	PageSize      int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// DeliveryDTO represents a per-destination delivery in responses
type DeliveryDTO struct {
	ID           uint           `json:"id"`
	CustomerID   *uint          `json:"customer_id,omitempty"`
	Destination  string         `json:"destination"`
	Status       string         `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	ProviderMeta map[string]any `json:"provider_meta,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    *time.Time     `json:"updated_at,omitempty"`
}

// ListDeliveriesResponse represents the response to list deliveries of a broadcast
type ListDeliveriesResponse struct {
	Message    string        `json:"message"`
	Deliveries []DeliveryDTO `json:"deliveries"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

// BroadcastStatsRequest represents the request to get delivery stats of a broadcast
type BroadcastStatsRequest struct {
	TenantID      uint   `json:"-"`
	BroadcastUUID string `json:"broadcast_uuid" validate:"required,uuid4"`
}

// BroadcastStatsResponse represents the response to get delivery stats of a broadcast
type BroadcastStatsResponse struct {
	Message string                `json:"message"`
	Stats   models.BroadcastStats `json:"stats"`
}
