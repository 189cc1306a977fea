package dto

import (
	"time"

	"github.com/aikyo-io/campaign-engine/models"
)

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	TenantID     uint                `json:"-"`
	Name         string              `json:"name" validate:"required,min=1,max=255"`
	Channel      string              `json:"channel" validate:"required,oneof=LINE MESSENGER EMAIL SMS"`
	Schedule     models.Schedule     `json:"schedule" validate:"required"`
	Audience     models.AudienceSpec `json:"audience" validate:"required"`
	TemplateKind string              `json:"template_kind" validate:"required,oneof=RAW LINE MESSENGER EMAIL SMS"`
	TemplateID   *string             `json:"template_id,omitempty" validate:"omitempty,max=64"`
	Payload      map[string]any      `json:"payload,omitempty"`
	Status       *string             `json:"status,omitempty" validate:"omitempty,oneof=DRAFT ACTIVE"`
}

// CreateCampaignResponse represents the response to create a new campaign
type CreateCampaignResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// UpdateCampaignRequest represents the request to update an existing campaign
type UpdateCampaignRequest struct {
	UUID         string               `json:"-"`
	TenantID     uint                 `json:"-"`
	Name         *string              `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Channel      *string              `json:"channel,omitempty" validate:"omitempty,oneof=LINE MESSENGER EMAIL SMS"`
	Schedule     *models.Schedule     `json:"schedule,omitempty"`
	Audience     *models.AudienceSpec `json:"audience,omitempty"`
	TemplateKind *string              `json:"template_kind,omitempty" validate:"omitempty,oneof=RAW LINE MESSENGER EMAIL SMS"`
	TemplateID   *string              `json:"template_id,omitempty" validate:"omitempty,max=64"`
	Payload      map[string]any       `json:"payload,omitempty"`
	Status       *string              `json:"status,omitempty" validate:"omitempty,oneof=DRAFT ACTIVE PAUSED ARCHIVED"`
}

// UpdateCampaignResponse represents the response to update an existing campaign
type UpdateCampaignResponse struct {
	Message string `json:"message"`
}

// RunCampaignRequest represents the request to fire a campaign immediately
type RunCampaignRequest struct {
	UUID     string `json:"-"`
	TenantID uint   `json:"-"`
}

// RunCampaignResponse represents the response to fire a campaign immediately
type RunCampaignResponse struct {
	Message     string `json:"message"`
	BroadcastID string `json:"broadcast_id"`
	Recipients  int    `json:"recipients"`
	Unreachable int    `json:"unreachable"`
}

// CampaignDTO represents a campaign in list and get responses
type CampaignDTO struct {
	UUID         string              `json:"uuid"`
	Name         string              `json:"name"`
	Channel      string              `json:"channel"`
	Status       string              `json:"status"`
	Schedule     models.Schedule     `json:"schedule"`
	Audience     models.AudienceSpec `json:"audience"`
	TemplateKind string              `json:"template_kind"`
	TemplateID   *string             `json:"template_id,omitempty"`
	Payload      map[string]any      `json:"payload,omitempty"`
	LastFiredAt  *time.Time          `json:"last_fired_at,omitempty"`
	NextFireAt   *time.Time          `json:"next_fire_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    *time.Time          `json:"updated_at,omitempty"`
}

// ListCampaignsRequest represents the request to list campaigns of a tenant
type ListCampaignsRequest struct {
	TenantID uint    `json:"-"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=DRAFT ACTIVE PAUSED ARCHIVED"`
	Channel  *string `json:"channel,omitempty" validate:"omitempty,oneof=LINE MESSENGER EMAIL SMS"`
}

// ListCampaignsResponse represents the response to list campaigns of a tenant
type ListCampaignsResponse struct {
	Message   string        `json:"message"`
	Campaigns []CampaignDTO `json:"campaigns"`
}
