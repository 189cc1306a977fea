package dto

import (
	"time"

	"github.com/aikyo-io/campaign-engine/models"
)

// CreateSegmentRequest represents the request to create a new audience segment
type CreateSegmentRequest struct {
	TenantID   uint                      `json:"-"`
	Name       string                    `json:"name" validate:"required,min=1,max=255"`
	Definition models.AudienceDefinition `json:"definition" validate:"required"`
}

// CreateSegmentResponse represents the response to create a new audience segment
type CreateSegmentResponse struct {
	Message        string `json:"message"`
	UUID           string `json:"uuid"`
	DefinitionHash string `json:"definition_hash"`
	CreatedAt      string `json:"created_at"`
}

// UpdateSegmentRequest represents the request to update an existing segment
type UpdateSegmentRequest struct {
	UUID       string                     `json:"-"`
	TenantID   uint                       `json:"-"`
	Name       *string                    `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Definition *models.AudienceDefinition `json:"definition,omitempty"`
}

// UpdateSegmentResponse represents the response to update an existing segment
type UpdateSegmentResponse struct {
	Message        string `json:"message"`
	DefinitionHash string `json:"definition_hash"`
}

// SegmentDTO represents a segment in list and get responses
type SegmentDTO struct {
	UUID           string                    `json:"uuid"`
	Name           string                    `json:"name"`
	Definition     models.AudienceDefinition `json:"definition"`
	DefinitionHash string                    `json:"definition_hash"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      *time.Time                `json:"updated_at,omitempty"`
}

// ListSegmentsRequest represents the request to list segments of a tenant
type ListSegmentsRequest struct {
	TenantID uint `json:"-"`
}

// ListSegmentsResponse represents the response to list segments of a tenant
type ListSegmentsResponse struct {
	Message  string       `json:"message"`
	Segments []SegmentDTO `json:"segments"`
}
