package dto

import (
	"time"

	"github.com/aikyo-io/campaign-engine/models"
)

// CreateAutomationRequest represents the request to create a new automation
type CreateAutomationRequest struct {
	TenantID   uint                     `json:"-"`
	Name       string                   `json:"name" validate:"required,min=1,max=255"`
	Definition models.JourneyDefinition `json:"definition" validate:"required"`
	Status     *string                  `json:"status,omitempty" validate:"omitempty,oneof=DRAFT ACTIVE"`
}

// CreateAutomationResponse represents the response to create a new automation
type CreateAutomationResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// UpdateAutomationRequest represents the request to update an existing automation
type UpdateAutomationRequest struct {
	UUID       string                    `json:"-"`
	TenantID   uint                      `json:"-"`
	Name       *string                   `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Definition *models.JourneyDefinition `json:"definition,omitempty"`
	Status     *string                   `json:"status,omitempty" validate:"omitempty,oneof=DRAFT ACTIVE PAUSED ARCHIVED"`
}

// UpdateAutomationResponse represents the response to update an existing automation
type UpdateAutomationResponse struct {
	Message string `json:"message"`
}

// AutomationDTO represents an automation in list and get responses
type AutomationDTO struct {
	UUID       string                   `json:"uuid"`
	Name       string                   `json:"name"`
	Status     string                   `json:"status"`
	Definition models.JourneyDefinition `json:"definition"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  *time.Time               `json:"updated_at,omitempty"`
}

// ListAutomationsRequest represents the request to list automations of a tenant
type ListAutomationsRequest struct {
	TenantID uint    `json:"-"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=DRAFT ACTIVE PAUSED ARCHIVED"`
}

// ListAutomationsResponse represents the response to list automations of a tenant
type ListAutomationsResponse struct {
	Message     string          `json:"message"`
	Automations []AutomationDTO `json:"automations"`
}
