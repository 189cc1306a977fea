// Package businessflow contains the core business logic and use cases for automation workflows
package businessflow

import (
	"context"
	"time"

	"github.com/aikyo-io/campaign-engine/app/dto"
	"github.com/aikyo-io/campaign-engine/journey"
	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/repository"
	"github.com/aikyo-io/campaign-engine/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AutomationFlow handles the journey automation business logic
type AutomationFlow interface {
	CreateAutomation(ctx context.Context, req *dto.CreateAutomationRequest, metadata *ClientMetadata) (*dto.CreateAutomationResponse, error)
	UpdateAutomation(ctx context.Context, req *dto.UpdateAutomationRequest, metadata *ClientMetadata) (*dto.UpdateAutomationResponse, error)
	ListAutomations(ctx context.Context, req *dto.ListAutomationsRequest) (*dto.ListAutomationsResponse, error)
}

// AutomationFlowImpl implements the automation business flow
type AutomationFlowImpl struct {
	automationRepo repository.AutomationRepository
	db             *gorm.DB
}

// NewAutomationFlow creates a new automation flow instance
func NewAutomationFlow(automationRepo repository.AutomationRepository, db *gorm.DB) AutomationFlow {
	return &AutomationFlowImpl{
		automationRepo: automationRepo,
		db:             db,
	}
}

// CreateAutomation validates the journey definition and persists a new automation
func (s *AutomationFlowImpl) CreateAutomation(ctx context.Context, req *dto.CreateAutomationRequest, metadata *ClientMetadata) (*dto.CreateAutomationResponse, error) {
	if req.TenantID == 0 {
		return nil, NewBusinessError("TENANT_REQUIRED", "Tenant is required", ErrTenantRequired)
	}
	if req.Name == "" {
		return nil, NewBusinessError("AUTOMATION_VALIDATION_FAILED", "Automation validation failed", ErrAutomationNameRequired)
	}

	if _, err := journey.ValidateDefinition(req.Definition); err != nil {
		return nil, NewBusinessError("JOURNEY_INVALID", "Journey definition is invalid", err)
	}

	status := models.AutomationStatusDraft
	if req.Status != nil {
		status = models.AutomationStatus(*req.Status)
	}

	automation := &models.Automation{
		UUID:       uuid.New(),
		TenantID:   req.TenantID,
		Name:       req.Name,
		Status:     status,
		Definition: req.Definition,
		CreatedAt:  utils.UTCNow(),
	}

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.automationRepo.Save(txCtx, automation)
	})
	if err != nil {
		return nil, NewBusinessError("AUTOMATION_CREATION_FAILED", "Automation creation failed", err)
	}

	return &dto.CreateAutomationResponse{
		Message:   "Automation created successfully",
		UUID:      automation.UUID.String(),
		Status:    string(automation.Status),
		CreatedAt: automation.CreatedAt.Format(time.RFC3339),
	}, nil
}

// UpdateAutomation revalidates and persists changes to an existing automation
func (s *AutomationFlowImpl) UpdateAutomation(ctx context.Context, req *dto.UpdateAutomationRequest, metadata *ClientMetadata) (*dto.UpdateAutomationResponse, error) {
	automation, err := s.getTenantAutomation(ctx, req.TenantID, req.UUID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		automation.Name = *req.Name
	}
	if req.Definition != nil {
		if _, err := journey.ValidateDefinition(*req.Definition); err != nil {
			return nil, NewBusinessError("JOURNEY_INVALID", "Journey definition is invalid", err)
		}
		automation.Definition = *req.Definition
	}
	if req.Status != nil {
		status := models.AutomationStatus(*req.Status)
		if !status.Valid() {
			return nil, NewBusinessError("AUTOMATION_STATUS_INVALID", "Automation status is invalid", ErrAutomationStatusInvalid)
		}
		automation.Status = status
	}
	automation.UpdatedAt = utils.ToPtr(utils.UTCNow())

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.automationRepo.Update(txCtx, *automation)
	})
	if err != nil {
		return nil, NewBusinessError("AUTOMATION_UPDATE_FAILED", "Automation update failed", err)
	}

	return &dto.UpdateAutomationResponse{
		Message: "Automation updated successfully",
	}, nil
}

// ListAutomations returns the tenant's automations
func (s *AutomationFlowImpl) ListAutomations(ctx context.Context, req *dto.ListAutomationsRequest) (*dto.ListAutomationsResponse, error) {
	if req.TenantID == 0 {
		return nil, NewBusinessError("TENANT_REQUIRED", "Tenant is required", ErrTenantRequired)
	}

	filter := models.AutomationFilter{TenantID: &req.TenantID}
	if req.Status != nil {
		st := models.AutomationStatus(*req.Status)
		filter.Status = &st
	}

	automations, err := s.automationRepo.ByFilter(ctx, filter, "id DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("AUTOMATION_LIST_FAILED", "Failed to list automations", err)
	}

	items := make([]dto.AutomationDTO, 0, len(automations))
	for _, a := range automations {
		items = append(items, dto.AutomationDTO{
			UUID:       a.UUID.String(),
			Name:       a.Name,
			Status:     string(a.Status),
			Definition: a.Definition,
			CreatedAt:  a.CreatedAt,
			UpdatedAt:  a.UpdatedAt,
		})
	}

	return &dto.ListAutomationsResponse{
		Message:     "Automations retrieved successfully",
		Automations: items,
	}, nil
}

func (s *AutomationFlowImpl) getTenantAutomation(ctx context.Context, tenantID uint, automationUUID string) (*models.Automation, error) {
	if tenantID == 0 {
		return nil, NewBusinessError("TENANT_REQUIRED", "Tenant is required", ErrTenantRequired)
	}
	if automationUUID == "" {
		return nil, NewBusinessError("AUTOMATION_UUID_REQUIRED", "Automation UUID is required", ErrAutomationUUIDRequired)
	}

	automation, err := s.automationRepo.ByUUID(ctx, automationUUID)
	if err != nil {
		return nil, NewBusinessError("AUTOMATION_LOOKUP_FAILED", "Failed to lookup automation", err)
	}
	if automation == nil {
		return nil, NewBusinessError("AUTOMATION_NOT_FOUND", "Automation not found", ErrAutomationNotFound)
	}
	if automation.TenantID != tenantID {
		return nil, NewBusinessError("AUTOMATION_ACCESS_DENIED", "Automation access denied", ErrAutomationAccessDenied)
	}

	return automation, nil
}
