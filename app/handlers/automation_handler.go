// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/aikyo-io/campaign-engine/app/dto"
	businessflow "github.com/aikyo-io/campaign-engine/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AutomationHandlerInterface defines the contract for automation handlers
type AutomationHandlerInterface interface {
	CreateAutomation(c fiber.Ctx) error
	UpdateAutomation(c fiber.Ctx) error
	ListAutomations(c fiber.Ctx) error
}

// AutomationHandler handles automation-related HTTP requests
type AutomationHandler struct {
	automationFlow businessflow.AutomationFlow
	validator      *validator.Validate
}

// NewAutomationHandler creates a new automation handler
func NewAutomationHandler(automationFlow businessflow.AutomationFlow) *AutomationHandler {
	return &AutomationHandler{
		automationFlow: automationFlow,
		validator:      validator.New(),
	}
}

func (h *AutomationHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AutomationHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateAutomation handles the automation creation process
// @Summary Create Automation
// @Description Validate a journey definition and persist it as a named automation
// @Tags Automations
// @Accept json
// @Produce json
// @Param request body dto.CreateAutomationRequest true "Automation creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateAutomationResponse} "Automation created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid journey definition"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/automations [post]
func (h *AutomationHandler) CreateAutomation(c fiber.Ctx) error {
	var req dto.CreateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	tenant, ok := tenantID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}
	req.TenantID = tenant

	result, err := h.automationFlow.CreateAutomation(createRequestContext(c, "/api/v1/messages/automations"), &req, metadata)
	if err != nil {
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "JOURNEY_INVALID", "AUTOMATION_VALIDATION_FAILED":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, be.Err.Error())
			}
		}

		log.Println("Automation creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Automation creation failed", "AUTOMATION_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Automation created successfully", fiber.Map{
		"message":    result.Message,
		"uuid":       result.UUID,
		"status":     result.Status,
		"created_at": result.CreatedAt,
	})
}

// UpdateAutomation handles the automation update process
// @Summary Update Automation
// @Description Revalidate and persist changes to an existing automation
// @Tags Automations
// @Accept json
// @Produce json
// @Param uuid path string true "Automation UUID"
// @Param request body dto.UpdateAutomationRequest true "Automation update data"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateAutomationResponse} "Automation updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid journey definition"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 403 {object} dto.APIResponse "Forbidden - automation belongs to another tenant"
// @Failure 404 {object} dto.APIResponse "Automation not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/automations/{uuid} [patch]
func (h *AutomationHandler) UpdateAutomation(c fiber.Ctx) error {
	automationUUID := c.Params("uuid")
	if automationUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Automation UUID is required", "MISSING_AUTOMATION_UUID", nil)
	}

	var req dto.UpdateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	tenant, ok := tenantID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}
	req.TenantID = tenant
	req.UUID = automationUUID

	result, err := h.automationFlow.UpdateAutomation(createRequestContext(c, "/api/v1/messages/automations/"+automationUUID), &req, metadata)
	if err != nil {
		if businessflow.IsAutomationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Automation not found", "AUTOMATION_NOT_FOUND", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "JOURNEY_INVALID", "AUTOMATION_STATUS_INVALID":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, be.Err.Error())
			case "AUTOMATION_ACCESS_DENIED":
				return h.ErrorResponse(c, fiber.StatusForbidden, "Automation access denied", be.Code, nil)
			}
		}

		log.Println("Automation update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Automation update failed", "AUTOMATION_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Automation updated successfully", fiber.Map{
		"message": result.Message,
	})
}

// ListAutomations handles listing the tenant's automations
// @Summary List Automations
// @Description List automations of the authenticated tenant with an optional status filter
// @Tags Automations
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} dto.APIResponse{data=dto.ListAutomationsResponse} "Automations retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/automations [get]
func (h *AutomationHandler) ListAutomations(c fiber.Ctx) error {
	tenant, ok := tenantID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := &dto.ListAutomationsRequest{TenantID: tenant}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.automationFlow.ListAutomations(createRequestContext(c, "/api/v1/messages/automations"), req)
	if err != nil {
		log.Println("List automations failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list automations", "LIST_AUTOMATIONS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Automations retrieved successfully", fiber.Map{
		"message":     result.Message,
		"automations": result.Automations,
	})
}
