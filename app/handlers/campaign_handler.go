// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/aikyo-io/campaign-engine/app/dto"
	businessflow "github.com/aikyo-io/campaign-engine/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	UpdateCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	RunCampaign(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateCampaign handles the campaign creation process
// @Summary Create Campaign
// @Description Create a new campaign with a schedule, an audience and a template
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRequest true "Campaign creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateCampaignResponse} "Campaign created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error, invalid schedule or invalid audience"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
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

	result, err := h.campaignFlow.CreateCampaign(createRequestContext(c, "/api/v1/messages/campaigns"), &req, metadata)
	if err != nil {
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "SCHEDULE_INVALID", "AUDIENCE_INVALID", "TEMPLATE_INVALID", "CAMPAIGN_VALIDATION_FAILED":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, be.Err.Error())
			}
		}

		log.Println("Campaign creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", fiber.Map{
		"message":    result.Message,
		"uuid":       result.UUID,
		"status":     result.Status,
		"created_at": result.CreatedAt,
	})
}

// UpdateCampaign handles the campaign update process
// @Summary Update Campaign
// @Description Update an existing campaign with the specified parameters
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param request body dto.UpdateCampaignRequest true "Campaign update data"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateCampaignResponse} "Campaign updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error, invalid schedule or invalid audience"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 403 {object} dto.APIResponse "Forbidden - campaign belongs to another tenant"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/campaigns/{uuid} [patch]
func (h *CampaignHandler) UpdateCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	var req dto.UpdateCampaignRequest
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
	req.UUID = campaignUUID

	result, err := h.campaignFlow.UpdateCampaign(createRequestContext(c, "/api/v1/messages/campaigns/"+campaignUUID), &req, metadata)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "SCHEDULE_INVALID", "AUDIENCE_INVALID", "TEMPLATE_INVALID":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, be.Err.Error())
			case "CAMPAIGN_ACCESS_DENIED":
				return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign access denied", be.Code, nil)
			}
		}

		log.Println("Campaign update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign update failed", "CAMPAIGN_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign updated successfully", fiber.Map{
		"message": result.Message,
	})
}

// ListCampaigns handles listing the tenant's campaigns
// @Summary List Campaigns
// @Description List campaigns of the authenticated tenant with optional status and channel filters
// @Tags Campaigns
// @Produce json
// @Param status query string false "Filter by status"
// @Param channel query string false "Filter by channel"
// @Success 200 {object} dto.APIResponse{data=dto.ListCampaignsResponse} "Campaigns retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	tenant, ok := tenantID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := &dto.ListCampaignsRequest{TenantID: tenant}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	if channel := c.Query("channel"); channel != "" {
		req.Channel = &channel
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.campaignFlow.ListCampaigns(createRequestContext(c, "/api/v1/messages/campaigns"), req)
	if err != nil {
		log.Println("List campaigns failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list campaigns", "LIST_CAMPAIGNS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", fiber.Map{
		"message":   result.Message,
		"campaigns": result.Campaigns,
	})
}

// RunCampaign handles firing a campaign immediately
// @Summary Run Campaign
// @Description Fire a campaign immediately, bypassing its schedule. Rejects when the audience resolves to zero destinations.
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RunCampaignResponse} "Campaign fired successfully"
// @Failure 400 {object} dto.APIResponse "Empty audience or campaign not runnable"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 403 {object} dto.APIResponse "Forbidden - campaign belongs to another tenant"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/campaigns/{uuid}/run [post]
func (h *CampaignHandler) RunCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	tenant, ok := tenantID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := &dto.RunCampaignRequest{UUID: campaignUUID, TenantID: tenant}

	result, err := h.campaignFlow.RunCampaign(createRequestContextWithTimeout(c, "/api/v1/messages/campaigns/"+campaignUUID+"/run", runTimeout), req, metadata)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignNotRunnable(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign is not runnable", "CAMPAIGN_NOT_RUNNABLE", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "EMPTY_AUDIENCE":
				return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign audience resolved to zero destinations", be.Code, nil)
			case "CAMPAIGN_ACCESS_DENIED":
				return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign access denied", be.Code, nil)
			}
		}

		log.Println("Campaign run failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign run failed", "CAMPAIGN_RUN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign fired successfully", fiber.Map{
		"message":      result.Message,
		"broadcast_id": result.BroadcastID,
		"recipients":   result.Recipients,
		"unreachable":  result.Unreachable,
	})
}
