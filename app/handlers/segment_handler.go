// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/aikyo-io/campaign-engine/app/dto"
	businessflow "github.com/aikyo-io/campaign-engine/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// SegmentHandlerInterface defines the contract for segment handlers
type SegmentHandlerInterface interface {
	CreateSegment(c fiber.Ctx) error
	UpdateSegment(c fiber.Ctx) error
	ListSegments(c fiber.Ctx) error
	EstimateAudience(c fiber.Ctx) error
}

// SegmentHandler handles segment-related HTTP requests
type SegmentHandler struct {
	segmentFlow businessflow.SegmentFlow
	validator   *validator.Validate
}

// NewSegmentHandler creates a new segment handler
func NewSegmentHandler(segmentFlow businessflow.SegmentFlow) *SegmentHandler {
	return &SegmentHandler{
		segmentFlow: segmentFlow,
		validator:   validator.New(),
	}
}

func (h *SegmentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SegmentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateSegment handles the segment creation process
// @Summary Create Segment
// @Description Validate an audience graph definition and persist it as a named segment
// @Tags Segments
// @Accept json
// @Produce json
// @Param request body dto.CreateSegmentRequest true "Segment creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateSegmentResponse} "Segment created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid audience graph"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments [post]
func (h *SegmentHandler) CreateSegment(c fiber.Ctx) error {
	var req dto.CreateSegmentRequest
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

	result, err := h.segmentFlow.CreateSegment(createRequestContext(c, "/api/v1/segments"), &req, metadata)
	if err != nil {
		if be, ok := err.(*businessflow.BusinessError); ok && be.Code == "SEGMENT_GRAPH_INVALID" {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Audience graph is invalid", be.Code, be.Err.Error())
		}

		log.Println("Segment creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Segment creation failed", "SEGMENT_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Segment created successfully", fiber.Map{
		"message":         result.Message,
		"uuid":            result.UUID,
		"definition_hash": result.DefinitionHash,
		"created_at":      result.CreatedAt,
	})
}

// UpdateSegment handles the segment update process
// @Summary Update Segment
// @Description Revalidate and persist changes to an existing segment
// @Tags Segments
// @Accept json
// @Produce json
// @Param uuid path string true "Segment UUID"
// @Param request body dto.UpdateSegmentRequest true "Segment update data"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateSegmentResponse} "Segment updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid audience graph"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 403 {object} dto.APIResponse "Forbidden - segment belongs to another tenant"
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments/{uuid} [patch]
func (h *SegmentHandler) UpdateSegment(c fiber.Ctx) error {
	segmentUUID := c.Params("uuid")
	if segmentUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment UUID is required", "MISSING_SEGMENT_UUID", nil)
	}

	var req dto.UpdateSegmentRequest
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
	req.UUID = segmentUUID

	result, err := h.segmentFlow.UpdateSegment(createRequestContext(c, "/api/v1/segments/"+segmentUUID), &req, metadata)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "SEGMENT_NOT_FOUND", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "SEGMENT_GRAPH_INVALID":
				return h.ErrorResponse(c, fiber.StatusBadRequest, "Audience graph is invalid", be.Code, be.Err.Error())
			case "SEGMENT_ACCESS_DENIED":
				return h.ErrorResponse(c, fiber.StatusForbidden, "Segment access denied", be.Code, nil)
			}
		}

		log.Println("Segment update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Segment update failed", "SEGMENT_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segment updated successfully", fiber.Map{
		"message":         result.Message,
		"definition_hash": result.DefinitionHash,
	})
}

// ListSegments handles listing the tenant's segments
// @Summary List Segments
// @Description List all segments of the authenticated tenant
// @Tags Segments
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListSegmentsResponse} "Segments retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments [get]
func (h *SegmentHandler) ListSegments(c fiber.Ctx) error {
	tenant, ok := tenantID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := &dto.ListSegmentsRequest{TenantID: tenant}

	result, err := h.segmentFlow.ListSegments(createRequestContext(c, "/api/v1/segments"), req)
	if err != nil {
		log.Println("List segments failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list segments", "LIST_SEGMENTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segments retrieved successfully", fiber.Map{
		"message":  result.Message,
		"segments": result.Segments,
	})
}

// EstimateAudience handles audience size estimation
// @Summary Estimate Audience
// @Description Resolve an audience definition against live data and return the matched customer count
// @Tags Segments
// @Accept json
// @Produce json
// @Param request body dto.EstimateAudienceRequest true "Estimate request: segment UUID or inline definition"
// @Success 200 {object} dto.APIResponse{data=dto.EstimateAudienceResponse} "Audience estimated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid audience graph"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/audience/estimate [post]
func (h *SegmentHandler) EstimateAudience(c fiber.Ctx) error {
	var req dto.EstimateAudienceRequest
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

	result, err := h.segmentFlow.EstimateAudience(createRequestContext(c, "/api/v1/messages/audience/estimate"), &req, metadata)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "SEGMENT_NOT_FOUND", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "SEGMENT_GRAPH_INVALID", "ESTIMATE_VALIDATION_FAILED":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, be.Err.Error())
			}
		}

		log.Println("Audience estimation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Audience estimation failed", "ESTIMATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Audience estimated successfully", fiber.Map{
		"message": result.Message,
		"count":   result.Count,
	})
}
