// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"
	"strconv"

	"github.com/aikyo-io/campaign-engine/app/dto"
	businessflow "github.com/aikyo-io/campaign-engine/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// MessageHandlerInterface defines the contract for message reporting handlers
type MessageHandlerInterface interface {
	ListHistory(c fiber.Ctx) error
	ListDeliveries(c fiber.Ctx) error
	GetBroadcastStats(c fiber.Ctx) error
}

// MessageHandler handles broadcast history and delivery reporting HTTP requests
type MessageHandler struct {
	messageFlow businessflow.MessageFlow
	validator   *validator.Validate
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageFlow businessflow.MessageFlow) *MessageHandler {
	return &MessageHandler{
		messageFlow: messageFlow,
		validator:   validator.New(),
	}
}

func (h *MessageHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *MessageHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ListHistory handles listing broadcast history
// @Summary Broadcast History
// @Description List the tenant's broadcasts newest first, each with derived delivery stats
// @Tags Messages
// @Produce json
// @Param channel query string false "Filter by channel"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListBroadcastsResponse} "Broadcast history retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/history [get]
func (h *MessageHandler) ListHistory(c fiber.Ctx) error {
	tenant, ok := tenantID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := &dto.ListBroadcastsRequest{
		TenantID: tenant,
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 0),
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

	result, err := h.messageFlow.ListHistory(createRequestContext(c, "/api/v1/messages/history"), req)
	if err != nil {
		log.Println("List broadcast history failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list broadcast history", "BROADCAST_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Broadcast history retrieved successfully", fiber.Map{
		"message":    result.Message,
		"broadcasts": result.Broadcasts,
		"page":       result.Page,
		"page_size":  result.PageSize,
	})
}

// ListDeliveries handles listing deliveries of one broadcast
// @Summary List Deliveries
// @Description List the per-destination deliveries of one broadcast
// @Tags Messages
// @Produce json
// @Param broadcast_id query string true "Broadcast UUID"
// @Param status query string false "Filter by delivery status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListDeliveriesResponse} "Deliveries retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 403 {object} dto.APIResponse "Forbidden - broadcast belongs to another tenant"
// @Failure 404 {object} dto.APIResponse "Broadcast not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/deliveries [get]
func (h *MessageHandler) ListDeliveries(c fiber.Ctx) error {
	tenant, ok := tenantID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := &dto.ListDeliveriesRequest{
		TenantID:      tenant,
		BroadcastUUID: c.Query("broadcast_id"),
		Page:          queryInt(c, "page", 1),
		PageSize:      queryInt(c, "page_size", 0),
	}
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

	result, err := h.messageFlow.ListDeliveries(createRequestContext(c, "/api/v1/messages/deliveries"), req)
	if err != nil {
		if businessflow.IsBroadcastNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Broadcast not found", "BROADCAST_NOT_FOUND", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok && be.Code == "BROADCAST_ACCESS_DENIED" {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Broadcast access denied", be.Code, nil)
		}

		log.Println("List deliveries failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list deliveries", "DELIVERY_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Deliveries retrieved successfully", fiber.Map{
		"message":    result.Message,
		"deliveries": result.Deliveries,
		"page":       result.Page,
		"page_size":  result.PageSize,
	})
}

// GetBroadcastStats handles the per-broadcast delivery stats report
// @Summary Broadcast Stats
// @Description Return the derived per-status aggregate of one broadcast's deliveries
// @Tags Messages
// @Produce json
// @Param broadcastId query string true "Broadcast UUID"
// @Success 200 {object} dto.APIResponse{data=dto.BroadcastStatsResponse} "Broadcast stats retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found in context"
// @Failure 403 {object} dto.APIResponse "Forbidden - broadcast belongs to another tenant"
// @Failure 404 {object} dto.APIResponse "Broadcast not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/deliveries/stats [get]
func (h *MessageHandler) GetBroadcastStats(c fiber.Ctx) error {
	tenant, ok := tenantID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := &dto.BroadcastStatsRequest{
		TenantID:      tenant,
		BroadcastUUID: c.Query("broadcastId"),
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.messageFlow.GetBroadcastStats(createRequestContext(c, "/api/v1/messages/deliveries/stats"), req)
	if err != nil {
		if businessflow.IsBroadcastNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Broadcast not found", "BROADCAST_NOT_FOUND", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok && be.Code == "BROADCAST_ACCESS_DENIED" {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Broadcast access denied", be.Code, nil)
		}

		log.Println("Broadcast stats failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get broadcast stats", "BROADCAST_STATS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Broadcast stats retrieved successfully", fiber.Map{
		"message": result.Message,
		"stats":   result.Stats,
	})
}

func queryInt(c fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
