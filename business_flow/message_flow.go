// Package businessflow contains the core business logic and use cases for message reporting workflows
package businessflow

import (
	"context"

	"github.com/aikyo-io/campaign-engine/app/dto"
	"github.com/aikyo-io/campaign-engine/dispatch"
	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/repository"
	"github.com/aikyo-io/campaign-engine/utils"
)

// MessageFlow handles broadcast history and delivery reporting
type MessageFlow interface {
	ListHistory(ctx context.Context, req *dto.ListBroadcastsRequest) (*dto.ListBroadcastsResponse, error)
	ListDeliveries(ctx context.Context, req *dto.ListDeliveriesRequest) (*dto.ListDeliveriesResponse, error)
	GetBroadcastStats(ctx context.Context, req *dto.BroadcastStatsRequest) (*dto.BroadcastStatsResponse, error)
}

// MessageFlowImpl implements the message reporting flow
type MessageFlowImpl struct {
	broadcastRepo repository.BroadcastRepository
	tracker       *dispatch.Tracker
}

// NewMessageFlow creates a new message flow instance
func NewMessageFlow(broadcastRepo repository.BroadcastRepository, tracker *dispatch.Tracker) MessageFlow {
	return &MessageFlowImpl{
		broadcastRepo: broadcastRepo,
		tracker:       tracker,
	}
}

// ListHistory returns the tenant's broadcasts newest first, each with its
// derived delivery stats
func (s *MessageFlowImpl) ListHistory(ctx context.Context, req *dto.ListBroadcastsRequest) (*dto.ListBroadcastsResponse, error) {
	if req.TenantID == 0 {
		return nil, NewBusinessError("TENANT_REQUIRED", "Tenant is required", ErrTenantRequired)
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)

	filter := models.BroadcastFilter{TenantID: &req.TenantID}
	if req.Channel != nil {
		ch := models.Channel(*req.Channel)
		filter.Channel = &ch
	}

	broadcasts, err := s.broadcastRepo.ListByTenant(ctx, req.TenantID, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("BROADCAST_LIST_FAILED", "Failed to list broadcasts", err)
	}

	items := make([]dto.BroadcastDTO, 0, len(broadcasts))
	for _, b := range broadcasts {
		stats, err := s.tracker.Stats(ctx, b.ID)
		if err != nil {
			return nil, NewBusinessError("BROADCAST_STATS_FAILED", "Failed to compute broadcast stats", err)
		}
		items = append(items, dto.BroadcastDTO{
			UUID:         b.UUID.String(),
			Channel:      string(b.Channel),
			Name:         b.Name,
			CampaignID:   b.CampaignID,
			ImmediateID:  b.ImmediateID,
			AutomationID: b.AutomationID,
			TemplateKind: string(b.TemplateKind),
			TemplateID:   b.TemplateID,
			Stats:        *stats,
			CreatedAt:    b.CreatedAt,
		})
	}

	return &dto.ListBroadcastsResponse{
		Message:    "Broadcast history retrieved successfully",
		Broadcasts: items,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// ListDeliveries returns the per-destination deliveries of one broadcast
func (s *MessageFlowImpl) ListDeliveries(ctx context.Context, req *dto.ListDeliveriesRequest) (*dto.ListDeliveriesResponse, error) {
	broadcast, err := s.getTenantBroadcast(ctx, req.TenantID, req.BroadcastUUID)
	if err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)

	var status *models.DeliveryStatus
	if req.Status != nil {
		st := models.DeliveryStatus(*req.Status)
		status = &st
	}

	deliveries, err := s.tracker.List(ctx, broadcast.ID, status, page, pageSize)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_LIST_FAILED", "Failed to list deliveries", err)
	}

	items := make([]dto.DeliveryDTO, 0, len(deliveries))
	for _, d := range deliveries {
		items = append(items, dto.DeliveryDTO{
			ID:           d.ID,
			CustomerID:   d.CustomerID,
			Destination:  d.Destination,
			Status:       string(d.Status),
			ErrorMessage: d.ErrorMessage,
			ProviderMeta: d.ProviderMeta,
			CreatedAt:    d.CreatedAt,
			UpdatedAt:    d.UpdatedAt,
		})
	}

	return &dto.ListDeliveriesResponse{
		Message:    "Deliveries retrieved successfully",
		Deliveries: items,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// GetBroadcastStats returns the derived per-status aggregate of one broadcast
func (s *MessageFlowImpl) GetBroadcastStats(ctx context.Context, req *dto.BroadcastStatsRequest) (*dto.BroadcastStatsResponse, error) {
	broadcast, err := s.getTenantBroadcast(ctx, req.TenantID, req.BroadcastUUID)
	if err != nil {
		return nil, err
	}

	stats, err := s.tracker.Stats(ctx, broadcast.ID)
	if err != nil {
		return nil, NewBusinessError("BROADCAST_STATS_FAILED", "Failed to compute broadcast stats", err)
	}

	return &dto.BroadcastStatsResponse{
		Message: "Broadcast stats retrieved successfully",
		Stats:   *stats,
	}, nil
}

func (s *MessageFlowImpl) getTenantBroadcast(ctx context.Context, tenantID uint, broadcastUUID string) (*models.Broadcast, error) {
	if tenantID == 0 {
		return nil, NewBusinessError("TENANT_REQUIRED", "Tenant is required", ErrTenantRequired)
	}

	broadcast, err := s.broadcastRepo.ByUUID(ctx, broadcastUUID)
	if err != nil {
		return nil, NewBusinessError("BROADCAST_LOOKUP_FAILED", "Failed to lookup broadcast", err)
	}
	if broadcast == nil {
		return nil, NewBusinessError("BROADCAST_NOT_FOUND", "Broadcast not found", ErrBroadcastNotFound)
	}
	if broadcast.TenantID != tenantID {
		return nil, NewBusinessError("BROADCAST_ACCESS_DENIED", "Broadcast access denied", ErrBroadcastAccessDenied)
	}

	return broadcast, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > utils.MaxPageSize {
		pageSize = utils.DefaultPageSize
	}
	return page, pageSize
}
