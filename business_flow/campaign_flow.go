// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aikyo-io/campaign-engine/app/dto"
	"github.com/aikyo-io/campaign-engine/audience"
	"github.com/aikyo-io/campaign-engine/cadence"
	"github.com/aikyo-io/campaign-engine/dispatch"
	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/repository"
	"github.com/aikyo-io/campaign-engine/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignFlow handles the campaign business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.UpdateCampaignResponse, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	RunCampaign(ctx context.Context, req *dto.RunCampaignRequest, metadata *ClientMetadata) (*dto.RunCampaignResponse, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	resolver     *audience.Resolver
	dispatcher   *dispatch.Dispatcher
	db           *gorm.DB
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	resolver *audience.Resolver,
	dispatcher *dispatch.Dispatcher,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		resolver:     resolver,
		dispatcher:   dispatcher,
		db:           db,
	}
}

// CreateCampaign validates the schedule and audience and persists a new campaign
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	if req.TenantID == 0 {
		return nil, NewBusinessError("TENANT_REQUIRED", "Tenant is required", ErrTenantRequired)
	}
	if req.Name == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignNameRequired)
	}

	channel := models.Channel(req.Channel)
	templateKind := models.TemplateKind(req.TemplateKind)

	if err := cadence.ValidateSchedule(req.Schedule); err != nil {
		return nil, NewBusinessError("SCHEDULE_INVALID", "Campaign schedule is invalid", err)
	}
	if err := validateAudienceSpec(req.Audience); err != nil {
		return nil, NewBusinessError("AUDIENCE_INVALID", "Campaign audience is invalid", err)
	}
	if err := validateTemplate(templateKind, req.TemplateID, req.Payload); err != nil {
		return nil, NewBusinessError("TEMPLATE_INVALID", "Campaign template is invalid", err)
	}

	status := models.CampaignStatusDraft
	if req.Status != nil {
		status = models.CampaignStatus(*req.Status)
	}

	campaign := &models.Campaign{
		UUID:         uuid.New(),
		TenantID:     req.TenantID,
		Name:         req.Name,
		Channel:      channel,
		Status:       status,
		Schedule:     req.Schedule,
		Audience:     req.Audience,
		TemplateKind: templateKind,
		TemplateID:   req.TemplateID,
		Payload:      models.JSONMap(req.Payload),
		CreatedAt:    utils.UTCNow(),
	}

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.campaignRepo.Save(txCtx, campaign)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	return &dto.CreateCampaignResponse{
		Message:   "Campaign created successfully",
		UUID:      campaign.UUID.String(),
		Status:    string(campaign.Status),
		CreatedAt: campaign.CreatedAt.Format(time.RFC3339),
	}, nil
}

// UpdateCampaign revalidates and persists changes to an existing campaign
func (s *CampaignFlowImpl) UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.UpdateCampaignResponse, error) {
	campaign, err := s.getTenantCampaign(ctx, req.TenantID, req.UUID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.Channel != nil {
		campaign.Channel = models.Channel(*req.Channel)
	}
	if req.Schedule != nil {
		if err := cadence.ValidateSchedule(*req.Schedule); err != nil {
			return nil, NewBusinessError("SCHEDULE_INVALID", "Campaign schedule is invalid", err)
		}
		campaign.Schedule = *req.Schedule
	}
	if req.Audience != nil {
		if err := validateAudienceSpec(*req.Audience); err != nil {
			return nil, NewBusinessError("AUDIENCE_INVALID", "Campaign audience is invalid", err)
		}
		campaign.Audience = *req.Audience
	}
	if req.TemplateKind != nil {
		campaign.TemplateKind = models.TemplateKind(*req.TemplateKind)
	}
	if req.TemplateID != nil {
		campaign.TemplateID = req.TemplateID
	}
	if req.Payload != nil {
		campaign.Payload = models.JSONMap(req.Payload)
	}
	if req.Status != nil {
		campaign.Status = models.CampaignStatus(*req.Status)
	}

	if err := validateTemplate(campaign.TemplateKind, campaign.TemplateID, campaign.Payload); err != nil {
		return nil, NewBusinessError("TEMPLATE_INVALID", "Campaign template is invalid", err)
	}

	campaign.UpdatedAt = utils.ToPtr(utils.UTCNow())

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.campaignRepo.Update(txCtx, *campaign)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Campaign update failed", err)
	}

	return &dto.UpdateCampaignResponse{
		Message: "Campaign updated successfully",
	}, nil
}

// ListCampaigns returns the tenant's campaigns with their next computed fire instant
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error) {
	if req.TenantID == 0 {
		return nil, NewBusinessError("TENANT_REQUIRED", "Tenant is required", ErrTenantRequired)
	}

	filter := models.CampaignFilter{TenantID: &req.TenantID}
	if req.Status != nil {
		filter.Status = utils.ToPtr(models.CampaignStatus(*req.Status))
	}
	if req.Channel != nil {
		filter.Channel = utils.ToPtr(models.Channel(*req.Channel))
	}

	campaigns, err := s.campaignRepo.ByFilter(ctx, filter, "id DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	now := utils.UTCNow()
	items := make([]dto.CampaignDTO, 0, len(campaigns))
	for _, c := range campaigns {
		item := dto.CampaignDTO{
			UUID:         c.UUID.String(),
			Name:         c.Name,
			Channel:      string(c.Channel),
			Status:       string(c.Status),
			Schedule:     c.Schedule,
			Audience:     c.Audience,
			TemplateKind: string(c.TemplateKind),
			TemplateID:   c.TemplateID,
			Payload:      c.Payload,
			LastFiredAt:  c.LastFiredAt,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
		if c.Status == models.CampaignStatusActive {
			item.NextFireAt = cadence.NextFireAfter(c.Schedule, now)
		}
		items = append(items, item)
	}

	return &dto.ListCampaignsResponse{
		Message:   "Campaigns retrieved successfully",
		Campaigns: items,
	}, nil
}

// RunCampaign fires a campaign immediately, bypassing its schedule. An empty
// resolved audience rejects the run synchronously without creating a broadcast.
func (s *CampaignFlowImpl) RunCampaign(ctx context.Context, req *dto.RunCampaignRequest, metadata *ClientMetadata) (*dto.RunCampaignResponse, error) {
	campaign, err := s.getTenantCampaign(ctx, req.TenantID, req.UUID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == models.CampaignStatusArchived {
		return nil, NewBusinessError("CAMPAIGN_NOT_RUNNABLE", "Archived campaigns cannot be run", ErrCampaignNotRunnable)
	}

	recipients, err := s.resolver.ResolveSpec(ctx, campaign.TenantID, campaign.Audience, campaign.Channel)
	if err != nil {
		return nil, NewBusinessError("AUDIENCE_RESOLUTION_FAILED", "Audience resolution failed", err)
	}

	broadcast, err := s.dispatcher.Dispatch(ctx, dispatch.Request{
		TenantID:     campaign.TenantID,
		Channel:      campaign.Channel,
		Recipients:   recipients,
		TemplateKind: campaign.TemplateKind,
		TemplateID:   campaign.TemplateID,
		Payload:      campaign.Payload,
		Source: dispatch.SourceRef{
			CampaignID: &campaign.ID,
			Name:       &campaign.Name,
		},
	})
	if err != nil {
		if errors.Is(err, audience.ErrEmptyAudience) {
			return nil, NewBusinessError("EMPTY_AUDIENCE", "Campaign audience resolved to zero destinations", err)
		}
		return nil, NewBusinessError("DISPATCH_FAILED", "Campaign dispatch failed", err)
	}

	return &dto.RunCampaignResponse{
		Message:     "Campaign fired successfully",
		BroadcastID: broadcast.UUID.String(),
		Recipients:  len(recipients.Recipients),
		Unreachable: recipients.Unreachable,
	}, nil
}

func (s *CampaignFlowImpl) getTenantCampaign(ctx context.Context, tenantID uint, campaignUUID string) (*models.Campaign, error) {
	if tenantID == 0 {
		return nil, NewBusinessError("TENANT_REQUIRED", "Tenant is required", ErrTenantRequired)
	}
	if campaignUUID == "" {
		return nil, NewBusinessError("CAMPAIGN_UUID_REQUIRED", "Campaign UUID is required", ErrCampaignUUIDRequired)
	}

	campaign, err := s.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if campaign.TenantID != tenantID {
		return nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Campaign access denied", ErrCampaignAccessDenied)
	}

	return campaign, nil
}

func validateAudienceSpec(spec models.AudienceSpec) error {
	if !spec.Mode.Valid() {
		return errors.New("audience mode must be FILTER or MANUAL")
	}
	switch spec.Mode {
	case models.AudienceModeManual:
		if len(spec.Destinations) == 0 {
			return errors.New("MANUAL audience requires at least one destination")
		}
	case models.AudienceModeFilter:
		if spec.CustomerType != nil && !spec.CustomerType.Valid() {
			return errors.New("unknown customer type " + strconv.Quote(string(*spec.CustomerType)))
		}
		for _, id := range spec.TagIDs {
			if _, err := strconv.ParseUint(id, 10, 64); err != nil {
				return errors.New("tag id " + strconv.Quote(id) + " is not numeric")
			}
		}
	}
	return nil
}

func validateTemplate(kind models.TemplateKind, templateID *string, payload map[string]any) error {
	if !kind.Valid() {
		return errors.New("unknown template kind")
	}
	if kind == models.TemplateKindRaw {
		if len(payload) == 0 {
			return errors.New("RAW template kind requires an inline payload")
		}
		return nil
	}
	if templateID == nil || *templateID == "" {
		return ErrCampaignTemplateRequired
	}
	return nil
}
