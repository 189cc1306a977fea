// Package businessflow contains the core business logic and use cases for audience segment workflows
package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aikyo-io/campaign-engine/app/dto"
	"github.com/aikyo-io/campaign-engine/audience"
	"github.com/aikyo-io/campaign-engine/config"
	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/repository"
	"github.com/aikyo-io/campaign-engine/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SegmentFlow handles the audience segment business logic
type SegmentFlow interface {
	CreateSegment(ctx context.Context, req *dto.CreateSegmentRequest, metadata *ClientMetadata) (*dto.CreateSegmentResponse, error)
	UpdateSegment(ctx context.Context, req *dto.UpdateSegmentRequest, metadata *ClientMetadata) (*dto.UpdateSegmentResponse, error)
	ListSegments(ctx context.Context, req *dto.ListSegmentsRequest) (*dto.ListSegmentsResponse, error)
	EstimateAudience(ctx context.Context, req *dto.EstimateAudienceRequest, metadata *ClientMetadata) (*dto.EstimateAudienceResponse, error)
}

// SegmentFlowImpl implements the segment business flow
type SegmentFlowImpl struct {
	segmentRepo repository.SegmentRepository
	resolver    *audience.Resolver
	cacheConfig *config.CacheConfig
	rc          *redis.Client
	db          *gorm.DB
}

// NewSegmentFlow creates a new segment flow instance
func NewSegmentFlow(
	segmentRepo repository.SegmentRepository,
	resolver *audience.Resolver,
	db *gorm.DB,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) SegmentFlow {
	return &SegmentFlowImpl{
		segmentRepo: segmentRepo,
		resolver:    resolver,
		cacheConfig: cacheConfig,
		rc:          rc,
		db:          db,
	}
}

// CreateSegment validates the audience graph and persists a new segment
func (s *SegmentFlowImpl) CreateSegment(ctx context.Context, req *dto.CreateSegmentRequest, metadata *ClientMetadata) (*dto.CreateSegmentResponse, error) {
	if req.TenantID == 0 {
		return nil, NewBusinessError("TENANT_REQUIRED", "Tenant is required", ErrTenantRequired)
	}
	if req.Name == "" {
		return nil, NewBusinessError("SEGMENT_VALIDATION_FAILED", "Segment validation failed", ErrSegmentNameRequired)
	}

	if _, err := audience.Validate(req.Definition); err != nil {
		return nil, NewBusinessError("SEGMENT_GRAPH_INVALID", "Audience graph is invalid", err)
	}

	segment := &models.Segment{
		UUID:           uuid.New(),
		TenantID:       req.TenantID,
		Name:           req.Name,
		Definition:     req.Definition,
		DefinitionHash: audience.DefinitionHash(req.Definition),
		CreatedAt:      utils.UTCNow(),
	}

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.segmentRepo.Save(txCtx, segment)
	})
	if err != nil {
		return nil, NewBusinessError("SEGMENT_CREATION_FAILED", "Segment creation failed", err)
	}

	return &dto.CreateSegmentResponse{
		Message:        "Segment created successfully",
		UUID:           segment.UUID.String(),
		DefinitionHash: segment.DefinitionHash,
		CreatedAt:      segment.CreatedAt.Format(time.RFC3339),
	}, nil
}

// UpdateSegment revalidates and persists changes to an existing segment
func (s *SegmentFlowImpl) UpdateSegment(ctx context.Context, req *dto.UpdateSegmentRequest, metadata *ClientMetadata) (*dto.UpdateSegmentResponse, error) {
	segment, err := s.getTenantSegment(ctx, req.TenantID, req.UUID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		segment.Name = *req.Name
	}
	if req.Definition != nil {
		if _, err := audience.Validate(*req.Definition); err != nil {
			return nil, NewBusinessError("SEGMENT_GRAPH_INVALID", "Audience graph is invalid", err)
		}
		segment.Definition = *req.Definition
		segment.DefinitionHash = audience.DefinitionHash(*req.Definition)
	}
	segment.UpdatedAt = utils.ToPtr(utils.UTCNow())

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.segmentRepo.Update(txCtx, *segment)
	})
	if err != nil {
		return nil, NewBusinessError("SEGMENT_UPDATE_FAILED", "Segment update failed", err)
	}

	// Drop any cached estimate for the previous definition
	if s.rc != nil && req.Definition != nil {
		_ = s.rc.Del(ctx, estimateCacheKey(s.cacheConfig, req.TenantID, segment.DefinitionHash)).Err()
	}

	return &dto.UpdateSegmentResponse{
		Message:        "Segment updated successfully",
		DefinitionHash: segment.DefinitionHash,
	}, nil
}

// ListSegments returns all segments of the tenant
func (s *SegmentFlowImpl) ListSegments(ctx context.Context, req *dto.ListSegmentsRequest) (*dto.ListSegmentsResponse, error) {
	if req.TenantID == 0 {
		return nil, NewBusinessError("TENANT_REQUIRED", "Tenant is required", ErrTenantRequired)
	}

	segments, err := s.segmentRepo.ListByTenant(ctx, req.TenantID, 0, 0)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LIST_FAILED", "Failed to list segments", err)
	}

	items := make([]dto.SegmentDTO, 0, len(segments))
	for _, seg := range segments {
		items = append(items, dto.SegmentDTO{
			UUID:           seg.UUID.String(),
			Name:           seg.Name,
			Definition:     seg.Definition,
			DefinitionHash: seg.DefinitionHash,
			CreatedAt:      seg.CreatedAt,
			UpdatedAt:      seg.UpdatedAt,
		})
	}

	return &dto.ListSegmentsResponse{
		Message:  "Segments retrieved successfully",
		Segments: items,
	}, nil
}

// EstimateAudience resolves the definition against live data and returns the
// matched customer count. Estimates are cached per (tenant, definition hash)
// with a short TTL since the underlying data changes between ticks.
func (s *SegmentFlowImpl) EstimateAudience(ctx context.Context, req *dto.EstimateAudienceRequest, metadata *ClientMetadata) (*dto.EstimateAudienceResponse, error) {
	if req.TenantID == 0 {
		return nil, NewBusinessError("TENANT_REQUIRED", "Tenant is required", ErrTenantRequired)
	}

	var def models.AudienceDefinition
	switch {
	case req.Definition != nil:
		def = *req.Definition
	case req.SegmentUUID != nil:
		segment, err := s.getTenantSegment(ctx, req.TenantID, *req.SegmentUUID)
		if err != nil {
			return nil, err
		}
		def = segment.Definition
	default:
		return nil, NewBusinessError("ESTIMATE_VALIDATION_FAILED", "Either a segment UUID or an inline definition is required", ErrSegmentGraphRequired)
	}

	graph, err := audience.Validate(def)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_GRAPH_INVALID", "Audience graph is invalid", err)
	}

	hash := audience.DefinitionHash(def)
	cacheKey := estimateCacheKey(s.cacheConfig, req.TenantID, hash)

	if s.rc != nil {
		if cached, err := s.rc.Get(ctx, cacheKey).Result(); err == nil {
			if count, err := strconv.Atoi(cached); err == nil {
				return &dto.EstimateAudienceResponse{
					Message: "Audience estimated successfully",
					Count:   count,
				}, nil
			}
		}
	}

	count, err := s.resolver.EstimateGraph(ctx, req.TenantID, graph)
	if err != nil {
		return nil, NewBusinessError("ESTIMATE_FAILED", "Audience estimation failed", err)
	}

	if s.rc != nil {
		ttl := estimateCacheTTL
		if s.cacheConfig != nil && s.cacheConfig.DefaultTTL > 0 {
			ttl = s.cacheConfig.DefaultTTL
		}
		_ = s.rc.Set(ctx, cacheKey, strconv.FormatInt(count, 10), ttl).Err()
	}

	return &dto.EstimateAudienceResponse{
		Message: "Audience estimated successfully",
		Count:   int(count),
	}, nil
}

const estimateCacheTTL = 60 * time.Second

func estimateCacheKey(cfg *config.CacheConfig, tenantID uint, hash string) string {
	prefix := ""
	if cfg != nil {
		prefix = cfg.RedisPrefix
	}
	return fmt.Sprintf("%saudience:estimate:%d:%s", prefix, tenantID, hash)
}

func (s *SegmentFlowImpl) getTenantSegment(ctx context.Context, tenantID uint, segmentUUID string) (*models.Segment, error) {
	if tenantID == 0 {
		return nil, NewBusinessError("TENANT_REQUIRED", "Tenant is required", ErrTenantRequired)
	}

	segment, err := s.segmentRepo.ByUUID(ctx, segmentUUID)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LOOKUP_FAILED", "Failed to lookup segment", err)
	}
	if segment == nil {
		return nil, NewBusinessError("SEGMENT_NOT_FOUND", "Segment not found", ErrSegmentNotFound)
	}
	if segment.TenantID != tenantID {
		return nil, NewBusinessError("SEGMENT_ACCESS_DENIED", "Segment access denied", ErrSegmentAccessDenied)
	}

	return segment, nil
}
