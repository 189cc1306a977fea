// Package scheduler runs the background loops that fire scheduled campaigns
// and advance journey automations.
package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aikyo-io/campaign-engine/audience"
	"github.com/aikyo-io/campaign-engine/cadence"
	"github.com/aikyo-io/campaign-engine/config"
	"github.com/aikyo-io/campaign-engine/dispatch"
	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/repository"
	"github.com/aikyo-io/campaign-engine/utils"
)

const (
	// Deliveries still QUEUED this long after creation belong to a fan-out
	// that died mid-flight; the reaper fails them so stats converge.
	staleDeliveryAge = time.Hour
	reapBatch        = 500
)

// CampaignScheduler periodically scans active campaigns and dispatches the
// ones whose schedule has come due
type CampaignScheduler struct {
	campaignRepo repository.CampaignRepository
	deliveryRepo repository.DeliveryRepository
	resolver     *audience.Resolver
	dispatcher   *dispatch.Dispatcher
	logger       *log.Logger
	interval     time.Duration
	lockTTL      time.Duration
}

func NewCampaignScheduler(
	campaignRepo repository.CampaignRepository,
	deliveryRepo repository.DeliveryRepository,
	resolver *audience.Resolver,
	dispatcher *dispatch.Dispatcher,
	logCfg *config.LoggingConfig,
	interval time.Duration,
	lockTTL time.Duration,
) *CampaignScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}

	s := &CampaignScheduler{
		campaignRepo: campaignRepo,
		deliveryRepo: deliveryRepo,
		resolver:     resolver,
		dispatcher:   dispatcher,
		interval:     interval,
		lockTTL:      lockTTL,
	}
	s.logger = newSchedulerLogger("campaign-scheduler ", logCfg)

	return s
}

// newSchedulerLogger builds a logger writing to stdout and a rotating file
// next to the application log
func newSchedulerLogger(prefix string, cfg *config.LoggingConfig) *log.Logger {
	var w io.Writer = os.Stdout
	if cfg != nil && cfg.FilePath != "" {
		rotating := &lumberjack.Logger{
			Filename:   filepath.Join(filepath.Dir(cfg.FilePath), "scheduler.log"),
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		w = io.MultiWriter(os.Stdout, rotating)
	}
	// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *CampaignScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *CampaignScheduler) runOnce(ctx context.Context) {
	now := utils.UTCNow()

	due, err := s.campaignRepo.ListDueActive(ctx, now, 0)
	if err != nil {
		s.logger.Printf("scheduler: list active campaigns failed: %v", err)
		return
	}

	for _, campaign := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.fireIfDue(ctx, campaign, now)
	}

	s.reapStaleDeliveries(ctx, now)
}

// reapStaleDeliveries fails QUEUED deliveries whose fan-out never finished,
// so broadcast stats eventually reach a terminal state
func (s *CampaignScheduler) reapStaleDeliveries(ctx context.Context, now time.Time) {
	stale, err := s.deliveryRepo.ListQueuedOlderThan(ctx, now.Add(-staleDeliveryAge), reapBatch)
	if err != nil {
		s.logger.Printf("scheduler: list stale deliveries failed: %v", err)
		return
	}

	for _, d := range stale {
		msg := "delivery abandoned in queue"
		if err := s.deliveryRepo.RecordOutcome(ctx, d.ID, models.DeliveryStatusFailed, &msg, nil); err != nil {
			s.logger.Printf("scheduler: reap delivery id=%d failed: %v", d.ID, err)
		}
	}
	if len(stale) > 0 {
		s.logger.Printf("scheduler: reaped %d stale deliveries", len(stale))
	}
}

// fireIfDue computes the campaign's next fire instant from its last fire and
// dispatches when that instant has passed. The claim is a guarded update on
// last_fired_at, so concurrent scheduler replicas fire each instant once.
func (s *CampaignScheduler) fireIfDue(ctx context.Context, campaign *models.Campaign, now time.Time) {
	anchor := campaign.CreatedAt
	prior := campaign.LastFiredAt
	if prior != nil {
		anchor = *prior
	}

	fireAt := cadence.NextFireAfter(campaign.Schedule, anchor)
	if fireAt == nil || fireAt.After(now) {
		return
	}

	claimed, err := s.campaignRepo.Claim(ctx, campaign.ID, *fireAt, now.Add(s.lockTTL))
	if err != nil {
		s.logger.Printf("scheduler: claim failed for campaign id=%d: %v", campaign.ID, err)
		return
	}
	if !claimed {
		// Another replica took this fire instant
		return
	}
	defer func() {
		if err := s.campaignRepo.ReleaseLock(ctx, campaign.ID); err != nil {
			s.logger.Printf("scheduler: release lock failed for campaign id=%d: %v", campaign.ID, err)
		}
	}()

	recipients, err := s.resolver.ResolveSpec(ctx, campaign.TenantID, campaign.Audience, campaign.Channel)
	if err != nil {
		s.logger.Printf("scheduler: audience resolution failed for campaign id=%d: %v", campaign.ID, err)
		s.rollbackFire(ctx, campaign.ID, *fireAt, prior)
		return
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
			// A scheduled fire with nobody to reach is a no-op, not an error.
			// last_fired_at already advanced, so this instant is consumed.
			s.logger.Printf("scheduler: campaign id=%d fired at %s with empty audience, skipped", campaign.ID, fireAt.Format(time.RFC3339))
			return
		}
		s.logger.Printf("scheduler: dispatch failed for campaign id=%d: %v", campaign.ID, err)
		s.rollbackFire(ctx, campaign.ID, *fireAt, prior)
		return
	}

	s.logger.Printf("scheduler: campaign id=%d fired at %s, broadcast %s with %d recipients (%d unreachable)",
		campaign.ID, fireAt.Format(time.RFC3339), broadcast.UUID, len(recipients.Recipients), recipients.Unreachable)
}

// rollbackFire returns a failed fire instant to the schedule so the next tick
// reattempts it instead of skipping to the following cadence instant
func (s *CampaignScheduler) rollbackFire(ctx context.Context, campaignID uint, firedAt time.Time, prior *time.Time) {
	if err := s.campaignRepo.RollbackFire(ctx, campaignID, firedAt, prior); err != nil {
		s.logger.Printf("scheduler: rollback fire failed for campaign id=%d: %v", campaignID, err)
	}
}
