package scheduler

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aikyo-io/campaign-engine/config"
	"github.com/aikyo-io/campaign-engine/journey"
	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/repository"
	"github.com/aikyo-io/campaign-engine/utils"
)

// journeyTickBatch caps how many due instances one tick pulls
const journeyTickBatch = 500

// JourneyScheduler enrolls newly matching customers into active automations
// and advances due journey instances
type JourneyScheduler struct {
	automationRepo repository.AutomationRepository
	instanceRepo   repository.JourneyInstanceRepository
	engine         *journey.Engine
	logger         *log.Logger
	interval       time.Duration
	workers        int
	lockTTL        time.Duration
}

func NewJourneyScheduler(
	automationRepo repository.AutomationRepository,
	instanceRepo repository.JourneyInstanceRepository,
	engine *journey.Engine,
	logCfg *config.LoggingConfig,
	interval time.Duration,
	workers int,
	lockTTL time.Duration,
) *JourneyScheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if workers <= 0 {
		workers = 8
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}

	s := &JourneyScheduler{
		automationRepo: automationRepo,
		instanceRepo:   instanceRepo,
		engine:         engine,
		interval:       interval,
		workers:        workers,
		lockTTL:        lockTTL,
	}
	s.logger = newSchedulerLogger("journey-scheduler ", logCfg)

	return s
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *JourneyScheduler) Start(parent context.Context) func() {
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

func (s *JourneyScheduler) runOnce(ctx context.Context) {
	active, err := s.automationRepo.ListActive(ctx, 0)
	if err != nil {
		s.logger.Printf("scheduler: list active automations failed: %v", err)
		return
	}
	if len(active) == 0 {
		return
	}

	// Validated definitions, keyed by automation ID, shared by the
	// enrollment and advance phases of this tick
	validated := make(map[uint]*journeyPair, len(active))
	for _, automation := range active {
		vj, err := journey.ValidateDefinition(automation.Definition)
		if err != nil {
			// An active automation with an invalid definition is a data
			// problem; log it and leave its instances untouched
			s.logger.Printf("scheduler: automation id=%d has invalid definition: %v", automation.ID, err)
			continue
		}
		validated[automation.ID] = &journeyPair{automation: automation, vj: vj}
	}

	s.enroll(ctx, validated)
	s.advance(ctx, validated)
}

type journeyPair struct {
	automation *models.Automation
	vj         *journey.ValidatedJourney
}

func (s *JourneyScheduler) enroll(ctx context.Context, validated map[uint]*journeyPair) {
	for _, pair := range validated {
		select {
		case <-ctx.Done():
			return
		default:
		}
		enrolled, err := s.engine.EnrollCandidates(ctx, pair.automation, pair.vj)
		if err != nil {
			s.logger.Printf("scheduler: enrollment failed for automation id=%d: %v", pair.automation.ID, err)
			continue
		}
		if enrolled > 0 {
			s.logger.Printf("scheduler: enrolled %d customers into automation id=%d", enrolled, pair.automation.ID)
		}
	}
}

func (s *JourneyScheduler) advance(ctx context.Context, validated map[uint]*journeyPair) {
	now := utils.UTCNow()

	due, err := s.instanceRepo.ListDue(ctx, now, journeyTickBatch)
	if err != nil {
		s.logger.Printf("scheduler: list due instances failed: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, instance := range due {
		pair, ok := validated[instance.AutomationID]
		if !ok {
			// Automation was paused or invalidated since the instance was listed
			continue
		}
		g.Go(func() error {
			claimed, err := s.instanceRepo.ClaimInstance(gctx, instance.ID, now.Add(s.lockTTL))
			if err != nil {
				s.logger.Printf("scheduler: claim failed for instance id=%d: %v", instance.ID, err)
				return nil
			}
			if !claimed {
				return nil
			}
			if err := s.engine.Tick(gctx, pair.automation, pair.vj, instance); err != nil {
				s.logger.Printf("scheduler: advance failed for instance id=%d: %v", instance.ID, err)
			}
			return nil
		})
	}

	// Workers swallow their own errors; Wait only orders shutdown
	_ = g.Wait()
}
