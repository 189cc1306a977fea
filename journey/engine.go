package journey

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aikyo-io/campaign-engine/audience"
	"github.com/aikyo-io/campaign-engine/dispatch"
	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/utils"
)

// maxStepsPerTick bounds one tick's walk through immediate nodes so a
// definition with a tight loop cannot spin a worker forever.
const maxStepsPerTick = 64

// ErrUnknownNode is returned when an instance points at a node that no longer
// exists in the definition
var ErrUnknownNode = errors.New("instance references unknown node")

// InstanceStore is the slice of the journey instance repository the engine needs
type InstanceStore interface {
	Save(ctx context.Context, instance *models.JourneyInstance) error
	Advance(ctx context.Context, instanceID uint, nodeID string, status models.JourneyInstanceStatus, wakeAt *time.Time) error
	EnrolledCustomerIDs(ctx context.Context, automationID uint) ([]uint, error)
}

// CustomerStore loads the customer an instance belongs to
type CustomerStore interface {
	ByID(ctx context.Context, id uint) (*models.Customer, error)
}

// TagStore resolves tag names referenced by CONDITION nodes
type TagStore interface {
	ByName(ctx context.Context, tenantID uint, name string) (*models.Tag, error)
}

// CustomerTagStore answers tag-possession checks
type CustomerTagStore interface {
	CustomerHasTag(ctx context.Context, tenantID uint, customerID uint, tagID uint) (bool, error)
}

// EventStore answers event-occurrence checks
type EventStore interface {
	ListByCustomerAndType(ctx context.Context, tenantID uint, customerID uint, eventType string) ([]*models.Event, error)
}

// Broadcaster is the dispatcher surface OUTPUT nodes invoke
type Broadcaster interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*models.Broadcast, error)
}

// Engine advances journey instances through validated automation definitions
type Engine struct {
	instances    InstanceStore
	customers    CustomerStore
	tags         TagStore
	customerTags CustomerTagStore
	events       EventStore
	resolver     *audience.Resolver
	dispatcher   Broadcaster
	logger       *log.Logger
}

// NewEngine creates a journey engine
func NewEngine(instances InstanceStore, customers CustomerStore, tags TagStore, customerTags CustomerTagStore, events EventStore, resolver *audience.Resolver, dispatcher Broadcaster, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		instances:    instances,
		customers:    customers,
		tags:         tags,
		customerTags: customerTags,
		events:       events,
		resolver:     resolver,
		dispatcher:   dispatcher,
		logger:       logger,
	}
}

// EnrollCandidates evaluates every AUDIENCE node of an automation and creates
// an instance for each newly matching customer. MANUAL-mode audience nodes
// carry raw destinations with no customer identity, so they never enroll.
func (e *Engine) EnrollCandidates(ctx context.Context, automation *models.Automation, vj *ValidatedJourney) (int, error) {
	enrolledIDs, err := e.instances.EnrolledCustomerIDs(ctx, automation.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list enrolled customers: %w", err)
	}
	enrolled := make(map[uint]bool, len(enrolledIDs))
	for _, id := range enrolledIDs {
		enrolled[id] = true
	}

	var created int
	for _, node := range vj.AudienceNodes() {
		if node.Audience.Mode != models.AudienceModeFilter {
			continue
		}
		matched, err := e.resolver.MatchSpec(ctx, automation.TenantID, *node.Audience)
		if err != nil {
			return created, fmt.Errorf("failed to match audience node %q: %w", node.ID, err)
		}
		for _, customer := range matched {
			if enrolled[customer.ID] {
				continue
			}
			instance := &models.JourneyInstance{
				TenantID:      automation.TenantID,
				AutomationID:  automation.ID,
				CustomerID:    customer.ID,
				CurrentNodeID: node.ID,
				Status:        models.JourneyInstanceActive,
				EnteredAt:     utils.UTCNow(),
			}
			if err := e.instances.Save(ctx, instance); err != nil {
				// Unique (automation, customer) may race with a
				// concurrent enrollment pass; skip and move on.
				e.logger.Printf("journey: enroll customer %d in automation %d failed: %v", customer.ID, automation.ID, err)
				continue
			}
			enrolled[customer.ID] = true
			created++
			if err := e.Tick(ctx, automation, vj, instance); err != nil {
				e.logger.Printf("journey: initial tick for instance %d failed: %v", instance.ID, err)
			}
		}
	}
	return created, nil
}

// Tick advances one instance. Immediate nodes (START, AUDIENCE, CONDITION,
// fired OUTPUT) are walked in a loop; the tick stops when the instance parks
// on a WAIT, completes, or hits the per-tick step cap.
func (e *Engine) Tick(ctx context.Context, automation *models.Automation, vj *ValidatedJourney, instance *models.JourneyInstance) error {
	now := utils.UTCNow()

	for steps := 0; steps < maxStepsPerTick; steps++ {
		node, ok := vj.NodesByID[instance.CurrentNodeID]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownNode, instance.CurrentNodeID)
		}

		switch node.Kind {
		case models.JourneyNodeStart, models.JourneyNodeAudience:
			next, ok := vj.NextFrom(node.ID)
			if !ok {
				return e.complete(ctx, instance)
			}
			if err := e.moveTo(ctx, vj, instance, next); err != nil {
				return err
			}
			if instance.Status != models.JourneyInstanceActive || instance.WakeAt != nil {
				return nil
			}

		case models.JourneyNodeCondition:
			match, err := e.evaluateConditions(ctx, automation.TenantID, instance.CustomerID, node.Conditions)
			if err != nil {
				return fmt.Errorf("failed to evaluate conditions of node %q: %w", node.ID, err)
			}
			yes, no := vj.Branches(node.ID)
			next := no
			if match {
				next = yes
			}
			if err := e.moveTo(ctx, vj, instance, next); err != nil {
				return err
			}
			if instance.Status != models.JourneyInstanceActive || instance.WakeAt != nil {
				return nil
			}

		case models.JourneyNodeWait:
			// moveTo parks on entry; a due tick lands here with the
			// wake time already elapsed.
			if instance.WakeAt == nil {
				wake := now.Add(node.Wait.Unit.Duration(node.Wait.Amount))
				if err := e.instances.Advance(ctx, instance.ID, node.ID, models.JourneyInstanceActive, &wake); err != nil {
					return fmt.Errorf("failed to park instance %d: %w", instance.ID, err)
				}
				instance.WakeAt = &wake
				return nil
			}
			if now.Before(*instance.WakeAt) {
				return nil
			}
			next, ok := vj.NextFrom(node.ID)
			if !ok {
				return e.complete(ctx, instance)
			}
			instance.WakeAt = nil
			if err := e.moveTo(ctx, vj, instance, next); err != nil {
				return err
			}
			if instance.Status != models.JourneyInstanceActive || instance.WakeAt != nil {
				return nil
			}

		case models.JourneyNodeOutput:
			// Dispatch failure is recorded but never rolls the
			// instance back; the journey position is authoritative.
			if err := e.fireOutput(ctx, automation, node, instance); err != nil {
				e.logger.Printf("journey: output node %q for instance %d failed: %v", node.ID, instance.ID, err)
			}
			next, ok := vj.NextFrom(node.ID)
			if !ok {
				return e.complete(ctx, instance)
			}
			if err := e.moveTo(ctx, vj, instance, next); err != nil {
				return err
			}
			if instance.Status != models.JourneyInstanceActive || instance.WakeAt != nil {
				return nil
			}
		}
	}
	return fmt.Errorf("instance %d exceeded %d steps in one tick", instance.ID, maxStepsPerTick)
}

// moveTo advances the instance to a node, parking it when the target is a WAIT
func (e *Engine) moveTo(ctx context.Context, vj *ValidatedJourney, instance *models.JourneyInstance, nodeID string) error {
	target, ok := vj.NodesByID[nodeID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, nodeID)
	}

	var wakeAt *time.Time
	if target.Kind == models.JourneyNodeWait {
		wake := utils.UTCNow().Add(target.Wait.Unit.Duration(target.Wait.Amount))
		wakeAt = &wake
	}

	if err := e.instances.Advance(ctx, instance.ID, nodeID, models.JourneyInstanceActive, wakeAt); err != nil {
		return fmt.Errorf("failed to advance instance %d: %w", instance.ID, err)
	}
	instance.CurrentNodeID = nodeID
	instance.WakeAt = wakeAt
	return nil
}

func (e *Engine) complete(ctx context.Context, instance *models.JourneyInstance) error {
	if err := e.instances.Advance(ctx, instance.ID, instance.CurrentNodeID, models.JourneyInstanceCompleted, nil); err != nil {
		return fmt.Errorf("failed to complete instance %d: %w", instance.ID, err)
	}
	instance.Status = models.JourneyInstanceCompleted
	instance.WakeAt = nil
	return nil
}

// fireOutput dispatches a single-recipient broadcast for the instance's customer
func (e *Engine) fireOutput(ctx context.Context, automation *models.Automation, node models.JourneyNode, instance *models.JourneyInstance) error {
	customer, err := e.customers.ByID(ctx, instance.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load customer %d: %w", instance.CustomerID, err)
	}
	if customer == nil {
		return fmt.Errorf("customer %d not found", instance.CustomerID)
	}

	set, err := audience.ResolveCustomer(customer, node.Output.Channel)
	if err != nil {
		return err
	}
	if len(set.Recipients) == 0 {
		return fmt.Errorf("customer %d has no %s destination", customer.ID, node.Output.Channel)
	}

	templateKind := models.TemplateKind(node.Output.Channel)
	_, err = e.dispatcher.Dispatch(ctx, dispatch.Request{
		TenantID:     automation.TenantID,
		Channel:      node.Output.Channel,
		Recipients:   set,
		TemplateKind: templateKind,
		TemplateID:   utils.ToPtr(node.Output.TemplateID),
		Source: dispatch.SourceRef{
			AutomationID:  utils.ToPtr(automation.ID),
			JourneyNodeID: utils.ToPtr(node.ID),
			Name:          utils.ToPtr(automation.Name),
		},
	})
	return err
}

// evaluateConditions ANDs every condition of a CONDITION node
func (e *Engine) evaluateConditions(ctx context.Context, tenantID uint, customerID uint, conditions []models.JourneyCondition) (bool, error) {
	var customer *models.Customer
	for _, c := range conditions {
		switch c.Field {
		case "type":
			if customer == nil {
				loaded, err := e.customers.ByID(ctx, customerID)
				if err != nil {
					return false, err
				}
				if loaded == nil {
					return false, fmt.Errorf("customer %d not found", customerID)
				}
				customer = loaded
			}
			equal := string(customer.Type) == c.Value
			if c.Op == models.JourneyCondOpEq && !equal {
				return false, nil
			}
			if c.Op == models.JourneyCondOpNeq && equal {
				return false, nil
			}

		case "tag":
			tag, err := e.tags.ByName(ctx, tenantID, c.Value)
			if err != nil {
				return false, err
			}
			has := false
			if tag != nil {
				has, err = e.customerTags.CustomerHasTag(ctx, tenantID, customerID, tag.ID)
				if err != nil {
					return false, err
				}
			}
			if c.Op == models.JourneyCondOpHas && !has {
				return false, nil
			}
			if c.Op == models.JourneyCondOpHasNot && has {
				return false, nil
			}

		case "event":
			events, err := e.events.ListByCustomerAndType(ctx, tenantID, customerID, c.Value)
			if err != nil {
				return false, err
			}
			has := len(events) > 0
			if c.Op == models.JourneyCondOpHas && !has {
				return false, nil
			}
			if c.Op == models.JourneyCondOpHasNot && has {
				return false, nil
			}

		default:
			return false, fmt.Errorf("unknown condition field %q", c.Field)
		}
	}
	return true, nil
}
