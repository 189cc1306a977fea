package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/aikyo-io/campaign-engine/audience"
	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/repository"
	"github.com/aikyo-io/campaign-engine/utils"
	"github.com/google/uuid"
)

// ErrNoSender is returned when no sender is registered for a channel
var ErrNoSender = errors.New("no sender registered for channel")

// DispatchError wraps a broadcast creation failure. The fire attempt is
// expected to be retried by the scheduler's next tick, not here.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed: %v", e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// BroadcastStore is the slice of the broadcast repository the dispatcher needs
type BroadcastStore interface {
	Save(ctx context.Context, broadcast *models.Broadcast) error
}

// DeliveryStore persists delivery rows and their terminal outcomes
type DeliveryStore interface {
	SaveBatch(ctx context.Context, deliveries []*models.Delivery) error
	RecordOutcome(ctx context.Context, deliveryID uint, status models.DeliveryStatus, errorMessage *string, providerMeta models.JSONMap) error
}

// SourceRef identifies what triggered a fire, for audit and reporting only.
// Exactly one of CampaignID, ImmediateID, AutomationID should be set.
type SourceRef struct {
	CampaignID    *uint
	ImmediateID   *string
	AutomationID  *uint
	JourneyNodeID *string
	Name          *string
}

// Request is one dispatch invocation
type Request struct {
	TenantID     uint
	Channel      models.Channel
	Recipients   *audience.RecipientSet
	TemplateKind models.TemplateKind
	TemplateID   *string
	Payload      models.JSONMap
	Source       SourceRef
}

// Dispatcher creates broadcast and delivery rows transactionally, then fans
// deliveries out to the channel's sender through its worker pool
type Dispatcher struct {
	tx         repository.TxManager
	broadcasts BroadcastStore
	deliveries DeliveryStore
	templates  TemplateStore
	senders    map[models.Channel]Sender
	pools      map[models.Channel]*Pool
	logger     *log.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Pools without an entry for a sender's
// channel fall back to a default-sized pool.
func NewDispatcher(tx repository.TxManager, broadcasts BroadcastStore, deliveries DeliveryStore, templates TemplateStore, senders []Sender, pools map[models.Channel]*Pool, logger *log.Logger) *Dispatcher {
	byChannel := make(map[models.Channel]Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	if pools == nil {
		pools = map[models.Channel]*Pool{}
	}
	for ch := range byChannel {
		if _, ok := pools[ch]; !ok {
			pools[ch] = NewPool(PoolConfig{})
		}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		logger:     logger,
		tx:         tx,
		broadcasts: broadcasts,
		deliveries: deliveries,
		templates:  templates,
		senders:    byChannel,
		pools:      pools,
	}
}

// Dispatch creates one broadcast with a QUEUED delivery per destination and
// starts the asynchronous fan-out. It returns after the rows are committed;
// outcomes land through the delivery store as workers finish.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*models.Broadcast, error) {
	if req.Recipients == nil || len(req.Recipients.Recipients) == 0 {
		return nil, audience.ErrEmptyAudience
	}
	sender, ok := d.senders[req.Channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSender, req.Channel)
	}

	payload, err := d.materializePayload(ctx, req)
	if err != nil {
		return nil, &DispatchError{Err: err}
	}

	broadcast := &models.Broadcast{
		UUID:          uuid.New(),
		TenantID:      req.TenantID,
		Channel:       req.Channel,
		CampaignID:    req.Source.CampaignID,
		ImmediateID:   req.Source.ImmediateID,
		AutomationID:  req.Source.AutomationID,
		JourneyNodeID: req.Source.JourneyNodeID,
		Name:          req.Source.Name,
		TemplateKind:  req.TemplateKind,
		TemplateID:    req.TemplateID,
		CreatedAt:     utils.UTCNow(),
	}
	if req.Recipients.Unreachable > 0 {
		broadcast.Metadata = models.JSONMap{"unreachable": req.Recipients.Unreachable}
	}

	var deliveries []*models.Delivery
	err = d.tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := d.broadcasts.Save(txCtx, broadcast); err != nil {
			return err
		}
		deliveries = make([]*models.Delivery, 0, len(req.Recipients.Recipients))
		for _, rcpt := range req.Recipients.Recipients {
			delivery := &models.Delivery{
				BroadcastID: broadcast.ID,
				Destination: rcpt.Destination,
				Status:      models.DeliveryStatusQueued,
				CreatedAt:   utils.UTCNow(),
			}
			if rcpt.CustomerID != 0 {
				delivery.CustomerID = utils.ToPtr(rcpt.CustomerID)
			}
			deliveries = append(deliveries, delivery)
		}
		return d.deliveries.SaveBatch(txCtx, deliveries)
	})
	if err != nil {
		return nil, &DispatchError{Err: err}
	}

	broadcastsTotal.WithLabelValues(string(req.Channel)).Inc()

	pool := d.pools[req.Channel]
	for _, delivery := range deliveries {
		d.wg.Add(1)
		go func(delivery *models.Delivery) {
			defer d.wg.Done()
			d.sendOne(context.WithoutCancel(ctx), sender, pool, delivery, payload)
		}(delivery)
	}

	return broadcast, nil
}

// Quiesce blocks until every in-flight send has recorded its outcome
func (d *Dispatcher) Quiesce() {
	d.wg.Wait()
}

func (d *Dispatcher) sendOne(ctx context.Context, sender Sender, pool *Pool, delivery *models.Delivery, payload Payload) {
	sendsInFlight.Inc()
	defer sendsInFlight.Dec()

	result, err := pool.Invoke(ctx, sender, delivery.Destination, payload)
	if err != nil {
		msg := err.Error()
		var meta models.JSONMap
		var senderErr *SenderError
		if errors.As(err, &senderErr) {
			meta = senderErr.Meta
		}
		if recErr := d.deliveries.RecordOutcome(ctx, delivery.ID, models.DeliveryStatusFailed, &msg, meta); recErr != nil {
			d.logger.Printf("dispatch: failed to record FAILED outcome for delivery %d: %v", delivery.ID, recErr)
		}
		deliveriesTotal.WithLabelValues(string(sender.Channel()), string(models.DeliveryStatusFailed)).Inc()
		return
	}

	var meta models.JSONMap
	if result != nil && result.ProviderMessageID != "" {
		meta = models.JSONMap{"provider_message_id": result.ProviderMessageID}
	}
	if recErr := d.deliveries.RecordOutcome(ctx, delivery.ID, models.DeliveryStatusSent, nil, meta); recErr != nil {
		d.logger.Printf("dispatch: failed to record SENT outcome for delivery %d: %v", delivery.ID, recErr)
	}
	deliveriesTotal.WithLabelValues(string(sender.Channel()), string(models.DeliveryStatusSent)).Inc()
}

// materializePayload resolves the template when the kind requires one
func (d *Dispatcher) materializePayload(ctx context.Context, req Request) (Payload, error) {
	payload := Payload{
		TemplateKind: req.TemplateKind,
		TemplateID:   req.TemplateID,
		Body:         req.Payload,
	}
	if req.TemplateKind == models.TemplateKindRaw {
		return payload, nil
	}
	if req.TemplateID == nil || *req.TemplateID == "" {
		return payload, fmt.Errorf("template id is required for kind %s", req.TemplateKind)
	}
	body, err := d.templates.GetTemplate(ctx, req.TenantID, req.TemplateKind, *req.TemplateID)
	if err != nil {
		return payload, fmt.Errorf("failed to load template %s: %w", *req.TemplateID, err)
	}
	payload.Body = body
	return payload, nil
}
