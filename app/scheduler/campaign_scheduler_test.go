package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aikyo-io/campaign-engine/audience"
	"github.com/aikyo-io/campaign-engine/dispatch"
	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/repository"
	"github.com/aikyo-io/campaign-engine/utils"
)

var (
	_ repository.CampaignRepository = (*fakeCampaignRepo)(nil)
	_ repository.DeliveryRepository = (*fakeDeliveryRepo)(nil)
)

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaign  *models.Campaign
	rollbacks int
}

func (f *fakeCampaignRepo) ByID(_ context.Context, id uint) (*models.Campaign, error) {
	if f.campaign != nil && f.campaign.ID == id {
		return f.campaign, nil
	}
	return nil, nil
}

func (f *fakeCampaignRepo) ByUUID(_ context.Context, uuid string) (*models.Campaign, error) {
	return f.campaign, nil
}

func (f *fakeCampaignRepo) ByFilter(_ context.Context, _ models.CampaignFilter, _ string, _, _ int) ([]*models.Campaign, error) {
	return []*models.Campaign{f.campaign}, nil
}

func (f *fakeCampaignRepo) Save(_ context.Context, c *models.Campaign) error {
	f.campaign = c
	return nil
}

func (f *fakeCampaignRepo) SaveBatch(_ context.Context, _ []*models.Campaign) error { return nil }

func (f *fakeCampaignRepo) Count(_ context.Context, _ models.CampaignFilter) (int64, error) {
	return 1, nil
}

func (f *fakeCampaignRepo) Exists(_ context.Context, _ models.CampaignFilter) (bool, error) {
	return true, nil
}

func (f *fakeCampaignRepo) Update(_ context.Context, c models.Campaign) error {
	*f.campaign = c
	return nil
}

func (f *fakeCampaignRepo) ListDueActive(_ context.Context, now time.Time, _ int) ([]*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.campaign
	if c == nil || c.Status != models.CampaignStatusActive {
		return nil, nil
	}
	if c.LockedUntil != nil && c.LockedUntil.After(now) {
		return nil, nil
	}
	return []*models.Campaign{c}, nil
}

func (f *fakeCampaignRepo) Claim(_ context.Context, campaignID uint, firedAt time.Time, lockedUntil time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.campaign
	if c == nil || c.ID != campaignID || c.Status != models.CampaignStatusActive {
		return false, nil
	}
	if c.LastFiredAt != nil && !c.LastFiredAt.Before(firedAt) {
		return false, nil
	}
	if c.LockedUntil != nil && c.LockedUntil.After(utils.UTCNow()) {
		return false, nil
	}
	c.LastFiredAt = &firedAt
	c.LockedUntil = &lockedUntil
	return true, nil
}

func (f *fakeCampaignRepo) RollbackFire(_ context.Context, campaignID uint, firedAt time.Time, prior *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks++
	c := f.campaign
	if c != nil && c.ID == campaignID && c.LastFiredAt != nil && c.LastFiredAt.Equal(firedAt) {
		c.LastFiredAt = prior
	}
	return nil
}

func (f *fakeCampaignRepo) ReleaseLock(_ context.Context, campaignID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.campaign != nil && f.campaign.ID == campaignID {
		f.campaign.LockedUntil = nil
	}
	return nil
}

func (f *fakeCampaignRepo) UpdateStatus(_ context.Context, campaignID uint, status models.CampaignStatus) error {
	f.campaign.Status = status
	return nil
}

type fakeDeliveryRepo struct {
	mu     sync.Mutex
	rows   []*models.Delivery
	nextID uint
}

func (f *fakeDeliveryRepo) Save(_ context.Context, d *models.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	d.ID = f.nextID
	f.rows = append(f.rows, d)
	return nil
}

func (f *fakeDeliveryRepo) SaveBatch(ctx context.Context, ds []*models.Delivery) error {
	for _, d := range ds {
		if err := f.Save(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeDeliveryRepo) ByID(_ context.Context, id uint) (*models.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.rows {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeDeliveryRepo) ByFilter(_ context.Context, _ models.DeliveryFilter, _ string, _, _ int) ([]*models.Delivery, error) {
	return f.rows, nil
}

func (f *fakeDeliveryRepo) Count(_ context.Context, _ models.DeliveryFilter) (int64, error) {
	return int64(len(f.rows)), nil
}

func (f *fakeDeliveryRepo) Exists(_ context.Context, _ models.DeliveryFilter) (bool, error) {
	return len(f.rows) > 0, nil
}

func (f *fakeDeliveryRepo) RecordOutcome(_ context.Context, deliveryID uint, status models.DeliveryStatus, errorMessage *string, providerMeta models.JSONMap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.rows {
		if d.ID == deliveryID && d.Status == models.DeliveryStatusQueued {
			d.Status = status
			d.ErrorMessage = errorMessage
			d.ProviderMeta = providerMeta
		}
	}
	return nil
}

func (f *fakeDeliveryRepo) StatsByBroadcast(_ context.Context, broadcastID uint) (*models.BroadcastStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.BroadcastStats{}
	for _, d := range f.rows {
		if d.BroadcastID != broadcastID {
			continue
		}
		stats.Total++
		switch d.Status {
		case models.DeliveryStatusQueued:
			stats.Queued++
		case models.DeliveryStatusSent:
			stats.Sent++
		case models.DeliveryStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (f *fakeDeliveryRepo) ListByBroadcast(_ context.Context, broadcastID uint, _ *models.DeliveryStatus, _, _ int) ([]*models.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Delivery
	for _, d := range f.rows {
		if d.BroadcastID == broadcastID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDeliveryRepo) ListQueuedOlderThan(_ context.Context, cutoff time.Time, limit int) ([]*models.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Delivery
	for _, d := range f.rows {
		if d.Status == models.DeliveryStatusQueued && d.CreatedAt.Before(cutoff) {
			out = append(out, d)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeBroadcastStore struct {
	mu      sync.Mutex
	saved   []*models.Broadcast
	saveErr error
}

func (f *fakeBroadcastStore) Save(_ context.Context, b *models.Broadcast) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	b.ID = uint(len(f.saved) + 1)
	f.saved = append(f.saved, b)
	return nil
}

type fakeCustomerStore struct {
	customers []*models.Customer
}

func (s *fakeCustomerStore) ListByTenant(_ context.Context, tenantID uint, limit, offset int) ([]*models.Customer, error) {
	var page []*models.Customer
	for _, c := range s.customers {
		if c.TenantID == tenantID {
			page = append(page, c)
		}
	}
	if offset >= len(page) {
		return nil, nil
	}
	page = page[offset:]
	if len(page) > limit {
		page = page[:limit]
	}
	return page, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type stubEmailSender struct{}

func (stubEmailSender) Channel() models.Channel { return models.ChannelEmail }

func (stubEmailSender) Send(_ context.Context, destination string, _ dispatch.Payload) (*dispatch.SendResult, error) {
	return &dispatch.SendResult{ProviderMessageID: "msg-" + destination}, nil
}

type schedulerFixture struct {
	sched      *CampaignScheduler
	campaigns  *fakeCampaignRepo
	deliveries *fakeDeliveryRepo
	broadcasts *fakeBroadcastStore
	customers  *fakeCustomerStore
}

// newSchedulerFixture wires a scheduler over fakes: one ACTIVE daily campaign
// created before its 09:00 fire time and one reachable EMAIL customer
func newSchedulerFixture() *schedulerFixture {
	customer := &models.Customer{ID: 1, TenantID: 7, Type: models.CustomerTypeIndividual}
	customer.Identifiers.Email = utils.ToPtr("amy@example.com")
	customers := &fakeCustomerStore{customers: []*models.Customer{customer}}

	campaigns := &fakeCampaignRepo{campaign: &models.Campaign{
		ID:       1,
		TenantID: 7,
		Name:     "morning-digest",
		Channel:  models.ChannelEmail,
		Status:   models.CampaignStatusActive,
		Schedule: models.Schedule{
			Cadence:   models.CadenceDaily,
			Time:      "09:00",
			StartDate: "2026-01-01",
			Always:    true,
		},
		Audience:     models.AudienceSpec{Mode: models.AudienceModeFilter},
		TemplateKind: models.TemplateKindRaw,
		Payload:      models.JSONMap{"subject": "hello"},
		CreatedAt:    time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
	}}

	deliveries := &fakeDeliveryRepo{}
	broadcasts := &fakeBroadcastStore{}
	resolver := audience.NewResolver(customers, nil, nil, nil)
	dispatcher := dispatch.NewDispatcher(passthroughTx{}, broadcasts, deliveries, nil, []dispatch.Sender{stubEmailSender{}}, nil, nil)

	return &schedulerFixture{
		sched:      NewCampaignScheduler(campaigns, deliveries, resolver, dispatcher, nil, time.Minute, time.Minute),
		campaigns:  campaigns,
		deliveries: deliveries,
		broadcasts: broadcasts,
		customers:  customers,
	}
}

func TestFireIfDueDispatches(t *testing.T) {
	fx := newSchedulerFixture()
	now := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)

	fx.sched.fireIfDue(context.Background(), fx.campaigns.campaign, now)
	fx.sched.dispatcher.Quiesce()

	require.Len(t, fx.broadcasts.saved, 1)
	require.NotNil(t, fx.campaigns.campaign.LastFiredAt)
	assert.Equal(t, time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), *fx.campaigns.campaign.LastFiredAt)
	assert.Nil(t, fx.campaigns.campaign.LockedUntil)
	require.Len(t, fx.deliveries.rows, 1)
	assert.Equal(t, models.DeliveryStatusSent, fx.deliveries.rows[0].Status)

	// The consumed instant does not fire twice
	fx.sched.fireIfDue(context.Background(), fx.campaigns.campaign, now)
	fx.sched.dispatcher.Quiesce()
	assert.Len(t, fx.broadcasts.saved, 1)
}

func TestFireIfDueRollsBackFailedDispatch(t *testing.T) {
	fx := newSchedulerFixture()
	fx.broadcasts.saveErr = errors.New("connection refused")
	now := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)

	fx.sched.fireIfDue(context.Background(), fx.campaigns.campaign, now)

	// The failed instant returns to the schedule instead of being consumed
	assert.Equal(t, 1, fx.campaigns.rollbacks)
	assert.Nil(t, fx.campaigns.campaign.LastFiredAt)
	assert.Nil(t, fx.campaigns.campaign.LockedUntil)
	assert.Empty(t, fx.broadcasts.saved)

	// The next tick reattempts the same instant once the store recovers
	fx.broadcasts.saveErr = nil
	fx.sched.fireIfDue(context.Background(), fx.campaigns.campaign, now)
	fx.sched.dispatcher.Quiesce()

	require.Len(t, fx.broadcasts.saved, 1)
	require.NotNil(t, fx.campaigns.campaign.LastFiredAt)
	assert.Equal(t, time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), *fx.campaigns.campaign.LastFiredAt)
}

func TestFireIfDueConsumesEmptyAudience(t *testing.T) {
	fx := newSchedulerFixture()
	fx.customers.customers = nil
	now := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)

	fx.sched.fireIfDue(context.Background(), fx.campaigns.campaign, now)

	// Nobody to reach is a skip, not a retry
	assert.Zero(t, fx.campaigns.rollbacks)
	assert.Empty(t, fx.broadcasts.saved)
	require.NotNil(t, fx.campaigns.campaign.LastFiredAt)
	assert.Equal(t, time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), *fx.campaigns.campaign.LastFiredAt)
}

func TestReapStaleQueuedDeliveries(t *testing.T) {
	fx := newSchedulerFixture()
	now := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)

	stale := &models.Delivery{BroadcastID: 9, Destination: "a@example.com", Status: models.DeliveryStatusQueued, CreatedAt: now.Add(-2 * time.Hour)}
	fresh := &models.Delivery{BroadcastID: 9, Destination: "b@example.com", Status: models.DeliveryStatusQueued, CreatedAt: now.Add(-time.Minute)}
	require.NoError(t, fx.deliveries.Save(context.Background(), stale))
	require.NoError(t, fx.deliveries.Save(context.Background(), fresh))

	fx.sched.reapStaleDeliveries(context.Background(), now)

	assert.Equal(t, models.DeliveryStatusFailed, stale.Status)
	require.NotNil(t, stale.ErrorMessage)
	assert.Equal(t, "delivery abandoned in queue", *stale.ErrorMessage)
	assert.Equal(t, models.DeliveryStatusQueued, fresh.Status)
}
