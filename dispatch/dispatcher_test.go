package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aikyo-io/campaign-engine/audience"
	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/utils"
)

type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeBroadcastStore struct {
	mu     sync.Mutex
	nextID uint
	saved  []*models.Broadcast
}

func (s *fakeBroadcastStore) Save(_ context.Context, b *models.Broadcast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	b.ID = s.nextID
	s.saved = append(s.saved, b)
	return nil
}

type fakeDeliveryStore struct {
	mu       sync.Mutex
	nextID   uint
	rows     map[uint]*models.Delivery
	outcomes []models.DeliveryStatus
}

func newFakeDeliveryStore() *fakeDeliveryStore {
	return &fakeDeliveryStore{rows: map[uint]*models.Delivery{}}
}

func (s *fakeDeliveryStore) SaveBatch(_ context.Context, deliveries []*models.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range deliveries {
		s.nextID++
		d.ID = s.nextID
		s.rows[d.ID] = d
	}
	return nil
}

func (s *fakeDeliveryStore) RecordOutcome(_ context.Context, deliveryID uint, status models.DeliveryStatus, errorMessage *string, providerMeta models.JSONMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.rows[deliveryID]
	d.Status = status
	d.ErrorMessage = errorMessage
	d.ProviderMeta = providerMeta
	s.outcomes = append(s.outcomes, status)
	return nil
}

func (s *fakeDeliveryStore) countByStatus() map[models.DeliveryStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[models.DeliveryStatus]int{}
	for _, d := range s.rows {
		counts[d.Status]++
	}
	return counts
}

type fakeTemplateStore struct {
	body models.JSONMap
	err  error
}

func (s *fakeTemplateStore) GetTemplate(_ context.Context, _ uint, _ models.TemplateKind, _ string) (models.JSONMap, error) {
	return s.body, s.err
}

// scriptedSender fails every destination listed in failing
type scriptedSender struct {
	channel models.Channel
	failing map[string]bool

	mu   sync.Mutex
	sent []string
}

func (s *scriptedSender) Channel() models.Channel { return s.channel }

func (s *scriptedSender) Send(_ context.Context, destination string, _ Payload) (*SendResult, error) {
	s.mu.Lock()
	s.sent = append(s.sent, destination)
	s.mu.Unlock()
	if s.failing[destination] {
		return nil, &SenderError{Code: "PROVIDER_REJECTED", Message: "rejected", Meta: models.JSONMap{"destination": destination}}
	}
	return &SendResult{ProviderMessageID: "msg-" + destination}, nil
}

func recipientSet(destinations ...string) *audience.RecipientSet {
	set := &audience.RecipientSet{}
	for i, d := range destinations {
		set.Recipients = append(set.Recipients, audience.Recipient{CustomerID: uint(i + 1), Destination: d})
	}
	return set
}

func newTestDispatcher(sender Sender, deliveries *fakeDeliveryStore) (*Dispatcher, *fakeBroadcastStore) {
	broadcasts := &fakeBroadcastStore{}
	d := NewDispatcher(fakeTxManager{}, broadcasts, deliveries, &fakeTemplateStore{body: models.JSONMap{"text": "hello"}}, []Sender{sender}, nil, nil)
	return d, broadcasts
}

func TestDispatchRecordsOutcomes(t *testing.T) {
	sender := &scriptedSender{
		channel: models.ChannelLine,
		failing: map[string]bool{"U2": true, "U4": true},
	}
	deliveries := newFakeDeliveryStore()
	d, broadcasts := newTestDispatcher(sender, deliveries)

	broadcast, err := d.Dispatch(context.Background(), Request{
		TenantID:     1,
		Channel:      models.ChannelLine,
		Recipients:   recipientSet("U1", "U2", "U3", "U4", "U5"),
		TemplateKind: models.TemplateKindRaw,
		Payload:      models.JSONMap{"text": "hello"},
	})
	require.NoError(t, err)
	require.NotNil(t, broadcast)
	assert.NotZero(t, broadcast.ID)

	d.Quiesce()

	counts := deliveries.countByStatus()
	assert.Equal(t, 3, counts[models.DeliveryStatusSent])
	assert.Equal(t, 2, counts[models.DeliveryStatusFailed])
	assert.Zero(t, counts[models.DeliveryStatusQueued])
	assert.Len(t, sender.sent, 5)
	require.Len(t, broadcasts.saved, 1)
}

func TestDispatchFailureDetails(t *testing.T) {
	sender := &scriptedSender{
		channel: models.ChannelLine,
		failing: map[string]bool{"U1": true},
	}
	deliveries := newFakeDeliveryStore()
	d, _ := newTestDispatcher(sender, deliveries)

	_, err := d.Dispatch(context.Background(), Request{
		TenantID:     1,
		Channel:      models.ChannelLine,
		Recipients:   recipientSet("U1", "U2"),
		TemplateKind: models.TemplateKindRaw,
	})
	require.NoError(t, err)
	d.Quiesce()

	for _, row := range deliveries.rows {
		switch row.Destination {
		case "U1":
			assert.Equal(t, models.DeliveryStatusFailed, row.Status)
			require.NotNil(t, row.ErrorMessage)
			assert.Contains(t, *row.ErrorMessage, "PROVIDER_REJECTED")
			assert.Equal(t, "U1", row.ProviderMeta["destination"])
		case "U2":
			assert.Equal(t, models.DeliveryStatusSent, row.Status)
			assert.Nil(t, row.ErrorMessage)
			assert.Equal(t, "msg-U2", row.ProviderMeta["provider_message_id"])
		}
	}
}

func TestDispatchEmptyAudience(t *testing.T) {
	sender := &scriptedSender{channel: models.ChannelLine}
	d, broadcasts := newTestDispatcher(sender, newFakeDeliveryStore())

	_, err := d.Dispatch(context.Background(), Request{
		TenantID:   1,
		Channel:    models.ChannelLine,
		Recipients: &audience.RecipientSet{},
	})
	assert.ErrorIs(t, err, audience.ErrEmptyAudience)
	assert.Empty(t, broadcasts.saved)
}

func TestDispatchUnknownChannel(t *testing.T) {
	sender := &scriptedSender{channel: models.ChannelLine}
	d, _ := newTestDispatcher(sender, newFakeDeliveryStore())

	_, err := d.Dispatch(context.Background(), Request{
		TenantID:   1,
		Channel:    models.ChannelSMS,
		Recipients: recipientSet("+81-90-0001"),
	})
	assert.ErrorIs(t, err, ErrNoSender)
}

func TestDispatchRequiresTemplateID(t *testing.T) {
	sender := &scriptedSender{channel: models.ChannelEmail}
	d, broadcasts := newTestDispatcher(sender, newFakeDeliveryStore())

	_, err := d.Dispatch(context.Background(), Request{
		TenantID:     1,
		Channel:      models.ChannelEmail,
		Recipients:   recipientSet("a@example.com"),
		TemplateKind: models.TemplateKindEmail,
	})
	require.Error(t, err)
	var dispatchErr *DispatchError
	assert.ErrorAs(t, err, &dispatchErr)
	assert.Empty(t, broadcasts.saved)
}

func TestDispatchMaterializesTemplate(t *testing.T) {
	sender := &scriptedSender{channel: models.ChannelEmail}
	deliveries := newFakeDeliveryStore()
	broadcasts := &fakeBroadcastStore{}
	templates := &fakeTemplateStore{body: models.JSONMap{"subject": "Hi", "html": "<p>Hi</p>"}}
	d := NewDispatcher(fakeTxManager{}, broadcasts, deliveries, templates, []Sender{sender}, nil, nil)

	broadcast, err := d.Dispatch(context.Background(), Request{
		TenantID:     1,
		Channel:      models.ChannelEmail,
		Recipients:   recipientSet("a@example.com"),
		TemplateKind: models.TemplateKindEmail,
		TemplateID:   utils.ToPtr("tmpl-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, utils.ToPtr("tmpl-1"), broadcast.TemplateID)
	d.Quiesce()
	assert.Equal(t, 1, deliveries.countByStatus()[models.DeliveryStatusSent])
}

func TestDispatchRecordsUnreachable(t *testing.T) {
	sender := &scriptedSender{channel: models.ChannelLine}
	d, broadcasts := newTestDispatcher(sender, newFakeDeliveryStore())

	set := recipientSet("U1")
	set.Unreachable = 3

	_, err := d.Dispatch(context.Background(), Request{
		TenantID:     1,
		Channel:      models.ChannelLine,
		Recipients:   set,
		TemplateKind: models.TemplateKindRaw,
	})
	require.NoError(t, err)
	d.Quiesce()

	require.Len(t, broadcasts.saved, 1)
	assert.Equal(t, 3, broadcasts.saved[0].Metadata["unreachable"])
}
