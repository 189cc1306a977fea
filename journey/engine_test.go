package journey

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aikyo-io/campaign-engine/audience"
	"github.com/aikyo-io/campaign-engine/dispatch"
	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/utils"
)

type fakeInstanceStore struct {
	nextID uint
	rows   map[uint]*models.JourneyInstance
}

func newFakeInstanceStore() *fakeInstanceStore {
	return &fakeInstanceStore{rows: map[uint]*models.JourneyInstance{}}
}

func (s *fakeInstanceStore) Save(_ context.Context, instance *models.JourneyInstance) error {
	s.nextID++
	instance.ID = s.nextID
	copied := *instance
	s.rows[instance.ID] = &copied
	return nil
}

func (s *fakeInstanceStore) Advance(_ context.Context, instanceID uint, nodeID string, status models.JourneyInstanceStatus, wakeAt *time.Time) error {
	row := s.rows[instanceID]
	row.CurrentNodeID = nodeID
	row.Status = status
	row.WakeAt = wakeAt
	return nil
}

func (s *fakeInstanceStore) EnrolledCustomerIDs(_ context.Context, automationID uint) ([]uint, error) {
	var out []uint
	for _, row := range s.rows {
		if row.AutomationID == automationID {
			out = append(out, row.CustomerID)
		}
	}
	return out, nil
}

type fakeCustomerStore struct {
	customers map[uint]*models.Customer
}

func (s *fakeCustomerStore) ByID(_ context.Context, id uint) (*models.Customer, error) {
	return s.customers[id], nil
}

// ListByTenant satisfies the resolver's customer store over the same data
func (s *fakeCustomerStore) ListByTenant(_ context.Context, tenantID uint, limit, offset int) ([]*models.Customer, error) {
	var all []*models.Customer
	for id := uint(1); id <= uint(len(s.customers)); id++ {
		if c, ok := s.customers[id]; ok && c.TenantID == tenantID {
			all = append(all, c)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type fakeTagStore struct {
	tags map[string]*models.Tag
}

func (s *fakeTagStore) ByName(_ context.Context, _ uint, name string) (*models.Tag, error) {
	return s.tags[name], nil
}

type fakeCustomerTagStore struct {
	assigned map[uint]map[uint]bool
}

func (s *fakeCustomerTagStore) CustomerHasTag(_ context.Context, _ uint, customerID uint, tagID uint) (bool, error) {
	return s.assigned[customerID][tagID], nil
}

func (s *fakeCustomerTagStore) ListByCustomerIDs(_ context.Context, _ uint, _ []uint) ([]*models.CustomerTag, error) {
	return nil, nil
}

func (s *fakeCustomerTagStore) ListByTagIDs(_ context.Context, _ uint, _ []uint) ([]*models.CustomerTag, error) {
	return nil, nil
}

type fakeEventStore struct {
	events map[uint][]*models.Event
}

func (s *fakeEventStore) ListByCustomerAndType(_ context.Context, _ uint, customerID uint, eventType string) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range s.events[customerID] {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeEventStore) ListByCustomerIDs(_ context.Context, _ uint, _ []uint) ([]*models.Event, error) {
	return nil, nil
}

type fakeBillingStore struct{}

func (fakeBillingStore) ListByCustomerIDs(_ context.Context, _ uint, _ []uint) ([]*models.Billing, error) {
	return nil, nil
}

type fakeBroadcaster struct {
	requests []dispatch.Request
}

func (b *fakeBroadcaster) Dispatch(_ context.Context, req dispatch.Request) (*models.Broadcast, error) {
	b.requests = append(b.requests, req)
	return &models.Broadcast{ID: uint(len(b.requests))}, nil
}

type engineFixture struct {
	engine      *Engine
	instances   *fakeInstanceStore
	broadcaster *fakeBroadcaster
	automation  *models.Automation
}

func newEngineFixture(customers map[uint]*models.Customer, vipCustomerIDs ...uint) *engineFixture {
	customerStore := &fakeCustomerStore{customers: customers}
	tagStore := &fakeTagStore{tags: map[string]*models.Tag{"vip": {ID: 10, Name: "vip"}}}
	assigned := map[uint]map[uint]bool{}
	for _, id := range vipCustomerIDs {
		assigned[id] = map[uint]bool{10: true}
	}
	customerTagStore := &fakeCustomerTagStore{assigned: assigned}
	eventStore := &fakeEventStore{events: map[uint][]*models.Event{}}

	resolver := audience.NewResolver(customerStore, fakeBillingStore{}, eventStore, customerTagStore)
	instances := newFakeInstanceStore()
	broadcaster := &fakeBroadcaster{}
	engine := NewEngine(instances, customerStore, tagStore, customerTagStore, eventStore, resolver, broadcaster, nil)

	return &engineFixture{
		engine:      engine,
		instances:   instances,
		broadcaster: broadcaster,
		automation:  &models.Automation{ID: 1, TenantID: 1, Name: "welcome-flow", Status: models.AutomationStatusActive},
	}
}

func lineCustomer(id uint, lineUserID string) *models.Customer {
	return &models.Customer{
		ID:          id,
		TenantID:    1,
		Type:        models.CustomerTypeIndividual,
		Identifiers: models.Identifiers{LineUserID: utils.ToPtr(lineUserID)},
	}
}

func TestTickConditionBranching(t *testing.T) {
	vj, err := ValidateDefinition(validJourney())
	require.NoError(t, err)

	fx := newEngineFixture(map[uint]*models.Customer{
		1: lineCustomer(1, "U1"),
		2: lineCustomer(2, "U2"),
	}, 1)

	// Customer 1 carries the vip tag: YES branch straight to OUTPUT
	vip := &models.JourneyInstance{TenantID: 1, AutomationID: 1, CustomerID: 1, CurrentNodeID: "cond", Status: models.JourneyInstanceActive}
	require.NoError(t, fx.instances.Save(context.Background(), vip))
	require.NoError(t, fx.engine.Tick(context.Background(), fx.automation, vj, vip))

	assert.Equal(t, models.JourneyInstanceCompleted, vip.Status)
	require.Len(t, fx.broadcaster.requests, 1)
	req := fx.broadcaster.requests[0]
	assert.Equal(t, models.ChannelLine, req.Channel)
	assert.Equal(t, models.TemplateKindLine, req.TemplateKind)
	assert.Equal(t, utils.ToPtr("tmpl-1"), req.TemplateID)
	assert.Equal(t, utils.ToPtr(uint(1)), req.Source.AutomationID)
	assert.Equal(t, utils.ToPtr("out"), req.Source.JourneyNodeID)
	require.Len(t, req.Recipients.Recipients, 1)
	assert.Equal(t, "U1", req.Recipients.Recipients[0].Destination)

	// Customer 2 has no tag: NO branch parks on the WAIT node
	noVip := &models.JourneyInstance{TenantID: 1, AutomationID: 1, CustomerID: 2, CurrentNodeID: "cond", Status: models.JourneyInstanceActive}
	require.NoError(t, fx.instances.Save(context.Background(), noVip))
	require.NoError(t, fx.engine.Tick(context.Background(), fx.automation, vj, noVip))

	assert.Equal(t, models.JourneyInstanceActive, noVip.Status)
	assert.Equal(t, "wait", noVip.CurrentNodeID)
	require.NotNil(t, noVip.WakeAt)
	assert.WithinDuration(t, utils.UTCNow().Add(time.Hour), *noVip.WakeAt, 5*time.Second)
	assert.Len(t, fx.broadcaster.requests, 1)
}

func TestTickWakesDueWait(t *testing.T) {
	vj, err := ValidateDefinition(validJourney())
	require.NoError(t, err)

	fx := newEngineFixture(map[uint]*models.Customer{1: lineCustomer(1, "U1")})

	past := utils.UTCNow().Add(-time.Minute)
	instance := &models.JourneyInstance{TenantID: 1, AutomationID: 1, CustomerID: 1, CurrentNodeID: "wait", Status: models.JourneyInstanceActive, WakeAt: &past}
	require.NoError(t, fx.instances.Save(context.Background(), instance))

	require.NoError(t, fx.engine.Tick(context.Background(), fx.automation, vj, instance))

	assert.Equal(t, models.JourneyInstanceCompleted, instance.Status)
	assert.Nil(t, instance.WakeAt)
	assert.Len(t, fx.broadcaster.requests, 1)
}

func TestTickLeavesPendingWait(t *testing.T) {
	vj, err := ValidateDefinition(validJourney())
	require.NoError(t, err)

	fx := newEngineFixture(map[uint]*models.Customer{1: lineCustomer(1, "U1")})

	future := utils.UTCNow().Add(time.Hour)
	instance := &models.JourneyInstance{TenantID: 1, AutomationID: 1, CustomerID: 1, CurrentNodeID: "wait", Status: models.JourneyInstanceActive, WakeAt: &future}
	require.NoError(t, fx.instances.Save(context.Background(), instance))

	require.NoError(t, fx.engine.Tick(context.Background(), fx.automation, vj, instance))

	assert.Equal(t, models.JourneyInstanceActive, instance.Status)
	assert.Equal(t, "wait", instance.CurrentNodeID)
	assert.Empty(t, fx.broadcaster.requests)
}

func TestTickUnknownNode(t *testing.T) {
	vj, err := ValidateDefinition(validJourney())
	require.NoError(t, err)

	fx := newEngineFixture(map[uint]*models.Customer{1: lineCustomer(1, "U1")})
	instance := &models.JourneyInstance{TenantID: 1, AutomationID: 1, CustomerID: 1, CurrentNodeID: "deleted", Status: models.JourneyInstanceActive}
	require.NoError(t, fx.instances.Save(context.Background(), instance))

	err = fx.engine.Tick(context.Background(), fx.automation, vj, instance)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestTickOutputWithoutDestination(t *testing.T) {
	vj, err := ValidateDefinition(validJourney())
	require.NoError(t, err)

	// Customer has no LINE identifier; dispatch is skipped, position advances
	fx := newEngineFixture(map[uint]*models.Customer{
		1: {ID: 1, TenantID: 1, Type: models.CustomerTypeIndividual},
	})
	instance := &models.JourneyInstance{TenantID: 1, AutomationID: 1, CustomerID: 1, CurrentNodeID: "out", Status: models.JourneyInstanceActive}
	require.NoError(t, fx.instances.Save(context.Background(), instance))

	require.NoError(t, fx.engine.Tick(context.Background(), fx.automation, vj, instance))

	assert.Equal(t, models.JourneyInstanceCompleted, instance.Status)
	assert.Empty(t, fx.broadcaster.requests)
}

func TestEnrollCandidates(t *testing.T) {
	vj, err := ValidateDefinition(validJourney())
	require.NoError(t, err)

	fx := newEngineFixture(map[uint]*models.Customer{
		1: lineCustomer(1, "U1"),
		2: lineCustomer(2, "U2"),
	}, 1, 2)

	created, err := fx.engine.EnrollCandidates(context.Background(), fx.automation, vj)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// Both vip customers walked aud -> cond -> YES -> out and completed
	assert.Len(t, fx.broadcaster.requests, 2)
	for _, row := range fx.instances.rows {
		assert.Equal(t, models.JourneyInstanceCompleted, row.Status)
	}

	// A second pass enrolls nobody new
	created, err = fx.engine.EnrollCandidates(context.Background(), fx.automation, vj)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Len(t, fx.broadcaster.requests, 2)
}

func TestEnrollSkipsManualAudience(t *testing.T) {
	def := validJourney()
	def.Nodes[1].Audience = &models.AudienceSpec{Mode: models.AudienceModeManual, Destinations: []string{"a@example.com"}}
	vj, err := ValidateDefinition(def)
	require.NoError(t, err)

	fx := newEngineFixture(map[uint]*models.Customer{1: lineCustomer(1, "U1")})

	created, err := fx.engine.EnrollCandidates(context.Background(), fx.automation, vj)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Empty(t, fx.instances.rows)
}
