package audience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/utils"
)

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

type fakeBillingStore struct {
	billings []*models.Billing
}

func (s *fakeBillingStore) ListByCustomerIDs(_ context.Context, tenantID uint, customerIDs []uint) ([]*models.Billing, error) {
	wanted := make(map[uint]bool, len(customerIDs))
	for _, id := range customerIDs {
		wanted[id] = true
	}
	var out []*models.Billing
	for _, b := range s.billings {
		if b.TenantID == tenantID && wanted[b.CustomerID] {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeEventStore struct {
	events []*models.Event
}

func (s *fakeEventStore) ListByCustomerIDs(_ context.Context, tenantID uint, customerIDs []uint) ([]*models.Event, error) {
	wanted := make(map[uint]bool, len(customerIDs))
	for _, id := range customerIDs {
		wanted[id] = true
	}
	var out []*models.Event
	for _, e := range s.events {
		if e.TenantID == tenantID && wanted[e.CustomerID] {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeCustomerTagStore struct {
	assignments []*models.CustomerTag
}

func (s *fakeCustomerTagStore) ListByCustomerIDs(_ context.Context, tenantID uint, customerIDs []uint) ([]*models.CustomerTag, error) {
	wanted := make(map[uint]bool, len(customerIDs))
	for _, id := range customerIDs {
		wanted[id] = true
	}
	var out []*models.CustomerTag
	for _, ct := range s.assignments {
		if ct.TenantID == tenantID && wanted[ct.CustomerID] {
			out = append(out, ct)
		}
	}
	return out, nil
}

func (s *fakeCustomerTagStore) ListByTagIDs(_ context.Context, tenantID uint, tagIDs []uint) ([]*models.CustomerTag, error) {
	wanted := make(map[uint]bool, len(tagIDs))
	for _, id := range tagIDs {
		wanted[id] = true
	}
	var out []*models.CustomerTag
	for _, ct := range s.assignments {
		if ct.TenantID == tenantID && wanted[ct.TagID] {
			out = append(out, ct)
		}
	}
	return out, nil
}

const testTenantID uint = 7

func testCustomer(id uint, typ models.CustomerType, email, phone string) *models.Customer {
	c := &models.Customer{ID: id, TenantID: testTenantID, Type: typ}
	if email != "" {
		c.Identifiers.Email = utils.ToPtr(email)
	}
	if phone != "" {
		c.Identifiers.Phone = utils.ToPtr(phone)
	}
	return c
}

// newTestResolver seeds five customers: three companies (1, 2, 3) and two
// individuals (4, 5). Customers 1 and 4 have PAID billings, customer 3 has no
// email, customers 2 and 5 share a phone number.
func newTestResolver() *Resolver {
	customers := &fakeCustomerStore{customers: []*models.Customer{
		testCustomer(1, models.CustomerTypeCompany, "acme@example.com", "+81-90-0001"),
		testCustomer(2, models.CustomerTypeCompany, "globex@example.com", "+81-90-0002"),
		testCustomer(3, models.CustomerTypeCompany, "", "+81-90-0003"),
		testCustomer(4, models.CustomerTypeIndividual, "alice@example.com", "+81-90-0004"),
		testCustomer(5, models.CustomerTypeIndividual, "bob@example.com", "+81-90-0002"),
	}}
	issue := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	billings := &fakeBillingStore{billings: []*models.Billing{
		{ID: 1, TenantID: testTenantID, CustomerID: 1, InvoiceNumber: "INV-1", Status: models.BillingStatusPaid, IssueDate: issue, Amount: 5000, Currency: "JPY"},
		{ID: 2, TenantID: testTenantID, CustomerID: 2, InvoiceNumber: "INV-2", Status: models.BillingStatusOverdue, IssueDate: issue, Amount: 12000, Currency: "JPY"},
		{ID: 3, TenantID: testTenantID, CustomerID: 4, InvoiceNumber: "INV-3", Status: models.BillingStatusPaid, IssueDate: issue, Amount: 300, Currency: "JPY"},
	}}
	events := &fakeEventStore{events: []*models.Event{
		{ID: 1, TenantID: testTenantID, CustomerID: 1, Type: "purchase", Timestamp: issue, Payload: models.JSONMap{"productId": "sku-1"}},
		{ID: 2, TenantID: testTenantID, CustomerID: 2, Type: "page_view", Timestamp: issue},
	}}
	tags := &fakeCustomerTagStore{assignments: []*models.CustomerTag{
		{ID: 1, TenantID: testTenantID, CustomerID: 1, TagID: 10},
		{ID: 2, TenantID: testTenantID, CustomerID: 4, TagID: 10},
		{ID: 3, TenantID: testTenantID, CustomerID: 5, TagID: 11},
	}}
	return NewResolver(customers, billings, events, tags)
}

func TestEstimateSpecFilterByType(t *testing.T) {
	r := newTestResolver()

	count, err := r.EstimateSpec(context.Background(), testTenantID, models.AudienceSpec{
		Mode:         models.AudienceModeFilter,
		CustomerType: utils.ToPtr(models.CustomerTypeCompany),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestEstimateSpecFilterByTags(t *testing.T) {
	r := newTestResolver()

	// Any-of across tags 10 and 11 covers customers 1, 4 and 5
	count, err := r.EstimateSpec(context.Background(), testTenantID, models.AudienceSpec{
		Mode:   models.AudienceModeFilter,
		TagIDs: []string{"10", "11"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Type and tag predicates intersect
	count, err = r.EstimateSpec(context.Background(), testTenantID, models.AudienceSpec{
		Mode:         models.AudienceModeFilter,
		CustomerType: utils.ToPtr(models.CustomerTypeIndividual),
		TagIDs:       []string{"10"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEstimateSpecRejectsBadTagID(t *testing.T) {
	r := newTestResolver()

	_, err := r.EstimateSpec(context.Background(), testTenantID, models.AudienceSpec{
		Mode:   models.AudienceModeFilter,
		TagIDs: []string{"vip"},
	})
	assert.Error(t, err)
}

func TestResolveSpecManualDedup(t *testing.T) {
	r := newTestResolver()

	spec := models.AudienceSpec{
		Mode:         models.AudienceModeManual,
		Destinations: []string{"a@example.com", "b@example.com", "a@example.com", ""},
	}

	count, err := r.EstimateSpec(context.Background(), testTenantID, spec)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	set, err := r.ResolveSpec(context.Background(), testTenantID, spec, models.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, set.Destinations())
	assert.Zero(t, set.Unreachable)
	for _, rec := range set.Recipients {
		assert.Zero(t, rec.CustomerID)
	}
}

func TestResolveSpecUnreachable(t *testing.T) {
	r := newTestResolver()

	// Customer 3 has no email
	set, err := r.ResolveSpec(context.Background(), testTenantID, models.AudienceSpec{
		Mode:         models.AudienceModeFilter,
		CustomerType: utils.ToPtr(models.CustomerTypeCompany),
	}, models.ChannelEmail)
	require.NoError(t, err)
	assert.Len(t, set.Recipients, 2)
	assert.Equal(t, 1, set.Unreachable)
}

func TestEstimateMatchesResolve(t *testing.T) {
	r := newTestResolver()

	spec := models.AudienceSpec{
		Mode:         models.AudienceModeFilter,
		CustomerType: utils.ToPtr(models.CustomerTypeCompany),
	}

	count, err := r.EstimateSpec(context.Background(), testTenantID, spec)
	require.NoError(t, err)

	// Every estimated customer ends up either reachable or unreachable
	set, err := r.ResolveSpec(context.Background(), testTenantID, spec, models.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, count, int64(len(set.Recipients)+set.Unreachable))
}

func TestResolveSpecSharedDestination(t *testing.T) {
	r := newTestResolver()

	// Customers 2 and 5 share a phone number; each matched customer is its
	// own recipient, so the estimate is never undercut by a shared identifier
	spec := models.AudienceSpec{Mode: models.AudienceModeFilter}

	count, err := r.EstimateSpec(context.Background(), testTenantID, spec)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	set, err := r.ResolveSpec(context.Background(), testTenantID, spec, models.ChannelSMS)
	require.NoError(t, err)
	assert.Len(t, set.Recipients, 5)
	assert.Zero(t, set.Unreachable)
	assert.Equal(t, count, int64(len(set.Recipients)+set.Unreachable))
}

func TestResolveGraphJoin(t *testing.T) {
	r := newTestResolver()

	// Companies with at least one paid billing: customer 1 only
	g, err := Validate(validDefinition())
	require.NoError(t, err)

	count, err := r.EstimateGraph(context.Background(), testTenantID, g)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	set, err := r.ResolveGraph(context.Background(), testTenantID, g, models.ChannelEmail)
	require.NoError(t, err)
	require.Len(t, set.Recipients, 1)
	assert.Equal(t, uint(1), set.Recipients[0].CustomerID)
	assert.Equal(t, "acme@example.com", set.Recipients[0].Destination)
	assert.Zero(t, set.Unreachable)
}

func TestResolveGraphChainedJoins(t *testing.T) {
	r := newTestResolver()

	// Paid billing AND a purchase event for sku-1: customer 1 only
	def := validDefinition()
	def.Nodes[0].Filters = nil
	def.Nodes = append(def.Nodes, models.GraphNode{
		ID:   "n3",
		Kind: models.NodeKindEvents,
		Filters: []models.Filter{
			{Field: "type", Op: models.FilterOpEq, Value: "purchase"},
			{Field: "payload.productId", Op: models.FilterOpEq, Value: "sku-1"},
		},
	})
	def.Edges = append(def.Edges, models.GraphEdge{ID: "e2", From: "n1", To: "n3", On: []models.JoinCondition{
		{LeftField: "id", Op: models.JoinOpEq, RightField: "customerId"},
	}})

	g, err := Validate(def)
	require.NoError(t, err)

	matched, err := r.matchGraph(context.Background(), testTenantID, g)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, uint(1), matched[0].ID)
}

func TestResolveGraphAmountThreshold(t *testing.T) {
	r := newTestResolver()

	def := validDefinition()
	def.Nodes[0].Filters = nil
	def.Nodes[1].Filters = []models.Filter{
		{Field: "amount", Op: models.FilterOpGt, Value: "1000"},
	}

	g, err := Validate(def)
	require.NoError(t, err)

	count, err := r.EstimateGraph(context.Background(), testTenantID, g)
	require.NoError(t, err)
	// Customers 1 (5000) and 2 (12000); customer 4's 300 falls below
	assert.Equal(t, int64(2), count)
}

func TestResolveGraphIsolatedByTenant(t *testing.T) {
	r := newTestResolver()

	g, err := Validate(validDefinition())
	require.NoError(t, err)

	count, err := r.EstimateGraph(context.Background(), testTenantID+1, g)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestResolveGraphDeterministic(t *testing.T) {
	r := newTestResolver()

	g, err := Validate(validDefinition())
	require.NoError(t, err)

	first, err := r.ResolveGraph(context.Background(), testTenantID, g, models.ChannelEmail)
	require.NoError(t, err)
	second, err := r.ResolveGraph(context.Background(), testTenantID, g, models.ChannelEmail)
	require.NoError(t, err)

	assert.ElementsMatch(t, first.Destinations(), second.Destinations())
	assert.Equal(t, first.Unreachable, second.Unreachable)
}

func TestMatchSpecReturnsCustomers(t *testing.T) {
	r := newTestResolver()

	matched, err := r.MatchSpec(context.Background(), testTenantID, models.AudienceSpec{
		Mode:   models.AudienceModeFilter,
		TagIDs: []string{"11"},
	})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, uint(5), matched[0].ID)
}

func TestDestinationFor(t *testing.T) {
	c := &models.Customer{
		Identifiers: models.Identifiers{
			Email:      utils.ToPtr("a@example.com"),
			Phone:      utils.ToPtr("+81-90-0001"),
			LineUserID: utils.ToPtr("U1234"),
		},
	}

	dest, ok := DestinationFor(models.ChannelLine, c)
	require.True(t, ok)
	assert.Equal(t, "U1234", dest)

	dest, ok = DestinationFor(models.ChannelEmail, c)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", dest)

	_, ok = DestinationFor(models.ChannelMessenger, c)
	assert.False(t, ok)
}

func TestResolveCustomer(t *testing.T) {
	c := testCustomer(9, models.CustomerTypeIndividual, "x@example.com", "")

	set, err := ResolveCustomer(c, models.ChannelEmail)
	require.NoError(t, err)
	require.Len(t, set.Recipients, 1)
	assert.Equal(t, uint(9), set.Recipients[0].CustomerID)

	set, err = ResolveCustomer(c, models.ChannelSMS)
	require.NoError(t, err)
	assert.Empty(t, set.Recipients)
	assert.Equal(t, 1, set.Unreachable)
}
