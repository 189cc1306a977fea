package audience

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aikyo-io/campaign-engine/models"
)

// ErrEmptyAudience is returned when a RUN resolution yields zero reachable
// destinations. Callers must reject the run before creating a broadcast.
var ErrEmptyAudience = errors.New("audience resolved to zero destinations")

const customerPageSize = 1000

// CustomerStore is the slice of the customer repository the resolver needs
type CustomerStore interface {
	ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.Customer, error)
}

// BillingStore loads billing rows for a candidate customer set
type BillingStore interface {
	ListByCustomerIDs(ctx context.Context, tenantID uint, customerIDs []uint) ([]*models.Billing, error)
}

// EventStore loads event rows for a candidate customer set
type EventStore interface {
	ListByCustomerIDs(ctx context.Context, tenantID uint, customerIDs []uint) ([]*models.Event, error)
}

// CustomerTagStore loads tag assignments for candidates or for tag predicates
type CustomerTagStore interface {
	ListByCustomerIDs(ctx context.Context, tenantID uint, customerIDs []uint) ([]*models.CustomerTag, error)
	ListByTagIDs(ctx context.Context, tenantID uint, tagIDs []uint) ([]*models.CustomerTag, error)
}

// Recipient is one resolved audience member with its channel destination.
// CustomerID is zero for MANUAL-mode raw destinations.
type Recipient struct {
	CustomerID  uint
	Destination string
}

// RecipientSet is the output of a RUN resolution
type RecipientSet struct {
	Recipients []Recipient

	// Unreachable counts matched customers lacking the identifier the
	// target channel requires. They are excluded, not failed.
	Unreachable int
}

// Destinations returns the raw destination list
func (s *RecipientSet) Destinations() []string {
	out := make([]string, 0, len(s.Recipients))
	for _, r := range s.Recipients {
		out = append(out, r.Destination)
	}
	return out
}

// Resolver compiles validated audience graphs and audience specs into
// recipient sets, scoped to a tenant
type Resolver struct {
	customers    CustomerStore
	billings     BillingStore
	events       EventStore
	customerTags CustomerTagStore
}

// NewResolver creates a resolver over the given stores
func NewResolver(customers CustomerStore, billings BillingStore, events EventStore, customerTags CustomerTagStore) *Resolver {
	return &Resolver{
		customers:    customers,
		billings:     billings,
		events:       events,
		customerTags: customerTags,
	}
}

// EstimateGraph counts the customers a validated graph matches
func (r *Resolver) EstimateGraph(ctx context.Context, tenantID uint, g *ValidatedGraph) (int64, error) {
	matched, err := r.matchGraph(ctx, tenantID, g)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// ResolveGraph runs a validated graph and extracts per-channel destinations.
// Matched customers without the channel's identifier are counted unreachable.
func (r *Resolver) ResolveGraph(ctx context.Context, tenantID uint, g *ValidatedGraph, channel models.Channel) (*RecipientSet, error) {
	matched, err := r.matchGraph(ctx, tenantID, g)
	if err != nil {
		return nil, err
	}
	return buildRecipientSet(matched, channel), nil
}

// EstimateSpec counts the customers a FILTER-mode audience spec matches.
// MANUAL mode counts its deduplicated destinations.
func (r *Resolver) EstimateSpec(ctx context.Context, tenantID uint, spec models.AudienceSpec) (int64, error) {
	if spec.Mode == models.AudienceModeManual {
		return int64(len(dedupStrings(spec.Destinations))), nil
	}
	matched, err := r.matchSpec(ctx, tenantID, spec)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// ResolveSpec runs an audience spec for a channel
func (r *Resolver) ResolveSpec(ctx context.Context, tenantID uint, spec models.AudienceSpec, channel models.Channel) (*RecipientSet, error) {
	if spec.Mode == models.AudienceModeManual {
		set := &RecipientSet{}
		for _, d := range dedupStrings(spec.Destinations) {
			set.Recipients = append(set.Recipients, Recipient{Destination: d})
		}
		return set, nil
	}

	matched, err := r.matchSpec(ctx, tenantID, spec)
	if err != nil {
		return nil, err
	}
	return buildRecipientSet(matched, channel), nil
}

// MatchSpec returns the customers a FILTER-mode spec selects, without
// destination extraction. Used by journey enrollment.
func (r *Resolver) MatchSpec(ctx context.Context, tenantID uint, spec models.AudienceSpec) ([]*models.Customer, error) {
	return r.matchSpec(ctx, tenantID, spec)
}

// ResolveCustomer builds a single-recipient set for one customer, used by
// journey OUTPUT nodes
func ResolveCustomer(customer *models.Customer, channel models.Channel) (*RecipientSet, error) {
	dest, ok := DestinationFor(channel, customer)
	if !ok {
		return &RecipientSet{Unreachable: 1}, nil
	}
	return &RecipientSet{Recipients: []Recipient{{CustomerID: customer.ID, Destination: dest}}}, nil
}

// DestinationFor extracts the channel-specific destination from a customer.
// One case per channel, exhaustively matched.
func DestinationFor(channel models.Channel, c *models.Customer) (string, bool) {
	var v *string
	switch channel {
	case models.ChannelLine:
		v = c.Identifiers.LineUserID
	case models.ChannelMessenger:
		v = c.Identifiers.PSID
	case models.ChannelEmail:
		v = c.Identifiers.Email
	case models.ChannelSMS:
		v = c.Identifiers.Phone
	default:
		return "", false
	}
	if v == nil || *v == "" {
		return "", false
	}
	return *v, true
}

// matchGraph walks the join order, narrowing the candidate customer set edge
// by edge. Joins evaluate per customer: a candidate survives an edge when at
// least one row pair of the edge's endpoint nodes satisfies every condition.
func (r *Resolver) matchGraph(ctx context.Context, tenantID uint, g *ValidatedGraph) ([]*models.Customer, error) {
	all, err := r.loadCustomers(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	candidates := make(map[uint]*models.Customer, len(all))
	for _, c := range all {
		row := customerRow(c)
		if matchesFilters(row, g.Root.Filters) {
			candidates[c.ID] = c
		}
	}

	rowCache := map[string]map[uint][]row{}
	nodeRows := func(nodeID string) (map[uint][]row, error) {
		if cached, ok := rowCache[nodeID]; ok {
			return cached, nil
		}
		node := g.NodesByID[nodeID]
		rows, err := r.fetchNodeRows(ctx, tenantID, node, candidates)
		if err != nil {
			return nil, err
		}
		rowCache[nodeID] = rows
		return rows, nil
	}

	for _, edge := range g.JoinOrder {
		fromRows, err := nodeRows(edge.From)
		if err != nil {
			return nil, err
		}
		toRows, err := nodeRows(edge.To)
		if err != nil {
			return nil, err
		}

		for id := range candidates {
			if !anyPairSatisfies(fromRows[id], toRows[id], edge.On) {
				delete(candidates, id)
			}
		}
		// Joined-in rows of later edges only matter for surviving
		// customers; drop cached rows so they refetch narrowed.
		rowCache = map[string]map[uint][]row{}
	}

	matched := make([]*models.Customer, 0, len(candidates))
	for _, c := range all {
		if _, ok := candidates[c.ID]; ok {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// matchSpec applies a FILTER-mode audience spec: optional customer type plus
// an any-of tag predicate
func (r *Resolver) matchSpec(ctx context.Context, tenantID uint, spec models.AudienceSpec) ([]*models.Customer, error) {
	all, err := r.loadCustomers(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Customer, 0, len(all))
	for _, c := range all {
		if spec.CustomerType != nil && c.Type != *spec.CustomerType {
			continue
		}
		matched = append(matched, c)
	}

	if len(spec.TagIDs) == 0 {
		return matched, nil
	}

	tagIDs := make([]uint, 0, len(spec.TagIDs))
	for _, raw := range spec.TagIDs {
		id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tag id %q: %w", raw, err)
		}
		tagIDs = append(tagIDs, uint(id))
	}

	assignments, err := r.customerTags.ListByTagIDs(ctx, tenantID, tagIDs)
	if err != nil {
		return nil, err
	}
	tagged := make(map[uint]bool, len(assignments))
	for _, a := range assignments {
		tagged[a.CustomerID] = true
	}

	withTag := matched[:0]
	for _, c := range matched {
		if tagged[c.ID] {
			withTag = append(withTag, c)
		}
	}
	return withTag, nil
}

func (r *Resolver) loadCustomers(ctx context.Context, tenantID uint) ([]*models.Customer, error) {
	var all []*models.Customer
	for offset := 0; ; offset += customerPageSize {
		page, err := r.customers.ListByTenant(ctx, tenantID, customerPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to load customers: %w", err)
		}
		all = append(all, page...)
		if len(page) < customerPageSize {
			return all, nil
		}
	}
}

// fetchNodeRows loads and filters one node's rows, grouped by customer id
func (r *Resolver) fetchNodeRows(ctx context.Context, tenantID uint, node models.GraphNode, candidates map[uint]*models.Customer) (map[uint][]row, error) {
	ids := make([]uint, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}

	grouped := make(map[uint][]row, len(candidates))
	add := func(customerID uint, rw row) {
		if matchesFilters(rw, node.Filters) {
			grouped[customerID] = append(grouped[customerID], rw)
		}
	}

	switch node.Kind {
	case models.NodeKindCustomers:
		for id, c := range candidates {
			add(id, customerRow(c))
		}
	case models.NodeKindBillings:
		rows, err := r.billings.ListByCustomerIDs(ctx, tenantID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load billings: %w", err)
		}
		for _, b := range rows {
			add(b.CustomerID, billingRow(b))
		}
	case models.NodeKindEvents:
		rows, err := r.events.ListByCustomerIDs(ctx, tenantID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load events: %w", err)
		}
		for _, e := range rows {
			add(e.CustomerID, eventRow(e))
		}
	case models.NodeKindCustomerTags:
		rows, err := r.customerTags.ListByCustomerIDs(ctx, tenantID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load customer tags: %w", err)
		}
		for _, ct := range rows {
			add(ct.CustomerID, customerTagRow(ct))
		}
	}
	return grouped, nil
}

// buildRecipientSet extracts per-channel destinations for matched customers.
// Uniqueness is by customer id, which matching already guarantees; customers
// sharing an identifier each get their own recipient so that matched count
// always equals recipients plus unreachable.
func buildRecipientSet(matched []*models.Customer, channel models.Channel) *RecipientSet {
	set := &RecipientSet{}
	for _, c := range matched {
		dest, ok := DestinationFor(channel, c)
		if !ok {
			set.Unreachable++
			continue
		}
		set.Recipients = append(set.Recipients, Recipient{CustomerID: c.ID, Destination: dest})
	}
	return set
}

func matchesFilters(rw row, filters []models.Filter) bool {
	for _, f := range filters {
		if !matchFilter(rw, f) {
			return false
		}
	}
	return true
}

func matchFilter(rw row, f models.Filter) bool {
	val, present := rw[f.Field]
	switch f.Op {
	case models.FilterOpEq:
		return present && val == f.Value
	case models.FilterOpNeq:
		return !present || val != f.Value
	case models.FilterOpContains:
		return present && strings.Contains(val, f.Value)
	case models.FilterOpGt:
		return present && compareValues(val, f.Value) > 0
	case models.FilterOpLt:
		return present && compareValues(val, f.Value) < 0
	default:
		return false
	}
}

// compareValues compares numerically when both sides parse as numbers,
// lexically otherwise (dates in ISO form order correctly either way)
func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa > fb:
			return 1
		case fa < fb:
			return -1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func anyPairSatisfies(left, right []row, conditions []models.JoinCondition) bool {
	for _, l := range left {
		for _, r := range right {
			if pairSatisfies(l, r, conditions) {
				return true
			}
		}
	}
	return false
}

func pairSatisfies(l, r row, conditions []models.JoinCondition) bool {
	for _, jc := range conditions {
		lv, lok := l[jc.LeftField]
		rv, rok := r[jc.RightField]
		if !lok || !rok {
			return false
		}
		switch jc.Op {
		case models.JoinOpEq:
			if lv != rv {
				return false
			}
		case models.JoinOpNeq:
			if lv == rv {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
