package audience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aikyo-io/campaign-engine/models"
)

func validDefinition() models.AudienceDefinition {
	return models.AudienceDefinition{
		Version:    1,
		Kind:       models.AudienceDefinitionKind,
		RootNodeID: "n1",
		Nodes: []models.GraphNode{
			{ID: "n1", Kind: models.NodeKindCustomers, Alias: "c", Filters: []models.Filter{
				{Field: "type", Op: models.FilterOpEq, Value: "COMPANY"},
			}},
			{ID: "n2", Kind: models.NodeKindBillings, Alias: "b", Filters: []models.Filter{
				{Field: "status", Op: models.FilterOpEq, Value: "PAID"},
			}},
		},
		Edges: []models.GraphEdge{
			{ID: "e1", From: "n1", To: "n2", On: []models.JoinCondition{
				{LeftField: "id", Op: models.JoinOpEq, RightField: "customerId"},
			}},
		},
	}
}

func TestValidate(t *testing.T) {
	g, err := Validate(validDefinition())
	require.NoError(t, err)
	assert.Equal(t, "n1", g.Root.ID)
	assert.Len(t, g.NodesByID, 2)
	assert.Len(t, g.JoinOrder, 1)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*models.AudienceDefinition)
		expectedKind GraphErrorKind
	}{
		{
			name:         "wrong definition kind",
			mutate:       func(d *models.AudienceDefinition) { d.Kind = "SQL" },
			expectedKind: GraphErrorUnknownKind,
		},
		{
			name:         "no nodes",
			mutate:       func(d *models.AudienceDefinition) { d.Nodes = nil; d.Edges = nil },
			expectedKind: GraphErrorBadRoot,
		},
		{
			name: "duplicate node id",
			mutate: func(d *models.AudienceDefinition) {
				d.Nodes = append(d.Nodes, models.GraphNode{ID: "n2", Kind: models.NodeKindEvents})
			},
			expectedKind: GraphErrorDuplicateNode,
		},
		{
			name: "duplicate alias",
			mutate: func(d *models.AudienceDefinition) {
				d.Nodes[1].Alias = "c"
			},
			expectedKind: GraphErrorDuplicateAlias,
		},
		{
			name: "unknown node kind",
			mutate: func(d *models.AudienceDefinition) {
				d.Nodes[1].Kind = "ORDERS"
			},
			expectedKind: GraphErrorUnknownKind,
		},
		{
			name: "unknown filter op",
			mutate: func(d *models.AudienceDefinition) {
				d.Nodes[0].Filters[0].Op = "~="
			},
			expectedKind: GraphErrorUnknownOp,
		},
		{
			name: "filter on unqueryable field",
			mutate: func(d *models.AudienceDefinition) {
				d.Nodes[0].Filters[0].Field = "password"
			},
			expectedKind: GraphErrorUnknownField,
		},
		{
			name: "root references missing node",
			mutate: func(d *models.AudienceDefinition) {
				d.RootNodeID = "nope"
			},
			expectedKind: GraphErrorBadRoot,
		},
		{
			name: "root is not the customers node",
			mutate: func(d *models.AudienceDefinition) {
				d.RootNodeID = "n2"
			},
			expectedKind: GraphErrorBadRoot,
		},
		{
			name: "second customers node",
			mutate: func(d *models.AudienceDefinition) {
				d.Nodes = append(d.Nodes, models.GraphNode{ID: "n3", Kind: models.NodeKindCustomers})
			},
			expectedKind: GraphErrorBadRoot,
		},
		{
			name: "edge references unknown node",
			mutate: func(d *models.AudienceDefinition) {
				d.Edges[0].To = "nope"
			},
			expectedKind: GraphErrorUnknownNode,
		},
		{
			name: "join on unqueryable field",
			mutate: func(d *models.AudienceDefinition) {
				d.Edges[0].On[0].RightField = "secret"
			},
			expectedKind: GraphErrorUnknownField,
		},
		{
			name: "cycle through join edges",
			mutate: func(d *models.AudienceDefinition) {
				d.Edges = append(d.Edges, models.GraphEdge{ID: "e2", From: "n2", To: "n1", On: []models.JoinCondition{
					{LeftField: "customerId", Op: models.JoinOpEq, RightField: "id"},
				}})
			},
			expectedKind: GraphErrorCycle,
		},
		{
			name: "disconnected node",
			mutate: func(d *models.AudienceDefinition) {
				d.Nodes = append(d.Nodes, models.GraphNode{ID: "n3", Kind: models.NodeKindEvents})
			},
			expectedKind: GraphErrorDisconnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)

			_, err := Validate(def)
			require.Error(t, err)
			var graphErr *GraphError
			require.ErrorAs(t, err, &graphErr)
			assert.Equal(t, tt.expectedKind, graphErr.Kind)
		})
	}
}

func TestValidateEventPayloadFields(t *testing.T) {
	def := validDefinition()
	def.Nodes = append(def.Nodes, models.GraphNode{
		ID:   "n3",
		Kind: models.NodeKindEvents,
		Filters: []models.Filter{
			{Field: "payload.productId", Op: models.FilterOpEq, Value: "sku-1"},
		},
	})
	def.Edges = append(def.Edges, models.GraphEdge{ID: "e2", From: "n1", To: "n3", On: []models.JoinCondition{
		{LeftField: "id", Op: models.JoinOpEq, RightField: "customerId"},
	}})

	_, err := Validate(def)
	assert.NoError(t, err)

	// A bare "payload." prefix with no path is not a field
	def.Nodes[2].Filters[0].Field = "payload."
	_, err = Validate(def)
	require.Error(t, err)
	var graphErr *GraphError
	require.ErrorAs(t, err, &graphErr)
	assert.Equal(t, GraphErrorUnknownField, graphErr.Kind)
}

func TestJoinOrderFollowsDepth(t *testing.T) {
	// Chain customers -> billings -> events authored with the deeper edge first
	def := models.AudienceDefinition{
		Version:    1,
		Kind:       models.AudienceDefinitionKind,
		RootNodeID: "c",
		Nodes: []models.GraphNode{
			{ID: "c", Kind: models.NodeKindCustomers},
			{ID: "b", Kind: models.NodeKindBillings},
			{ID: "ev", Kind: models.NodeKindEvents},
		},
		Edges: []models.GraphEdge{
			{ID: "deep", From: "b", To: "ev", On: []models.JoinCondition{
				{LeftField: "customerId", Op: models.JoinOpEq, RightField: "customerId"},
			}},
			{ID: "shallow", From: "c", To: "b", On: []models.JoinCondition{
				{LeftField: "id", Op: models.JoinOpEq, RightField: "customerId"},
			}},
		},
	}

	g, err := Validate(def)
	require.NoError(t, err)
	require.Len(t, g.JoinOrder, 2)
	assert.Equal(t, "shallow", g.JoinOrder[0].ID)
	assert.Equal(t, "deep", g.JoinOrder[1].ID)
}
