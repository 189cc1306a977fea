package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/utils"
)

// validJourney is start -> audience -> condition -(YES)-> output
//
//	\-(NO)-> wait -> output
func validJourney() models.JourneyDefinition {
	return models.JourneyDefinition{
		StartNodeID: "start",
		Nodes: []models.JourneyNode{
			{ID: "start", Kind: models.JourneyNodeStart},
			{ID: "aud", Kind: models.JourneyNodeAudience, Audience: &models.AudienceSpec{Mode: models.AudienceModeFilter}},
			{ID: "cond", Kind: models.JourneyNodeCondition, Conditions: []models.JourneyCondition{
				{Field: "tag", Op: models.JourneyCondOpHas, Value: "vip"},
			}},
			{ID: "wait", Kind: models.JourneyNodeWait, Wait: &models.WaitSpec{Amount: 1, Unit: models.WaitUnitHours}},
			{ID: "out", Kind: models.JourneyNodeOutput, Output: &models.OutputSpec{Channel: models.ChannelLine, TemplateID: "tmpl-1"}},
		},
		Edges: []models.JourneyEdge{
			{From: "start", To: "aud"},
			{From: "aud", To: "cond"},
			{From: "cond", To: "out", Label: utils.ToPtr(models.EdgeLabelYes)},
			{From: "cond", To: "wait", Label: utils.ToPtr(models.EdgeLabelNo)},
			{From: "wait", To: "out"},
		},
	}
}

func TestValidateDefinition(t *testing.T) {
	vj, err := ValidateDefinition(validJourney())
	require.NoError(t, err)
	assert.Equal(t, "start", vj.Start.ID)
	assert.Len(t, vj.NodesByID, 5)

	next, ok := vj.NextFrom("aud")
	require.True(t, ok)
	assert.Equal(t, "cond", next)

	yes, no := vj.Branches("cond")
	assert.Equal(t, "out", yes)
	assert.Equal(t, "wait", no)

	audNodes := vj.AudienceNodes()
	require.Len(t, audNodes, 1)
	assert.Equal(t, "aud", audNodes[0].ID)
}

func TestValidateDefinitionRejects(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*models.JourneyDefinition)
		expectedKind DefinitionErrorKind
	}{
		{
			name:         "empty definition",
			mutate:       func(d *models.JourneyDefinition) { d.Nodes = nil; d.Edges = nil },
			expectedKind: DefinitionErrorBadStart,
		},
		{
			name: "duplicate node id",
			mutate: func(d *models.JourneyDefinition) {
				d.Nodes = append(d.Nodes, models.JourneyNode{ID: "wait", Kind: models.JourneyNodeOutput, Output: &models.OutputSpec{Channel: models.ChannelSMS, TemplateID: "x"}})
			},
			expectedKind: DefinitionErrorDuplicateNode,
		},
		{
			name: "unknown node kind",
			mutate: func(d *models.JourneyDefinition) {
				d.Nodes[4].Kind = "EXIT"
			},
			expectedKind: DefinitionErrorUnknownKind,
		},
		{
			name: "second start node",
			mutate: func(d *models.JourneyDefinition) {
				d.Nodes = append(d.Nodes, models.JourneyNode{ID: "start2", Kind: models.JourneyNodeStart})
			},
			expectedKind: DefinitionErrorBadStart,
		},
		{
			name: "startNodeId references non-start node",
			mutate: func(d *models.JourneyDefinition) {
				d.StartNodeID = "aud"
			},
			expectedKind: DefinitionErrorBadStart,
		},
		{
			name: "edge references unknown node",
			mutate: func(d *models.JourneyDefinition) {
				d.Edges[4].To = "nope"
			},
			expectedKind: DefinitionErrorUnknownNode,
		},
		{
			name: "audience node without spec",
			mutate: func(d *models.JourneyDefinition) {
				d.Nodes[1].Audience = nil
			},
			expectedKind: DefinitionErrorBadPayload,
		},
		{
			name: "wait node with zero amount",
			mutate: func(d *models.JourneyDefinition) {
				d.Nodes[3].Wait.Amount = 0
			},
			expectedKind: DefinitionErrorBadPayload,
		},
		{
			name: "output node without template",
			mutate: func(d *models.JourneyDefinition) {
				d.Nodes[4].Output.TemplateID = ""
			},
			expectedKind: DefinitionErrorBadPayload,
		},
		{
			name: "condition node without conditions",
			mutate: func(d *models.JourneyDefinition) {
				d.Nodes[2].Conditions = nil
			},
			expectedKind: DefinitionErrorBadCondition,
		},
		{
			name: "condition field rejects op",
			mutate: func(d *models.JourneyDefinition) {
				d.Nodes[2].Conditions[0] = models.JourneyCondition{Field: "type", Op: models.JourneyCondOpHas, Value: "COMPANY"}
			},
			expectedKind: DefinitionErrorBadCondition,
		},
		{
			name: "unknown condition field",
			mutate: func(d *models.JourneyDefinition) {
				d.Nodes[2].Conditions[0].Field = "country"
			},
			expectedKind: DefinitionErrorBadCondition,
		},
		{
			name: "condition missing NO branch",
			mutate: func(d *models.JourneyDefinition) {
				d.Edges = append(d.Edges[:3], d.Edges[4])
				// wait is now only reachable through the dropped edge,
				// keep it attached from the output side
				d.Edges = append(d.Edges, models.JourneyEdge{From: "out", To: "wait"})
			},
			expectedKind: DefinitionErrorBadEdges,
		},
		{
			name: "unlabeled condition edge",
			mutate: func(d *models.JourneyDefinition) {
				d.Edges[2].Label = nil
			},
			expectedKind: DefinitionErrorBadEdges,
		},
		{
			name: "start with two outgoing edges",
			mutate: func(d *models.JourneyDefinition) {
				d.Edges = append(d.Edges, models.JourneyEdge{From: "start", To: "out"})
			},
			expectedKind: DefinitionErrorBadEdges,
		},
		{
			name: "labeled wait edge",
			mutate: func(d *models.JourneyDefinition) {
				d.Edges[4].Label = utils.ToPtr(models.EdgeLabelYes)
			},
			expectedKind: DefinitionErrorBadEdges,
		},
		{
			name: "unreachable node",
			mutate: func(d *models.JourneyDefinition) {
				d.Nodes = append(d.Nodes, models.JourneyNode{ID: "orphan", Kind: models.JourneyNodeOutput, Output: &models.OutputSpec{Channel: models.ChannelSMS, TemplateID: "x"}})
			},
			expectedKind: DefinitionErrorUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validJourney()
			tt.mutate(&def)

			_, err := ValidateDefinition(def)
			require.Error(t, err)
			var defErr *DefinitionError
			require.ErrorAs(t, err, &defErr)
			assert.Equal(t, tt.expectedKind, defErr.Kind)
		})
	}
}

func TestValidateDefinitionAudienceEntryPoint(t *testing.T) {
	// An AUDIENCE node not wired from START is still a valid entry point
	def := models.JourneyDefinition{
		StartNodeID: "start",
		Nodes: []models.JourneyNode{
			{ID: "start", Kind: models.JourneyNodeStart},
			{ID: "out1", Kind: models.JourneyNodeOutput, Output: &models.OutputSpec{Channel: models.ChannelEmail, TemplateID: "a"}},
			{ID: "aud", Kind: models.JourneyNodeAudience, Audience: &models.AudienceSpec{Mode: models.AudienceModeFilter}},
			{ID: "out2", Kind: models.JourneyNodeOutput, Output: &models.OutputSpec{Channel: models.ChannelEmail, TemplateID: "b"}},
		},
		Edges: []models.JourneyEdge{
			{From: "start", To: "out1"},
			{From: "aud", To: "out2"},
		},
	}

	_, err := ValidateDefinition(def)
	assert.NoError(t, err)
}
