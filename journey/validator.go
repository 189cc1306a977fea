// Package journey advances per-customer state machines through automation
// definition graphs.
package journey

import (
	"fmt"

	"github.com/aikyo-io/campaign-engine/models"
)

// DefinitionErrorKind classifies a structural defect in a journey definition
type DefinitionErrorKind string

const (
	DefinitionErrorDuplicateNode DefinitionErrorKind = "DUPLICATE_NODE"
	DefinitionErrorUnknownKind   DefinitionErrorKind = "UNKNOWN_KIND"
	DefinitionErrorBadStart      DefinitionErrorKind = "BAD_START"
	DefinitionErrorUnknownNode   DefinitionErrorKind = "UNKNOWN_NODE"
	DefinitionErrorBadPayload    DefinitionErrorKind = "BAD_PAYLOAD"
	DefinitionErrorBadCondition  DefinitionErrorKind = "BAD_CONDITION"
	DefinitionErrorBadEdges      DefinitionErrorKind = "BAD_EDGES"
	DefinitionErrorUnreachable   DefinitionErrorKind = "UNREACHABLE"
)

// DefinitionError reports a malformed journey definition. Rejected at save
// time so tick-time processing never sees a bad graph.
type DefinitionError struct {
	Kind    DefinitionErrorKind `json:"kind"`
	NodeID  string              `json:"node_id,omitempty"`
	Message string              `json:"message"`
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("journey definition error %s: %s", e.Kind, e.Message)
}

// ValidatedJourney is the output of ValidateDefinition: the immutable
// definition plus the lookups the engine walks at tick time
type ValidatedJourney struct {
	Definition models.JourneyDefinition
	Start      models.JourneyNode
	NodesByID  map[string]models.JourneyNode
	Out        map[string][]models.JourneyEdge
}

// NextFrom returns the single outgoing edge's target, or empty when the node
// is a dead end
func (j *ValidatedJourney) NextFrom(nodeID string) (string, bool) {
	edges := j.Out[nodeID]
	if len(edges) == 0 {
		return "", false
	}
	return edges[0].To, true
}

// Branches returns the YES and NO targets of a CONDITION node
func (j *ValidatedJourney) Branches(nodeID string) (yes string, no string) {
	for _, e := range j.Out[nodeID] {
		if e.Label == nil {
			continue
		}
		switch *e.Label {
		case models.EdgeLabelYes:
			yes = e.To
		case models.EdgeLabelNo:
			no = e.To
		}
	}
	return yes, no
}

// AudienceNodes lists the definition's AUDIENCE nodes in author order
func (j *ValidatedJourney) AudienceNodes() []models.JourneyNode {
	var out []models.JourneyNode
	for _, n := range j.Definition.Nodes {
		if n.Kind == models.JourneyNodeAudience {
			out = append(out, n)
		}
	}
	return out
}

// ValidateDefinition checks a journey definition for structural correctness
func ValidateDefinition(def models.JourneyDefinition) (*ValidatedJourney, error) {
	if len(def.Nodes) == 0 {
		return nil, &DefinitionError{Kind: DefinitionErrorBadStart, Message: "definition has no nodes"}
	}

	nodesByID := make(map[string]models.JourneyNode, len(def.Nodes))
	var startCount int
	for _, n := range def.Nodes {
		if _, dup := nodesByID[n.ID]; dup {
			return nil, &DefinitionError{Kind: DefinitionErrorDuplicateNode, NodeID: n.ID, Message: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		if !n.Kind.Valid() {
			return nil, &DefinitionError{Kind: DefinitionErrorUnknownKind, NodeID: n.ID, Message: fmt.Sprintf("unknown node kind %q", n.Kind)}
		}
		if err := validatePayload(n); err != nil {
			return nil, err
		}
		if n.Kind == models.JourneyNodeStart {
			startCount++
		}
		nodesByID[n.ID] = n
	}

	if startCount != 1 {
		return nil, &DefinitionError{Kind: DefinitionErrorBadStart, Message: fmt.Sprintf("definition must contain exactly one START node, found %d", startCount)}
	}
	start, ok := nodesByID[def.StartNodeID]
	if !ok || start.Kind != models.JourneyNodeStart {
		return nil, &DefinitionError{Kind: DefinitionErrorBadStart, Message: fmt.Sprintf("startNodeId %q does not reference the START node", def.StartNodeID)}
	}

	out := make(map[string][]models.JourneyEdge, len(def.Nodes))
	for _, e := range def.Edges {
		if _, ok := nodesByID[e.From]; !ok {
			return nil, &DefinitionError{Kind: DefinitionErrorUnknownNode, Message: fmt.Sprintf("edge references unknown node %q", e.From)}
		}
		if _, ok := nodesByID[e.To]; !ok {
			return nil, &DefinitionError{Kind: DefinitionErrorUnknownNode, Message: fmt.Sprintf("edge references unknown node %q", e.To)}
		}
		out[e.From] = append(out[e.From], e)
	}

	for _, n := range def.Nodes {
		if err := validateEdgeCardinality(n, out[n.ID]); err != nil {
			return nil, err
		}
	}

	reachable := map[string]bool{start.ID: true}
	stack := []string{start.ID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range out[cur] {
			if !reachable[e.To] {
				reachable[e.To] = true
				stack = append(stack, e.To)
			}
		}
	}
	for _, n := range def.Nodes {
		// AUDIENCE nodes are entry points of their own; everything else
		// must be walkable from START or an AUDIENCE node.
		if n.Kind == models.JourneyNodeAudience && !reachable[n.ID] {
			reachable[n.ID] = true
			stack = append(stack, n.ID)
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for _, e := range out[cur] {
					if !reachable[e.To] {
						reachable[e.To] = true
						stack = append(stack, e.To)
					}
				}
			}
		}
	}
	for _, n := range def.Nodes {
		if !reachable[n.ID] {
			return nil, &DefinitionError{Kind: DefinitionErrorUnreachable, NodeID: n.ID, Message: fmt.Sprintf("node %q is not reachable from START or an AUDIENCE node", n.ID)}
		}
	}

	return &ValidatedJourney{
		Definition: def,
		Start:      start,
		NodesByID:  nodesByID,
		Out:        out,
	}, nil
}

func validatePayload(n models.JourneyNode) error {
	switch n.Kind {
	case models.JourneyNodeAudience:
		if n.Audience == nil || !n.Audience.Mode.Valid() {
			return &DefinitionError{Kind: DefinitionErrorBadPayload, NodeID: n.ID, Message: "AUDIENCE node requires an audience spec with a valid mode"}
		}
	case models.JourneyNodeCondition:
		if len(n.Conditions) == 0 {
			return &DefinitionError{Kind: DefinitionErrorBadCondition, NodeID: n.ID, Message: "CONDITION node requires at least one condition"}
		}
		for _, c := range n.Conditions {
			if !c.Op.Valid() {
				return &DefinitionError{Kind: DefinitionErrorBadCondition, NodeID: n.ID, Message: fmt.Sprintf("unknown condition op %q", c.Op)}
			}
			switch c.Field {
			case "type":
				if c.Op != models.JourneyCondOpEq && c.Op != models.JourneyCondOpNeq {
					return &DefinitionError{Kind: DefinitionErrorBadCondition, NodeID: n.ID, Message: fmt.Sprintf("field %q supports only = and !=", c.Field)}
				}
			case "tag", "event":
				if c.Op != models.JourneyCondOpHas && c.Op != models.JourneyCondOpHasNot {
					return &DefinitionError{Kind: DefinitionErrorBadCondition, NodeID: n.ID, Message: fmt.Sprintf("field %q supports only HAS and HAS_NOT", c.Field)}
				}
			default:
				return &DefinitionError{Kind: DefinitionErrorBadCondition, NodeID: n.ID, Message: fmt.Sprintf("unknown condition field %q", c.Field)}
			}
		}
	case models.JourneyNodeWait:
		if n.Wait == nil || n.Wait.Amount <= 0 || !n.Wait.Unit.Valid() {
			return &DefinitionError{Kind: DefinitionErrorBadPayload, NodeID: n.ID, Message: "WAIT node requires a positive amount and a valid unit"}
		}
	case models.JourneyNodeOutput:
		if n.Output == nil || !n.Output.Channel.Valid() || n.Output.TemplateID == "" {
			return &DefinitionError{Kind: DefinitionErrorBadPayload, NodeID: n.ID, Message: "OUTPUT node requires a channel and a template id"}
		}
	}
	return nil
}

func validateEdgeCardinality(n models.JourneyNode, edges []models.JourneyEdge) error {
	switch n.Kind {
	case models.JourneyNodeCondition:
		var yes, no int
		for _, e := range edges {
			if e.Label == nil {
				return &DefinitionError{Kind: DefinitionErrorBadEdges, NodeID: n.ID, Message: "edges leaving a CONDITION node must carry a YES or NO label"}
			}
			switch *e.Label {
			case models.EdgeLabelYes:
				yes++
			case models.EdgeLabelNo:
				no++
			default:
				return &DefinitionError{Kind: DefinitionErrorBadEdges, NodeID: n.ID, Message: fmt.Sprintf("unknown edge label %q", *e.Label)}
			}
		}
		if yes != 1 || no != 1 {
			return &DefinitionError{Kind: DefinitionErrorBadEdges, NodeID: n.ID, Message: "CONDITION node requires exactly one YES and one NO outgoing edge"}
		}
	case models.JourneyNodeStart, models.JourneyNodeAudience, models.JourneyNodeWait:
		if len(edges) != 1 {
			return &DefinitionError{Kind: DefinitionErrorBadEdges, NodeID: n.ID, Message: fmt.Sprintf("%s node requires exactly one outgoing edge", n.Kind)}
		}
		if edges[0].Label != nil {
			return &DefinitionError{Kind: DefinitionErrorBadEdges, NodeID: n.ID, Message: fmt.Sprintf("%s node edges must not carry a label", n.Kind)}
		}
	case models.JourneyNodeOutput:
		if len(edges) > 1 {
			return &DefinitionError{Kind: DefinitionErrorBadEdges, NodeID: n.ID, Message: "OUTPUT node allows at most one outgoing edge"}
		}
	}
	return nil
}
