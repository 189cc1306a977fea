package audience

import (
	"fmt"

	"github.com/aikyo-io/campaign-engine/models"
)

// GraphErrorKind classifies a structural defect in an audience definition
type GraphErrorKind string

const (
	GraphErrorDuplicateNode  GraphErrorKind = "DUPLICATE_NODE"
	GraphErrorDuplicateAlias GraphErrorKind = "DUPLICATE_ALIAS"
	GraphErrorUnknownKind    GraphErrorKind = "UNKNOWN_KIND"
	GraphErrorBadRoot        GraphErrorKind = "BAD_ROOT"
	GraphErrorUnknownNode    GraphErrorKind = "UNKNOWN_NODE"
	GraphErrorCycle          GraphErrorKind = "CYCLE"
	GraphErrorDisconnected   GraphErrorKind = "DISCONNECTED"
	GraphErrorUnknownField   GraphErrorKind = "UNKNOWN_FIELD"
	GraphErrorUnknownOp      GraphErrorKind = "UNKNOWN_OP"
)

// GraphError reports a structural problem found while validating an audience
// definition. It is surfaced to the author verbatim at save or estimate time.
type GraphError struct {
	Kind    GraphErrorKind `json:"kind"`
	NodeID  string         `json:"node_id,omitempty"`
	EdgeID  string         `json:"edge_id,omitempty"`
	Message string         `json:"message"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph error %s: %s", e.Kind, e.Message)
}

// ValidatedGraph is the output of Validate: the immutable definition plus the
// lookups and the topological join order the resolver consumes.
type ValidatedGraph struct {
	Definition models.AudienceDefinition
	Root       models.GraphNode
	NodesByID  map[string]models.GraphNode

	// JoinOrder lists the definition's edges so that every edge appears
	// after all edges targeting its source node.
	JoinOrder []models.GraphEdge
}

// Validate checks an audience definition for structural correctness. It is a
// pure function; the returned ValidatedGraph carries everything the resolver
// needs so no recheck happens at resolve time.
func Validate(def models.AudienceDefinition) (*ValidatedGraph, error) {
	if def.Kind != models.AudienceDefinitionKind {
		return nil, &GraphError{Kind: GraphErrorUnknownKind, Message: fmt.Sprintf("unsupported definition kind %q", def.Kind)}
	}
	if len(def.Nodes) == 0 {
		return nil, &GraphError{Kind: GraphErrorBadRoot, Message: "definition has no nodes"}
	}

	nodesByID := make(map[string]models.GraphNode, len(def.Nodes))
	aliases := make(map[string]bool, len(def.Nodes))
	var customersCount int
	for _, n := range def.Nodes {
		if _, dup := nodesByID[n.ID]; dup {
			return nil, &GraphError{Kind: GraphErrorDuplicateNode, NodeID: n.ID, Message: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		if !n.Kind.Valid() {
			return nil, &GraphError{Kind: GraphErrorUnknownKind, NodeID: n.ID, Message: fmt.Sprintf("unknown node kind %q", n.Kind)}
		}
		if n.Alias != "" {
			if aliases[n.Alias] {
				return nil, &GraphError{Kind: GraphErrorDuplicateAlias, NodeID: n.ID, Message: fmt.Sprintf("duplicate alias %q", n.Alias)}
			}
			aliases[n.Alias] = true
		}
		if n.Kind == models.NodeKindCustomers {
			customersCount++
		}
		for _, f := range n.Filters {
			if !f.Op.Valid() {
				return nil, &GraphError{Kind: GraphErrorUnknownOp, NodeID: n.ID, Message: fmt.Sprintf("unknown filter op %q", f.Op)}
			}
			if !KindHasField(n.Kind, f.Field) {
				return nil, &GraphError{Kind: GraphErrorUnknownField, NodeID: n.ID, Message: fmt.Sprintf("field %q is not queryable on %s", f.Field, n.Kind)}
			}
		}
		nodesByID[n.ID] = n
	}

	if customersCount != 1 {
		return nil, &GraphError{Kind: GraphErrorBadRoot, Message: fmt.Sprintf("definition must contain exactly one CUSTOMERS node, found %d", customersCount)}
	}
	root, ok := nodesByID[def.RootNodeID]
	if !ok {
		return nil, &GraphError{Kind: GraphErrorBadRoot, Message: fmt.Sprintf("rootNodeId %q does not reference a node", def.RootNodeID)}
	}
	if root.Kind != models.NodeKindCustomers {
		return nil, &GraphError{Kind: GraphErrorBadRoot, NodeID: root.ID, Message: "rootNodeId must reference the CUSTOMERS node"}
	}

	out := make(map[string][]string, len(def.Nodes))
	undirected := make(map[string][]string, len(def.Nodes))
	for _, e := range def.Edges {
		from, ok := nodesByID[e.From]
		if !ok {
			return nil, &GraphError{Kind: GraphErrorUnknownNode, EdgeID: e.ID, Message: fmt.Sprintf("edge %q references unknown node %q", e.ID, e.From)}
		}
		to, ok := nodesByID[e.To]
		if !ok {
			return nil, &GraphError{Kind: GraphErrorUnknownNode, EdgeID: e.ID, Message: fmt.Sprintf("edge %q references unknown node %q", e.ID, e.To)}
		}
		for _, jc := range e.On {
			if !jc.Op.Valid() {
				return nil, &GraphError{Kind: GraphErrorUnknownOp, EdgeID: e.ID, Message: fmt.Sprintf("unknown join op %q", jc.Op)}
			}
			if !KindHasField(from.Kind, jc.LeftField) {
				return nil, &GraphError{Kind: GraphErrorUnknownField, EdgeID: e.ID, Message: fmt.Sprintf("field %q is not queryable on %s", jc.LeftField, from.Kind)}
			}
			if !KindHasField(to.Kind, jc.RightField) {
				return nil, &GraphError{Kind: GraphErrorUnknownField, EdgeID: e.ID, Message: fmt.Sprintf("field %q is not queryable on %s", jc.RightField, to.Kind)}
			}
		}
		out[e.From] = append(out[e.From], e.To)
		undirected[e.From] = append(undirected[e.From], e.To)
		undirected[e.To] = append(undirected[e.To], e.From)
	}

	if cycleNode := findCycle(def.Nodes, out); cycleNode != "" {
		return nil, &GraphError{Kind: GraphErrorCycle, NodeID: cycleNode, Message: fmt.Sprintf("join graph contains a cycle through node %q", cycleNode)}
	}

	reachable := map[string]bool{root.ID: true}
	stack := []string{root.ID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range undirected[cur] {
			if !reachable[next] {
				reachable[next] = true
				stack = append(stack, next)
			}
		}
	}
	for _, n := range def.Nodes {
		if !reachable[n.ID] {
			return nil, &GraphError{Kind: GraphErrorDisconnected, NodeID: n.ID, Message: fmt.Sprintf("node %q is not connected to the root", n.ID)}
		}
	}

	return &ValidatedGraph{
		Definition: def,
		Root:       root,
		NodesByID:  nodesByID,
		JoinOrder:  topoEdges(def, out),
	}, nil
}

// findCycle runs a three-color DFS over the directed edges; returns the id of
// a node on a cycle, or empty when the graph is a DAG
func findCycle(nodes []models.GraphNode, out map[string][]string) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = gray
		for _, next := range out[id] {
			switch color[next] {
			case gray:
				return next
			case white:
				if hit := visit(next); hit != "" {
					return hit
				}
			}
		}
		color[id] = black
		return ""
	}

	for _, n := range nodes {
		if color[n.ID] == white {
			if hit := visit(n.ID); hit != "" {
				return hit
			}
		}
	}
	return ""
}

// topoEdges orders edges so each edge appears after every edge targeting its
// source node. Called only on acyclic graphs.
func topoEdges(def models.AudienceDefinition, out map[string][]string) []models.GraphEdge {
	depth := map[string]int{def.RootNodeID: 0}
	queue := []string{def.RootNodeID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range out[cur] {
			if _, seen := depth[next]; !seen {
				depth[next] = depth[cur] + 1
				queue = append(queue, next)
			}
		}
	}

	ordered := make([]models.GraphEdge, len(def.Edges))
	copy(ordered, def.Edges)
	// Stable insertion sort by source depth keeps author order for ties.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && depth[ordered[j].From] < depth[ordered[j-1].From]; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}
