package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NodeKind identifies the data source a graph node draws rows from
type NodeKind string

const (
	NodeKindCustomers    NodeKind = "CUSTOMERS"
	NodeKindBillings     NodeKind = "BILLINGS"
	NodeKindEvents       NodeKind = "EVENTS"
	NodeKindCustomerTags NodeKind = "CUSTOMER_TAGS"
)

// Valid checks if the node kind is valid
func (k NodeKind) Valid() bool {
	switch k {
	case NodeKindCustomers, NodeKindBillings, NodeKindEvents, NodeKindCustomerTags:
		return true
	default:
		return false
	}
}

// FilterOp is a comparison operator inside a node filter
type FilterOp string

const (
	FilterOpEq       FilterOp = "="
	FilterOpNeq      FilterOp = "!="
	FilterOpContains FilterOp = "contains"
	FilterOpGt       FilterOp = "gt"
	FilterOpLt       FilterOp = "lt"
)

// Valid checks if the filter operator is valid
func (o FilterOp) Valid() bool {
	switch o {
	case FilterOpEq, FilterOpNeq, FilterOpContains, FilterOpGt, FilterOpLt:
		return true
	default:
		return false
	}
}

// Filter is a single field predicate on a graph node
type Filter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value string   `json:"value"`
}

// JoinOp is a comparison operator inside a join condition
type JoinOp string

const (
	JoinOpEq  JoinOp = "="
	JoinOpNeq JoinOp = "!="
)

// Valid checks if the join operator is valid
func (o JoinOp) Valid() bool {
	return o == JoinOpEq || o == JoinOpNeq
}

// JoinCondition relates a field of the edge's source node to a field of its target node
type JoinCondition struct {
	LeftField  string `json:"leftField"`
	Op         JoinOp `json:"op"`
	RightField string `json:"rightField"`
}

// GraphNode is one data-source node of an audience definition
type GraphNode struct {
	ID      string   `json:"id"`
	Kind    NodeKind `json:"kind"`
	Alias   string   `json:"alias"`
	Filters []Filter `json:"filters,omitempty"`
}

// GraphEdge is a join edge between two nodes of an audience definition
type GraphEdge struct {
	ID   string          `json:"id"`
	From string          `json:"from"`
	To   string          `json:"to"`
	On   []JoinCondition `json:"on"`
}

// AudienceDefinition is the declarative segment graph authored by the audience builder
type AudienceDefinition struct {
	Version    int         `json:"version"`
	Kind       string      `json:"kind"`
	RootNodeID string      `json:"rootNodeId"`
	Nodes      []GraphNode `json:"nodes"`
	Edges      []GraphEdge `json:"edges"`
}

// AudienceDefinitionKind is the only accepted value for AudienceDefinition.Kind
const AudienceDefinitionKind = "AUDIENCE_BUILDER"

// Value implements the driver.Valuer interface for AudienceDefinition
func (d AudienceDefinition) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements the sql.Scanner interface for AudienceDefinition
func (d *AudienceDefinition) Scan(value any) error {
	if value == nil {
		*d = AudienceDefinition{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AudienceDefinition", value)
	}

	return json.Unmarshal(bytes, d)
}

// Segment represents a persisted audience definition in the database
type Segment struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:uk_segments_uuid" json:"uuid"`
	TenantID       uint               `gorm:"not null;index:idx_segments_tenant_id" json:"tenant_id"`
	Name           string             `gorm:"size:255;not null" json:"name"`
	Definition     AudienceDefinition `gorm:"type:jsonb;not null" json:"definition"`
	DefinitionHash string             `gorm:"size:64;not null;index:idx_segments_definition_hash" json:"definition_hash"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (Segment) TableName() string {
	return "segments"
}

// SegmentFilter represents filter criteria for segment queries
type SegmentFilter struct {
	TenantID *uint
	Name     *string
}
