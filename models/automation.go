package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JourneyNodeKind identifies the behavior of a journey node
type JourneyNodeKind string

const (
	JourneyNodeStart     JourneyNodeKind = "START"
	JourneyNodeAudience  JourneyNodeKind = "AUDIENCE"
	JourneyNodeCondition JourneyNodeKind = "CONDITION"
	JourneyNodeWait      JourneyNodeKind = "WAIT"
	JourneyNodeOutput    JourneyNodeKind = "OUTPUT"
)

// Valid checks if the journey node kind is valid
func (k JourneyNodeKind) Valid() bool {
	switch k {
	case JourneyNodeStart, JourneyNodeAudience, JourneyNodeCondition, JourneyNodeWait, JourneyNodeOutput:
		return true
	default:
		return false
	}
}

// WaitUnit is the time unit of a WAIT node
type WaitUnit string

const (
	WaitUnitMinutes WaitUnit = "minutes"
	WaitUnitHours   WaitUnit = "hours"
	WaitUnitDays    WaitUnit = "days"
	WaitUnitWeeks   WaitUnit = "weeks"
)

// Valid checks if the wait unit is valid
func (u WaitUnit) Valid() bool {
	switch u {
	case WaitUnitMinutes, WaitUnitHours, WaitUnitDays, WaitUnitWeeks:
		return true
	default:
		return false
	}
}

// Duration converts an amount of this unit to a time.Duration
func (u WaitUnit) Duration(amount int) time.Duration {
	d := time.Duration(amount)
	switch u {
	case WaitUnitMinutes:
		return d * time.Minute
	case WaitUnitHours:
		return d * time.Hour
	case WaitUnitDays:
		return d * 24 * time.Hour
	case WaitUnitWeeks:
		return d * 7 * 24 * time.Hour
	default:
		return 0
	}
}

// JourneyConditionOp is a comparison operator inside a CONDITION node
type JourneyConditionOp string

const (
	JourneyCondOpEq     JourneyConditionOp = "="
	JourneyCondOpNeq    JourneyConditionOp = "!="
	JourneyCondOpHas    JourneyConditionOp = "HAS"
	JourneyCondOpHasNot JourneyConditionOp = "HAS_NOT"
)

// Valid checks if the condition operator is valid
func (o JourneyConditionOp) Valid() bool {
	switch o {
	case JourneyCondOpEq, JourneyCondOpNeq, JourneyCondOpHas, JourneyCondOpHasNot:
		return true
	default:
		return false
	}
}

// JourneyCondition is one predicate of a CONDITION node, evaluated against the
// customer's type, tags, and events. Supported fields: "type" (=, !=),
// "tag" (HAS, HAS_NOT by tag name), "event" (HAS, HAS_NOT by event type).
type JourneyCondition struct {
	Field string             `json:"field"`
	Op    JourneyConditionOp `json:"op"`
	Value string             `json:"value"`
}

// WaitSpec is the payload of a WAIT node
type WaitSpec struct {
	Amount int      `json:"amount"`
	Unit   WaitUnit `json:"unit"`
}

// OutputSpec is the payload of an OUTPUT node
type OutputSpec struct {
	Channel    Channel `json:"channel"`
	TemplateID string  `json:"templateId"`
}

// JourneyNode is one node of a journey definition. The payload field matching
// the node kind is set; the rest are nil.
type JourneyNode struct {
	ID         string             `json:"id"`
	Kind       JourneyNodeKind    `json:"kind"`
	Audience   *AudienceSpec      `json:"audience,omitempty"`
	Conditions []JourneyCondition `json:"conditions,omitempty"`
	Wait       *WaitSpec          `json:"wait,omitempty"`
	Output     *OutputSpec        `json:"output,omitempty"`
}

// Edge labels for CONDITION branches
const (
	EdgeLabelYes = "YES"
	EdgeLabelNo  = "NO"
)

// JourneyEdge connects two journey nodes. Edges leaving a CONDITION node carry
// a YES or NO label; all other edges are unlabeled.
type JourneyEdge struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Label *string `json:"label,omitempty"`
}

// JourneyDefinition is the branching workflow graph authored by the journey builder
type JourneyDefinition struct {
	StartNodeID string        `json:"startNodeId"`
	Nodes       []JourneyNode `json:"nodes"`
	Edges       []JourneyEdge `json:"edges"`
}

// Value implements the driver.Valuer interface for JourneyDefinition
func (d JourneyDefinition) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements the sql.Scanner interface for JourneyDefinition
func (d *JourneyDefinition) Scan(value any) error {
	if value == nil {
		*d = JourneyDefinition{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JourneyDefinition", value)
	}

	return json.Unmarshal(bytes, d)
}

// AutomationStatus represents the lifecycle status of an automation
type AutomationStatus string

const (
	AutomationStatusDraft    AutomationStatus = "DRAFT"
	AutomationStatusActive   AutomationStatus = "ACTIVE"
	AutomationStatusPaused   AutomationStatus = "PAUSED"
	AutomationStatusArchived AutomationStatus = "ARCHIVED"
)

// Valid checks if the status is valid
func (s AutomationStatus) Valid() bool {
	switch s {
	case AutomationStatusDraft, AutomationStatusActive, AutomationStatusPaused, AutomationStatusArchived:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AutomationStatus
func (s *AutomationStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = AutomationStatus(v)
	case []byte:
		*s = AutomationStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AutomationStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AutomationStatus
func (s AutomationStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AutomationStatus: %s", s)
	}
	return string(s), nil
}

// Automation represents a persisted journey definition in the database
type Automation struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:uk_automations_uuid" json:"uuid"`
	TenantID   uint              `gorm:"not null;index:idx_automations_tenant_id" json:"tenant_id"`
	Name       string            `gorm:"size:255;not null" json:"name"`
	Status     AutomationStatus  `gorm:"type:varchar(20);not null;index:idx_automations_status" json:"status"`
	Definition JourneyDefinition `gorm:"type:jsonb;not null" json:"definition"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (Automation) TableName() string {
	return "automations"
}

// AutomationFilter represents filter criteria for automation queries
type AutomationFilter struct {
	TenantID *uint
	Status   *AutomationStatus
}
