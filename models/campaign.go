package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Channel identifies a delivery channel
type Channel string

const (
	ChannelLine      Channel = "LINE"
	ChannelMessenger Channel = "MESSENGER"
	ChannelEmail     Channel = "EMAIL"
	ChannelSMS       Channel = "SMS"
)

// String returns the string representation of the channel
func (c Channel) String() string {
	return string(c)
}

// Valid checks if the channel is valid
func (c Channel) Valid() bool {
	switch c {
	case ChannelLine, ChannelMessenger, ChannelEmail, ChannelSMS:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for Channel
func (c *Channel) Scan(value any) error {
	if value == nil {
		*c = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*c = Channel(v)
	case []byte:
		*c = Channel(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Channel", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for Channel
func (c Channel) Value() (driver.Value, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid Channel: %s", c)
	}
	return string(c), nil
}

// Channels lists every delivery channel
func Channels() []Channel {
	return []Channel{ChannelLine, ChannelMessenger, ChannelEmail, ChannelSMS}
}

// CampaignStatus represents the lifecycle status of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft    CampaignStatus = "DRAFT"
	CampaignStatusActive   CampaignStatus = "ACTIVE"
	CampaignStatusPaused   CampaignStatus = "PAUSED"
	CampaignStatusArchived CampaignStatus = "ARCHIVED"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused, CampaignStatusArchived:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Cadence is the recurrence rule of a campaign schedule
type Cadence string

const (
	CadenceOnce    Cadence = "ONCE"
	CadenceDaily   Cadence = "DAILY"
	CadenceWeekly  Cadence = "WEEKLY"
	CadenceMonthly Cadence = "MONTHLY"
)

// Valid checks if the cadence is valid
func (c Cadence) Valid() bool {
	switch c {
	case CadenceOnce, CadenceDaily, CadenceWeekly, CadenceMonthly:
		return true
	default:
		return false
	}
}

// Schedule describes when a campaign fires. Dates use the "2006-01-02" layout
// and Time uses "15:04", both interpreted in the tick loop's location.
type Schedule struct {
	Cadence    Cadence `json:"cadence"`
	Time       string  `json:"time"`
	StartDate  string  `json:"startDate"`
	Always     bool    `json:"always"`
	EndDate    *string `json:"endDate,omitempty"`
	Weekdays   []int   `json:"weekdays,omitempty"`
	DayOfMonth *int    `json:"dayOfMonth,omitempty"`
}

// Value implements the driver.Valuer interface for Schedule
func (s Schedule) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for Schedule
func (s *Schedule) Scan(value any) error {
	if value == nil {
		*s = Schedule{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Schedule", value)
	}

	return json.Unmarshal(bytes, s)
}

// AudienceMode selects how a campaign audience is produced
type AudienceMode string

const (
	AudienceModeFilter AudienceMode = "FILTER"
	AudienceModeManual AudienceMode = "MANUAL"
)

// Valid checks if the audience mode is valid
func (m AudienceMode) Valid() bool {
	return m == AudienceModeFilter || m == AudienceModeManual
}

// AudienceSpec is the tagged union describing a campaign or journey audience.
// FILTER mode selects customers by type and tags; MANUAL mode carries raw
// destinations that bypass resolution.
type AudienceSpec struct {
	Mode         AudienceMode  `json:"mode"`
	CustomerType *CustomerType `json:"customerType,omitempty"`
	TagIDs       []string      `json:"tagIds,omitempty"`
	Destinations []string      `json:"destinations,omitempty"`
}

// Value implements the driver.Valuer interface for AudienceSpec
func (a AudienceSpec) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for AudienceSpec
func (a *AudienceSpec) Scan(value any) error {
	if value == nil {
		*a = AudienceSpec{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AudienceSpec", value)
	}

	return json.Unmarshal(bytes, a)
}

// TemplateKind identifies where a campaign's message content comes from.
// RAW means the payload is embedded in the campaign itself; any other value
// names the template family resolved through the content template store.
type TemplateKind string

const (
	TemplateKindRaw       TemplateKind = "RAW"
	TemplateKindLine      TemplateKind = "LINE"
	TemplateKindMessenger TemplateKind = "MESSENGER"
	TemplateKindEmail     TemplateKind = "EMAIL"
	TemplateKindSMS       TemplateKind = "SMS"
)

// Valid checks if the template kind is valid
func (k TemplateKind) Valid() bool {
	switch k {
	case TemplateKindRaw, TemplateKindLine, TemplateKindMessenger, TemplateKindEmail, TemplateKindSMS:
		return true
	default:
		return false
	}
}

// Campaign represents a scheduled or one-shot message campaign in the database
type Campaign struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	TenantID     uint           `gorm:"not null;index:idx_campaigns_tenant_id" json:"tenant_id"`
	Name         string         `gorm:"size:255;not null" json:"name"`
	Channel      Channel        `gorm:"type:varchar(20);not null" json:"channel"`
	Status       CampaignStatus `gorm:"type:varchar(20);not null;index:idx_campaigns_status" json:"status"`
	Schedule     Schedule       `gorm:"type:jsonb;not null" json:"schedule"`
	Audience     AudienceSpec   `gorm:"type:jsonb;not null" json:"audience"`
	TemplateKind TemplateKind   `gorm:"type:varchar(20);not null" json:"template_kind"`
	TemplateID   *string        `gorm:"size:64" json:"template_id,omitempty"`
	Payload      JSONMap        `gorm:"type:jsonb" json:"payload,omitempty"`

	// Fire-once bookkeeping for the tick loop. LastFiredAt records the computed
	// fire instant of the most recent dispatch; LockedUntil is the claim lease.
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`
	LockedUntil *time.Time `json:"-"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// CampaignFilter represents filter criteria for campaign queries
type CampaignFilter struct {
	TenantID *uint
	Status   *CampaignStatus
	Channel  *Channel
}
