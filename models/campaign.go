package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/orbitcrm/outreach-engine/utils"
	"gorm.io/gorm"
)

// CampaignChannel represents the delivery channel of a campaign
type CampaignChannel string

const (
	CampaignChannelEmail    CampaignChannel = "email"
	CampaignChannelWhatsApp CampaignChannel = "whatsapp"
)

// String returns the string representation of the channel
func (c CampaignChannel) String() string {
	return string(c)
}

// Valid checks if the channel is valid
func (c CampaignChannel) Valid() bool {
	switch c {
	case CampaignChannelEmail, CampaignChannelWhatsApp:
		return true
	default:
		return false
	}
}

// CampaignStatus represents the status of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusRunning,
		CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusFailed:
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

// TargetType identifies which variant of the targeting union is populated
type TargetType string

const (
	TargetTypeLeads    TargetType = "leads"
	TargetTypeContacts TargetType = "contacts"
	TargetTypeAll      TargetType = "all"
	TargetTypeTags     TargetType = "tags"
	TargetTypeCustom   TargetType = "custom"
)

// Valid checks if the target type is a known variant
func (t TargetType) Valid() bool {
	switch t {
	case TargetTypeLeads, TargetTypeContacts, TargetTypeAll, TargetTypeTags, TargetTypeCustom:
		return true
	default:
		return false
	}
}

// TargetSpec is the tagged union describing how a campaign's audience is selected.
// Exactly one variant is meaningful for a given Type; the audience resolver rejects
// unknown variants explicitly instead of silently matching nothing.
type TargetSpec struct {
	Type TargetType `json:"type"`

	// Optional predicate applied to lead/contact lookups
	Owner  *string `json:"owner,omitempty"`
	Status *string `json:"status,omitempty"`

	// Populated for Type == tags
	Tags []string `json:"tags,omitempty"`

	// Populated for Type == custom: literal emails or phone numbers
	Entries []string `json:"entries,omitempty"`
}

// Value implements the driver.Valuer interface for TargetSpec
func (t TargetSpec) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for TargetSpec
func (t *TargetSpec) Scan(value any) error {
	if value == nil {
		*t = TargetSpec{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TargetSpec", value)
	}

	return json.Unmarshal(bytes, t)
}

// CampaignContent holds the channel payload of a campaign
type CampaignContent struct {
	Subject *string `json:"subject,omitempty"`
	Body    *string `json:"body,omitempty"`
	HTML    *string `json:"html,omitempty"`

	// WhatsApp specific payload
	MediaURL       *string           `json:"media_url,omitempty"`
	MediaType      *string           `json:"media_type,omitempty"`
	TemplateName   *string           `json:"template_name,omitempty"`
	TemplateParams map[string]string `json:"template_params,omitempty"`
}

// Value implements the driver.Valuer interface for CampaignContent
func (c CampaignContent) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for CampaignContent
func (c *CampaignContent) Scan(value any) error {
	if value == nil {
		*c = CampaignContent{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CampaignContent", value)
	}

	return json.Unmarshal(bytes, c)
}

// UTMSpec holds campaign-level link tracking settings
type UTMSpec struct {
	Enabled    bool    `json:"enabled"`
	ShortLinks bool    `json:"short_links"`
	Source     *string `json:"source,omitempty"`
	Medium     *string `json:"medium,omitempty"`
	Campaign   *string `json:"campaign,omitempty"`
	Term       *string `json:"term,omitempty"`
	Content    *string `json:"content,omitempty"`
}

// Value implements the driver.Valuer interface for UTMSpec
func (u UTMSpec) Value() (driver.Value, error) {
	return json.Marshal(u)
}

// Scan implements the sql.Scanner interface for UTMSpec
func (u *UTMSpec) Scan(value any) error {
	if value == nil {
		*u = UTMSpec{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into UTMSpec", value)
	}

	return json.Unmarshal(bytes, u)
}

// Campaign represents a single bulk-send job across one channel to a resolved audience.
// SentCount + FailedCount never exceeds TotalRecipients; the counters are written only
// by the delivery orchestrator and the audience resolver.
type Campaign struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	UUID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	TenantID uint            `gorm:"not null;index:idx_campaigns_tenant_id" json:"tenant_id"`
	UserID   uint            `gorm:"not null;index:idx_campaigns_user_id" json:"user_id"`
	Channel  CampaignChannel `gorm:"type:varchar(20);not null" json:"channel"`
	Status   CampaignStatus  `gorm:"type:campaign_status;not null;default:'draft';index:idx_campaigns_status" json:"status"`
	Name     string          `gorm:"size:255;not null" json:"name"`

	Content CampaignContent `gorm:"type:jsonb;not null" json:"content"`
	Target  TargetSpec      `gorm:"type:jsonb;not null" json:"target"`
	UTM     UTMSpec         `gorm:"type:jsonb;not null" json:"utm"`

	// Snapshot of the literal entries for custom targeting, kept queryable
	CustomEntries pq.StringArray `gorm:"type:text[]" json:"custom_entries,omitempty"`

	ScheduleAt *time.Time `gorm:"index:idx_campaigns_schedule_at" json:"schedule_at,omitempty"`

	TotalRecipients int `gorm:"not null;default:0" json:"total_recipients"`
	SentCount       int `gorm:"not null;default:0" json:"sent_count"`
	FailedCount     int `gorm:"not null;default:0" json:"failed_count"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// IsEditable checks if the campaign accepts structural edits (content/targeting)
func (c *Campaign) IsEditable() bool {
	return c.Status == CampaignStatusDraft
}

// IsDeletable checks if the campaign can be deleted
func (c *Campaign) IsDeletable() bool {
	return c.Status == CampaignStatusDraft
}

// IsTerminal checks if the campaign reached a final state
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignStatusCompleted || c.Status == CampaignStatusFailed
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusScheduled ||
			newStatus == CampaignStatusRunning ||
			newStatus == CampaignStatusFailed
	case CampaignStatusScheduled:
		return newStatus == CampaignStatusRunning ||
			newStatus == CampaignStatusFailed
	case CampaignStatusRunning:
		return newStatus == CampaignStatusPaused ||
			newStatus == CampaignStatusCompleted ||
			newStatus == CampaignStatusFailed
	case CampaignStatusPaused:
		return newStatus == CampaignStatusRunning ||
			newStatus == CampaignStatusFailed
	default:
		return false
	}
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID             *uint            `json:"id,omitempty"`
	UUID           *uuid.UUID       `json:"uuid,omitempty"`
	TenantID       *uint            `json:"tenant_id,omitempty"`
	UserID         *uint            `json:"user_id,omitempty"`
	Channel        *CampaignChannel `json:"channel,omitempty"`
	Status         *CampaignStatus  `json:"status,omitempty"`
	ScheduleBefore *time.Time       `json:"schedule_before,omitempty"`
	CreatedAfter   *time.Time       `json:"created_after,omitempty"`
	CreatedBefore  *time.Time       `json:"created_before,omitempty"`
}
