package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/orbitcrm/outreach-engine/utils"
	"gorm.io/gorm"
)

// RecipientSourceType identifies where a recipient was resolved from
type RecipientSourceType string

const (
	RecipientSourceLead    RecipientSourceType = "lead"
	RecipientSourceContact RecipientSourceType = "contact"
	RecipientSourceCustom  RecipientSourceType = "custom"
)

// RecipientStatus enumerates the delivery outcome of a recipient.
// Transitions are one-way: pending -> sent or pending -> failed.
type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "pending"
	RecipientStatusSent    RecipientStatus = "sent"
	RecipientStatusFailed  RecipientStatus = "failed"
)

// String returns the string representation of the status
func (s RecipientStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s RecipientStatus) Valid() bool {
	switch s {
	case RecipientStatusPending, RecipientStatusSent, RecipientStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RecipientStatus
func (s *RecipientStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RecipientStatus(v)
	case []byte:
		*s = RecipientStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RecipientStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RecipientStatus
func (s RecipientStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RecipientStatus: %s", s)
	}
	return string(s), nil
}

// Recipient is one addressable target of a campaign with its own delivery outcome
// and independent click counters. Rows are created once at materialization time.
type Recipient struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	CampaignID uint                `gorm:"not null;index:idx_recipients_campaign_id;uniqueIndex:uk_recipients_campaign_source" json:"campaign_id"`
	TenantID   uint                `gorm:"not null;index:idx_recipients_tenant_id" json:"tenant_id"`
	SourceType RecipientSourceType `gorm:"type:varchar(20);not null;uniqueIndex:uk_recipients_campaign_source" json:"source_type"`
	SourceID   string              `gorm:"size:64;not null;uniqueIndex:uk_recipients_campaign_source" json:"source_id"`
	Name       string              `gorm:"size:255" json:"name"`
	Email      *string             `gorm:"size:255" json:"email,omitempty"`
	Phone      *string             `gorm:"size:32" json:"phone,omitempty"`

	Status    RecipientStatus `gorm:"type:recipient_status;not null;default:'pending';index:idx_recipients_status" json:"status"`
	MessageID *string         `gorm:"size:255" json:"message_id,omitempty"`
	ErrorText *string         `gorm:"type:text" json:"error_text,omitempty"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`

	ClickedCount   int        `gorm:"not null;default:0" json:"clicked_count"`
	FirstClickedAt *time.Time `json:"first_clicked_at,omitempty"`
	LastClickedAt  *time.Time `json:"last_clicked_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_recipients_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for Recipient
func (Recipient) TableName() string { return "campaign_recipients" }

// BeforeCreate is called before creating a new record
func (r *Recipient) BeforeCreate(tx *gorm.DB) error {
	if r.Status == "" {
		r.Status = RecipientStatusPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	return nil
}

// Address returns the channel address of the recipient for the given channel
func (r *Recipient) Address(channel CampaignChannel) string {
	switch channel {
	case CampaignChannelEmail:
		if r.Email != nil {
			return *r.Email
		}
	case CampaignChannelWhatsApp:
		if r.Phone != nil {
			return *r.Phone
		}
	}
	return ""
}

// RecipientFilter provides filter fields for repository queries
type RecipientFilter struct {
	ID            *uint
	CampaignID    *uint
	TenantID      *uint
	SourceType    *RecipientSourceType
	SourceID      *string
	Status        *RecipientStatus
	Email         *string
	Phone         *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
