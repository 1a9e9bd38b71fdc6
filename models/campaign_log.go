package models

import (
	"encoding/json"
	"time"

	"github.com/orbitcrm/outreach-engine/utils"
	"gorm.io/gorm"
)

// Campaign log action constants
const (
	CampaignActionCreated                = "campaign_created"
	CampaignActionScheduled              = "campaign_scheduled"
	CampaignActionStarted                = "campaign_started"
	CampaignActionPaused                 = "campaign_paused"
	CampaignActionResumed                = "campaign_resumed"
	CampaignActionCompleted              = "campaign_completed"
	CampaignActionFailed                 = "campaign_failed"
	CampaignActionDeleted                = "campaign_deleted"
	CampaignActionRecipientsMaterialized = "recipients_materialized"
	CampaignActionRecipientAdded         = "recipient_added"
	CampaignActionRecipientRemoved       = "recipient_removed"
)

// CampaignLog is the append-only audit trail of campaign lifecycle actions.
// It is write-only from the pipeline's perspective; nothing in the core reads it back.
type CampaignLog struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CampaignID uint            `gorm:"not null;index:idx_campaign_logs_campaign_id" json:"campaign_id"`
	TenantID   uint            `gorm:"not null;index:idx_campaign_logs_tenant_id" json:"tenant_id"`
	Action     string          `gorm:"size:64;not null;index:idx_campaign_logs_action" json:"action"`
	Message    *string         `gorm:"type:text" json:"message,omitempty"`
	Success    *bool           `gorm:"default:true" json:"success"`
	ErrorText  *string         `gorm:"type:text" json:"error_text,omitempty"`
	Metadata   json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaign_logs_created_at" json:"created_at"`
}

// TableName returns the table name for CampaignLog
func (CampaignLog) TableName() string { return "campaign_logs" }

// BeforeCreate is called before creating a new record
func (l *CampaignLog) BeforeCreate(tx *gorm.DB) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// IsFailed reports whether the logged action failed
func (l *CampaignLog) IsFailed() bool {
	return l.Success != nil && !*l.Success
}

// CampaignLogFilter represents filter criteria for campaign log queries
type CampaignLogFilter struct {
	ID            *uint
	CampaignID    *uint
	TenantID      *uint
	Action        *string
	Success       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
