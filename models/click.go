package models

import (
	"time"

	"github.com/orbitcrm/outreach-engine/utils"
	"gorm.io/gorm"
)

// Click is one observed visit to a tracked link's redirect. Rows are append-only.
// The UTM columns are copied from the link at click time so later UTM changes
// never corrupt past attribution. IsUnique marks the first click seen from this
// origin address for the link within the tenant.
type Click struct {
	ID          uint  `gorm:"primaryKey" json:"id"`
	LinkID      uint  `gorm:"not null;index:idx_clicks_link_id" json:"link_id"`
	CampaignID  uint  `gorm:"not null;index:idx_clicks_campaign_id" json:"campaign_id"`
	TenantID    uint  `gorm:"not null;index:idx_clicks_tenant_id" json:"tenant_id"`
	RecipientID *uint `gorm:"index:idx_clicks_recipient_id" json:"recipient_id,omitempty"`

	IPAddress string  `gorm:"size:64;not null;index:idx_clicks_ip_address" json:"ip_address"`
	UserAgent *string `gorm:"type:text" json:"user_agent,omitempty"`
	Referrer  *string `gorm:"type:text" json:"referrer,omitempty"`

	Device  string `gorm:"size:20;not null;default:'unknown'" json:"device"`
	Browser string `gorm:"size:32;not null;default:'unknown'" json:"browser"`
	OS      string `gorm:"size:32;not null;default:'unknown'" json:"os"`

	UTMSource   *string `gorm:"size:255" json:"utm_source,omitempty"`
	UTMMedium   *string `gorm:"size:255" json:"utm_medium,omitempty"`
	UTMCampaign *string `gorm:"size:255" json:"utm_campaign,omitempty"`
	UTMTerm     *string `gorm:"size:255" json:"utm_term,omitempty"`
	UTMContent  *string `gorm:"size:255" json:"utm_content,omitempty"`

	IsUnique bool `gorm:"not null;default:false" json:"is_unique"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_clicks_created_at" json:"created_at"`
}

// TableName returns the table name for Click
func (Click) TableName() string { return "link_clicks" }

// BeforeCreate is called before creating a new record
func (c *Click) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// ClickFilter provides filter fields for repository queries
type ClickFilter struct {
	ID            *uint
	LinkID        *uint
	CampaignID    *uint
	TenantID      *uint
	RecipientID   *uint
	IPAddress     *string
	IsUnique      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
