package models

import (
	"time"

	"github.com/orbitcrm/outreach-engine/utils"
	"gorm.io/gorm"
)

// Link is a tracked URL belonging to a campaign, unique per (campaign, original URL).
// ShortCode is globally unique and immutable once assigned. The UTM columns are the
// snapshot used for click attribution; clicks copy them at click time.
type Link struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	CampaignID uint    `gorm:"not null;index:idx_links_campaign_id;uniqueIndex:uk_links_campaign_original_url" json:"campaign_id"`
	TenantID   uint    `gorm:"not null;index:idx_links_tenant_id" json:"tenant_id"`
	OriginalURL string `gorm:"type:text;not null;uniqueIndex:uk_links_campaign_original_url" json:"original_url"`
	TaggedURL   string `gorm:"type:text;not null" json:"tagged_url"`
	ShortCode   *string `gorm:"size:16;uniqueIndex:uk_links_short_code" json:"short_code,omitempty"`
	ShortURL    *string `gorm:"type:text" json:"short_url,omitempty"`

	UTMSource   *string `gorm:"size:255" json:"utm_source,omitempty"`
	UTMMedium   *string `gorm:"size:255" json:"utm_medium,omitempty"`
	UTMCampaign *string `gorm:"size:255" json:"utm_campaign,omitempty"`
	UTMTerm     *string `gorm:"size:255" json:"utm_term,omitempty"`
	UTMContent  *string `gorm:"size:255" json:"utm_content,omitempty"`

	TotalClicks  int `gorm:"not null;default:0" json:"total_clicks"`
	UniqueClicks int `gorm:"not null;default:0" json:"unique_clicks"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_links_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for Link
func (Link) TableName() string { return "campaign_links" }

// BeforeCreate is called before creating a new record
func (l *Link) BeforeCreate(tx *gorm.DB) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// LinkFilter provides filter fields for repository queries
type LinkFilter struct {
	ID            *uint
	CampaignID    *uint
	TenantID      *uint
	OriginalURL   *string
	ShortCode     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
